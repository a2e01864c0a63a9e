package model

import (
	"fmt"
	"strings"
)

// Service-published bounds for tunable generation parameters. Out-of-range
// values are clamped rather than rejected, matching the service console.
const (
	MinDimension = 64
	MaxDimension = 2048
	MinSteps     = 1
	MaxSteps     = 100
	MinGuidance  = 1.0
	MaxGuidance  = 20.0
	MinUpscale   = 1
	MaxUpscale   = 8
	MinDuration  = 1
	MaxDuration  = 60
	MinFaceLimit = 100
	MaxFaceLimit = 10000
)

// FileRef points at an input file already reachable by the service, either
// a public URL or a media URL produced by an upload.
type FileRef struct {
	URL string
}

// GenerationParams describes one generation request. Zero values mean
// "service default" except where a pointer marks fields whose zero is
// itself meaningful (a seed of 0, creativity 0).
type GenerationParams struct {
	Type           GenerationType
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Quality        string
	Steps          int
	Guidance       float64
	Seed           *int64
	Creativity     *float64
	Resemblance    *float64
	UpscaleRatio   int
	Duration       int
	Transparency   bool
	Tileability    bool
	IncludeTexture bool
	FaceLimit      int
	Files          []FileRef
}

// typesNeedingFiles lists generation types that transform an existing asset
// and therefore require at least one input file.
var typesNeedingFiles = map[GenerationType]struct{}{
	GenerationEdit: {}, GenerationUpscale: {}, GenerationUpscaleVideo: {},
	GenerationImageToVideo: {}, GenerationImageTo3D: {}, GenerationLipSync: {},
	GenerationVectorizeImage: {}, GenerationAnimateMesh: {},
	GenerationRemoveBackground: {},
}

// Validate checks the request is submittable: a known type, a prompt where
// one is required, and input files for transform types.
func (p GenerationParams) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("unknown generation type %q", p.Type)
	}
	if _, needsFiles := typesNeedingFiles[p.Type]; needsFiles && len(p.Files) == 0 {
		return fmt.Errorf("generation type %s requires at least one input file", p.Type)
	}
	if strings.TrimSpace(p.Prompt) == "" && !p.promptOptional() {
		return fmt.Errorf("generation type %s requires a prompt", p.Type)
	}
	for i, f := range p.Files {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("input file %d has an empty url", i)
		}
	}
	return nil
}

// promptOptional reports whether the type works purely from input files.
func (p GenerationParams) promptOptional() bool {
	switch p.Type {
	case GenerationUpscale, GenerationUpscaleVideo, GenerationRemoveBackground,
		GenerationVectorizeImage, GenerationImageTo3D, GenerationAnimateMesh:
		return true
	default:
		return false
	}
}

// Clamped returns a copy with every set numeric field pulled into the
// service's published range. Unset (zero) fields stay unset.
func (p GenerationParams) Clamped() GenerationParams {
	out := p
	if out.Width != 0 {
		out.Width = clampInt(out.Width, MinDimension, MaxDimension)
	}
	if out.Height != 0 {
		out.Height = clampInt(out.Height, MinDimension, MaxDimension)
	}
	if out.Steps != 0 {
		out.Steps = clampInt(out.Steps, MinSteps, MaxSteps)
	}
	if out.Guidance != 0 {
		out.Guidance = clampFloat(out.Guidance, MinGuidance, MaxGuidance)
	}
	if out.Creativity != nil {
		v := clampFloat(*out.Creativity, 0, 1)
		out.Creativity = &v
	}
	if out.Resemblance != nil {
		v := clampFloat(*out.Resemblance, 0, 1)
		out.Resemblance = &v
	}
	if out.UpscaleRatio != 0 {
		out.UpscaleRatio = clampInt(out.UpscaleRatio, MinUpscale, MaxUpscale)
	}
	if out.Duration != 0 {
		out.Duration = clampInt(out.Duration, MinDuration, MaxDuration)
	}
	if out.FaceLimit != 0 {
		out.FaceLimit = clampInt(out.FaceLimit, MinFaceLimit, MaxFaceLimit)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
