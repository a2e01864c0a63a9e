package model

// GenerationType selects the kind of asset the service produces. Values
// match the service's wire enum.
type GenerationType string

const (
	GenerationCreate           GenerationType = "CREATE"
	GenerationRefill           GenerationType = "REFILL"
	GenerationEdit             GenerationType = "EDIT"
	GenerationUpscale          GenerationType = "UPSCALE"
	GenerationLipSync          GenerationType = "LIP_SYNC"
	GenerationImageToVideo     GenerationType = "IMAGE_TO_VIDEO"
	GenerationUpscaleVideo     GenerationType = "UPSCALE_VIDEO"
	GenerationImageTo3D        GenerationType = "IMAGE_TO_3D"
	GenerationTextTo3D         GenerationType = "TEXT_TO_3D"
	GenerationRealtime         GenerationType = "REALTIME"
	GenerationVectorizeImage   GenerationType = "VECTORIZE_IMAGE"
	GenerationAnimateMesh      GenerationType = "ANIMATE_MESH"
	GenerationRemoveBackground GenerationType = "REMOVE_BACKGROUND"
	GenerationTextToSpeech     GenerationType = "TEXT_TO_SPEECH"
	GenerationSoundEffect      GenerationType = "SOUND_EFFECT"
)

// generationTypes is the closed set accepted by Valid.
var generationTypes = map[GenerationType]struct{}{
	GenerationCreate: {}, GenerationRefill: {}, GenerationEdit: {},
	GenerationUpscale: {}, GenerationLipSync: {}, GenerationImageToVideo: {},
	GenerationUpscaleVideo: {}, GenerationImageTo3D: {}, GenerationTextTo3D: {},
	GenerationRealtime: {}, GenerationVectorizeImage: {}, GenerationAnimateMesh: {},
	GenerationRemoveBackground: {}, GenerationTextToSpeech: {}, GenerationSoundEffect: {},
}

// Valid reports whether t is one of the service's generation types.
func (t GenerationType) Valid() bool {
	_, ok := generationTypes[t]
	return ok
}

// JobState is the lifecycle state of a generation job. A job moves strictly
// forward: Created -> Admitted -> Submitted -> Polling -> one terminal state.
type JobState string

const (
	JobStateCreated      JobState = "created"
	JobStateAdmitted     JobState = "admitted"
	JobStateSubmitted    JobState = "submitted"
	JobStatePolling      JobState = "polling"
	JobStateSucceeded    JobState = "succeeded"
	JobStateFailed       JobState = "failed"
	JobStateTimedOut     JobState = "timed_out"
	JobStateQuotaBlocked JobState = "quota_blocked"
	JobStateCancelled    JobState = "cancelled"
)

// Terminal reports whether the state ends the job's lifecycle.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateTimedOut, JobStateQuotaBlocked, JobStateCancelled:
		return true
	default:
		return false
	}
}

// InferenceState is the remote service's view of a generation, already
// normalized from the wire statuses.
type InferenceState string

const (
	InferenceRunning   InferenceState = "running"
	InferenceComplete  InferenceState = "complete"
	InferenceFailed    InferenceState = "failed"
	InferenceCancelled InferenceState = "cancelled"
)

// Terminal reports whether the remote will make no further progress.
func (s InferenceState) Terminal() bool {
	return s != InferenceRunning
}
