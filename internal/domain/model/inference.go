package model

import "time"

// InferenceRef identifies a generation accepted by the service.
type InferenceRef struct {
	ID        string
	State     InferenceState
	CreatedAt time.Time
}

// InferenceStatus is a point-in-time answer to "how is generation X doing".
// Files is populated only once State is InferenceComplete.
type InferenceStatus struct {
	ID    string
	State InferenceState
	Files []GeneratedFile
}

// GeneratedFile is one output asset of a completed generation.
type GeneratedFile struct {
	ID   string
	URL  string
	Name string
}

// UploadTarget is a presigned destination for one reference file. The
// caller PUTs the bytes to URL, then refers to the file by its media URL.
type UploadTarget struct {
	URL      string
	FileID   string
	Filename string
}
