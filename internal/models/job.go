package models

import (
	"time"
)

// JobStatus is the pipeline state of a single download.
type JobStatus string

const (
	StatusIdle       JobStatus = "idle"
	StatusExtracting JobStatus = "extracting"
	StatusReady      JobStatus = "ready"
	StatusStreamed   JobStatus = "streamed"
	StatusFailed     JobStatus = "failed"
)

// Job: one pass of a URL through the download pipeline
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    JobStatus `json:"status"`
	Filename  string    `json:"filename"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// DownloadRequest is the submitted form.
type DownloadRequest struct {
	URL string `json:"url" form:"url"`
}

// ExtractionResult is what the extraction engine reports it wrote.
type ExtractionResult struct {
	Title      string
	Extension  string
	SourcePath string
}

// SanitizedFile is the file as it is handed to the client.
type SanitizedFile struct {
	DisplayName string
	MimeType    string
	ContentPath string
}
