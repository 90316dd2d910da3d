// Package pipeline runs the asynchronous document ingestion flow:
// download or parse, transcribe when the source is a video, then build
// the summarization tree.
package pipeline

import "fmt"

// SourceType distinguishes the two ingestion flows.
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourceFile SourceType = "file"
)

// Job is one queued ingestion request. IDs are assigned at submission
// so the client can poll before a worker picks the job up.
type Job struct {
	TaskID string
	DocID  string
	Source SourceType

	// URL flow.
	URL string

	// File flow.
	Filename string
	Data     []byte

	// Optional display name override.
	Title string

	// Intermediate artifacts, removed after the job finishes.
	workDir        string
	videoPath      string
	audioPath      string
	transcriptPath string
}

// NewURLJob creates a job for a remote video.
func NewURLJob(url string) *Job {
	return &Job{
		TaskID: generateULID(),
		DocID:  generateULID(),
		Source: SourceURL,
		URL:    url,
	}
}

// NewFileJob creates a job for an uploaded document.
func NewFileJob(filename string, data []byte) *Job {
	return &Job{
		TaskID:   generateULID(),
		DocID:    generateULID(),
		Source:   SourceFile,
		Filename: filename,
		Data:     data,
	}
}

// SourceRef is what error messages and logs call the job's input.
func (j *Job) SourceRef() string {
	if j.Source == SourceURL {
		return j.URL
	}
	return j.Filename
}

// Result is the payload stored on the task when ingestion completes.
type Result struct {
	DocID        string `json:"doc_id"`
	DocName      string `json:"doc_name"`
	DocType      string `json:"doc_type"`
	SourceURL    string `json:"source_url,omitempty"`
	DocumentTree any    `json:"document_tree"`
}

func (r Result) String() string {
	return fmt.Sprintf("doc %s (%s)", r.DocID, r.DocName)
}
