package models

import "time"

// Status is a step of the per-request state machine.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusRasterized Status = "RASTERIZED"
	StatusPublished  Status = "PUBLISHED"
	StatusExtracted  Status = "EXTRACTED"
	StatusResponded  Status = "RESPONDED"
	StatusFailed     Status = "FAILED"
)

// Analysis is the Firestore record of one PDF analysis.
// It tracks the status and metadata of the request.
type Analysis struct {
	RequestID        string    `firestore:"requestId"`
	Source           string    `firestore:"source,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	FileHash         string    `firestore:"fileHash,omitempty"`
	FileSize         int64     `firestore:"fileSize,omitempty"`
	Status           Status    `firestore:"status"`
	PublishMode      string    `firestore:"publishMode,omitempty"`
	Model            string    `firestore:"model,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	SchemaValid      bool      `firestore:"schemaValid"`
	ErrorKind        string    `firestore:"errorKind,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}

// StatusUpdate carries the fields that change on a transition. Zero values
// are left untouched.
type StatusUpdate struct {
	Status       Status
	PageCount    int
	SchemaValid  *bool
	ErrorKind    string
	ErrorDetails string
}
