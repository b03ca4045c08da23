package models

// These structs define the JSON payloads exchanged with callers and with the
// storage trigger.

// ErrorResponse is the body of every non-2xx response from /analyse.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// GCSEvent is the data of a storage object-finalized CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// UploadedResult is what the storage trigger reports for one object.
type UploadedResult struct {
	RequestID    string `json:"requestId"`
	Status       string `json:"status"`
	OutputGCSUri string `json:"outputGcsUri,omitempty"`
}
