package server

// SubmitRequest is the JSON body for POST /v1/analyses.
type SubmitRequest struct {
	DocumentID   string `json:"document_id"`
	UserID       string `json:"user_id"`
	JobType      string `json:"job_type"`
	DocumentText string `json:"document_text"`
	DocumentType string `json:"document_type"`
	Force        bool   `json:"force"`
}

// CancelRequest is the JSON body for POST /v1/analyses/:document_id/cancel.
type CancelRequest struct {
	UserID  string `json:"user_id"`
	JobType string `json:"job_type"`
	Reason  string `json:"reason"`
}

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
