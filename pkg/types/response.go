package types

type SuccessEnvelope struct {
	Data any `json:"data"`
	// Warnings carries non-fatal, user-visible notices (e.g. a reset history).
	Warnings []string `json:"warnings,omitempty"`
}

// APIError is the body of every failed request. RequestID matches the X-Request-Id header so a
// patient's report can be traced to the server logs.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
