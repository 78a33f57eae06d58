package client

import "fmt"

// APIError is a failed API call decoded from the error envelope.
type APIError struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("API error: %s (status: %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether the assessment or finding does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsConflict reports whether the operation clashed with the assessment's
// current status, e.g. canceling one that already finished.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == 409
}

// IsValidationError reports whether the request was rejected before
// execution started.
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == 400
}

// IsRateLimited reports whether the client should back off and retry.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError reports whether the failure was on the server side.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
