package errors

// StatusError is the value of the status field in every JSON error body.
const StatusError = "error"

// APIError is the JSON body of every non-plain-text error response.
type APIError struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]any) *APIError {
	return &APIError{
		Status:  StatusError,
		Message: message,
		Details: details,
	}
}
