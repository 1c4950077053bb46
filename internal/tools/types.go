package tools

// Status reports whether a tool call succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorCode classifies tool failures for the model.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "ValidationError"
	ErrCodeBackend    ErrorCode = "BackendUnavailable"
	ErrCodePermission ErrorCode = "PermissionDenied"
	ErrCodeNotFound   ErrorCode = "NotFound"
	ErrCodeInternal   ErrorCode = "InternalError"
)

// Error is the structured error payload inside a failed Result. It gives
// the model a code it can branch on and a message it can relay.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil tool error>"
	}
	if e.Code == "" {
		return e.Message
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Result is the uniform envelope every tool returns to the model.
// Message carries guidance the model should act on, such as preferring a
// different tool after a backend failure.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}
