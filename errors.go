package langpipe

import "fmt"

// Canonical error codes carried on APIError. BAD_REQUEST, RATE_LIMITED, and
// INTERNAL_SERVER_ERROR also appear on the wire in the error envelope.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	CodeUnsupportedModel    = "UNSUPPORTED_MODEL"
	CodeToolNotFound        = "TOOL_NOT_FOUND"
)

// APIError is the canonical error at the provider boundary. Transport and
// vendor failures inside a single call are caught at the invoker and
// re-raised as APIError; the Runner never swallows them.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// MapVendorError maps a non-2xx vendor response to a canonical APIError.
// 429 becomes RATE_LIMITED so callers can apply their own backoff; anything
// else keeps a machine-readable vendor code when one was parsed, and falls
// back to INTERNAL_SERVER_ERROR.
func MapVendorError(status int, vendorCode, message string) *APIError {
	if message == "" {
		message = "Error calling the model provider."
	}
	if status == 429 {
		return &APIError{
			Status:  429,
			Code:    CodeRateLimited,
			Message: "Rate limited by the model provider. Please try again later. " + message,
		}
	}
	code := vendorCode
	if code == "" {
		code = CodeInternalServerError
	}
	if status == 0 {
		status = 500
	}
	return &APIError{Status: status, Code: code, Message: message}
}

// UnsupportedProviderError means the vendor token of a model identifier did
// not resolve to a registered provider. A configuration bug, not retryable.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported model provider %q", e.Provider)
}

// UnsupportedModelError means the vendor is known but the model is not in
// its capability table.
type UnsupportedModelError struct {
	Provider string
	Model    string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("provider %q has no model %q", e.Provider, e.Model)
}

// ToolNotFoundError means the model requested a tool that was never
// registered with the Runner. Fatal for the turn; callers that registered
// the tool elsewhere can recover by disabling automatic tool execution.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found. If this is intentional, set RunTools to false to disable automatic tool execution", e.Tool)
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports a malformed request shape with field-level detail.
// Not retried; surfaced to the caller as BAD_REQUEST.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request body"
	}
	msg := "invalid request body:"
	for _, f := range e.Fields {
		msg += fmt.Sprintf(" %s: %s;", f.Field, f.Message)
	}
	return msg[:len(msg)-1]
}

// Add appends a field failure and returns the error for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Empty reports whether no field failures were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }
