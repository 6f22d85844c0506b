package domain

// APIError is the RFC 7807 problem body returned for every failed request
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Problem types
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeNotFound      = "not_found"
	ErrorTypeBadRequest    = "bad_request"
	ErrorTypeConflict      = "conflict"
	ErrorTypeUnauthorized  = "unauthorized"
	ErrorTypeForbidden     = "forbidden"
	ErrorTypeUnprocessable = "unprocessable"
	ErrorTypeInternal      = "internal_error"
)

// validationMessages covers the validator tags used by the request DTOs
var validationMessages = map[string]string{
	"required": "This field is required",
	"max":      "Exceeds maximum length",
	"min":      "Must not be empty",
	"datetime": "Must be a date in " + DateFormat + " format",
	"oneof":    "Must be one of PENDING, WORK_DONE, NOT_DONE",
}

// ValidationMessage returns the message shown for a failed validator tag
func ValidationMessage(tag string) string {
	if msg, ok := validationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
