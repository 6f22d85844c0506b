package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"go.uber.org/zap"
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "datetime":
		return "Must be a date in YYYY-MM-DD format"
	default:
		return domain.ValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusUnprocessableEntity:
		return domain.ErrorTypeUnprocessable
	default:
		return domain.ErrorTypeInternal
	}
}

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrDuplicateContact),
		errors.Is(err, service.ErrAlertAlreadyDismissed):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidField),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the status mapped from err. Internal errors are
// logged and their detail is not exposed.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		respondWithError(w, status, fallback)
		return
	}
	respondWithError(w, status, err.Error())
}

// parseUintParam reads a positive integer route parameter
func parseUintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return uint(id), nil
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// parseDate parses an optional YYYY-MM-DD value as a UTC midnight
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(domain.DateFormat, raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return &t, nil
}

// currentUser returns the authenticated caller or writes 401
func currentUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// decodeJSON decodes and validates a request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}
