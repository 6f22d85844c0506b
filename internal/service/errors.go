package service

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrProjectNotFound is returned when a project does not exist
	ErrProjectNotFound = fmt.Errorf("project not found: %w", ErrNotFound)

	// ErrAlertNotFound is returned when an alert does not exist
	ErrAlertNotFound = fmt.Errorf("alert not found: %w", ErrNotFound)

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when the stage graph rejects a move
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrInvalidState is returned when an operation is not allowed in the project's current stage
	ErrInvalidState = errors.New("operation not allowed in current stage")

	// ErrInvalidAmount is returned for non-positive amounts or amounts finer than a cent
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidField is returned when a required business field is missing
	ErrInvalidField = errors.New("required field missing")

	// ErrDuplicateContact is returned when another project already uses the contact number
	ErrDuplicateContact = errors.New("a project with this contact number already exists")

	// ErrAlertAlreadyDismissed is returned when dismissing an inactive alert
	ErrAlertAlreadyDismissed = errors.New("alert already dismissed")

	// ErrInternalConsistency marks a failed system-triggered follow-on transition
	ErrInternalConsistency = errors.New("internal consistency error")
)
