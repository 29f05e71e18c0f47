package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies scheduling failures into the stable categories
// surfaced at the API boundary.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindExternalService    ErrorKind = "external_service"
	KindConflictInfeasible ErrorKind = "conflict_infeasible"
	KindExpiredProposal    ErrorKind = "expired_proposal"
	KindUnknown            ErrorKind = "unknown"
)

// Sentinel errors for common scheduling failure conditions.
var (
	// ErrNotFound is returned when an agent, event, or proposal id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrExpiredProposal is returned when a negotiation session is no longer pending.
	ErrExpiredProposal = errors.New("proposal expired")

	// ErrConflictInfeasible is returned when no relocation-based proposal can be
	// generated; the caller may still force-schedule.
	ErrConflictInfeasible = errors.New("conflicts cannot be resolved by relocation")

	// ErrExternalService is returned when the calendar collaborator is
	// unreachable or errored after the retry budget is exhausted.
	ErrExternalService = errors.New("external calendar service failed")

	// ErrSessionNotPending is returned when transitioning a session that has
	// already reached a terminal state.
	ErrSessionNotPending = errors.New("negotiation session is not pending")
)

// SchedulingError wraps an error with a stable kind and a human-readable message.
type SchedulingError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation failure for a malformed request.
func NewValidationError(format string, args ...any) *SchedulingError {
	return &SchedulingError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a not-found failure wrapping ErrNotFound.
func NewNotFoundError(format string, args ...any) *SchedulingError {
	return &SchedulingError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrNotFound}
}

// NewExternalServiceError wraps a calendar collaborator failure.
func NewExternalServiceError(message string, err error) *SchedulingError {
	if err == nil {
		err = ErrExternalService
	}
	return &SchedulingError{Kind: KindExternalService, Message: message, Err: err}
}

// NewConflictInfeasibleError creates a failure for unresolvable conflicts.
func NewConflictInfeasibleError(message string) *SchedulingError {
	return &SchedulingError{Kind: KindConflictInfeasible, Message: message, Err: ErrConflictInfeasible}
}

// NewExpiredProposalError creates a failure for a non-pending session.
func NewExpiredProposalError(message string) *SchedulingError {
	return &SchedulingError{Kind: KindExpiredProposal, Message: message, Err: ErrExpiredProposal}
}

// KindOf returns the stable kind of an error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var schedErr *SchedulingError
	if errors.As(err, &schedErr) {
		return schedErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExpiredProposal), errors.Is(err, ErrSessionNotPending):
		return KindExpiredProposal
	case errors.Is(err, ErrConflictInfeasible):
		return KindConflictInfeasible
	case errors.Is(err, ErrExternalService):
		return KindExternalService
	}
	return KindUnknown
}

// IsNotFound checks whether the error is a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsExpiredProposal checks whether the error is an expired-proposal failure.
func IsExpiredProposal(err error) bool {
	return errors.Is(err, ErrExpiredProposal) || errors.Is(err, ErrSessionNotPending)
}

// IsExternalService checks whether the error is a collaborator failure.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// IsValidation checks whether the error is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
