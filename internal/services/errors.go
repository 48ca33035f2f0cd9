package services

import (
	"errors"
	"sort"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid           ErrorCode = "invalid"
	ErrorInvalidCredential ErrorCode = "invalid_credential"
	ErrorUnauthorized      ErrorCode = "unauthorized"
	ErrorNotFound          ErrorCode = "not_found"
	ErrorConflict          ErrorCode = "conflict"
	ErrorSessionMissing    ErrorCode = "session_missing"
)

// ServiceError is the error type handlers map onto HTTP statuses. Fields holds
// per-field validation messages.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Fields  map[string]string
}

func (e *ServiceError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewInvalidCredentialError(msg string) error {
	return &ServiceError{Code: ErrorInvalidCredential, Message: msg}
}

// NewValidationError reports field errors; nil when fields is empty.
func NewValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ServiceError{Code: ErrorInvalid, Message: "validation failed", Fields: fields}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrSessionMissing means no run state exists for the token; the
	// participant has to log in again.
	ErrSessionMissing = &ServiceError{Code: ErrorSessionMissing, Message: "run session missing"}
	// ErrRunComplete is returned when a trial is requested or answered after the last one.
	ErrRunComplete = &ServiceError{Code: ErrorConflict, Message: "run already complete"}
	// ErrRunIncomplete is returned when completion is requested with trials left.
	ErrRunIncomplete = &ServiceError{Code: ErrorConflict, Message: "run not complete"}
	// ErrStaleSubmission flags a response for a trial other than the current one.
	ErrStaleSubmission = &ServiceError{Code: ErrorConflict, Message: "response does not match the current trial"}
	// ErrDuplicateSubmission flags a second response for an already recorded position.
	ErrDuplicateSubmission = &ServiceError{Code: ErrorConflict, Message: "response already recorded for this trial"}
	// ErrTrialNotFound means a trial id held by a run session has no row.
	ErrTrialNotFound = errors.New("trial in run session not found")
)
