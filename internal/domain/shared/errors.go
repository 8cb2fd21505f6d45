package shared

import "errors"

// ErrorKind classifies a domain error so callers can decide how to surface it
type ErrorKind string

const (
	// KindValidation is a malformed input the user can correct
	KindValidation ErrorKind = "validation"
	// KindConflict is a state conflict (duplicate number, already linked, closed dossier)
	KindConflict ErrorKind = "conflict"
	// KindNotFound means the referenced record does not exist
	KindNotFound ErrorKind = "not_found"
	// KindForbidden means the actor's scope or role does not allow the operation
	KindForbidden ErrorKind = "forbidden"
	// KindDegraded is a non-blocking condition on derived data
	KindDegraded ErrorKind = "degraded"
	// KindFatal aborts the operation (lock subsystem or persistence unreachable)
	KindFatal ErrorKind = "fatal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// This lets errors.Is match errors built with WithMessage against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error carrying a more specific message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message, Kind: e.Kind}
}

// NewDomainError creates a new validation-kind domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewDomainErrorOfKind creates a new domain error with an explicit kind
func NewDomainErrorOfKind(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// KindOf returns the kind of err, or KindFatal when err is not a DomainError
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// Common domain errors
var (
	ErrNotFound            = NewDomainErrorOfKind(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainErrorOfKind(KindConflict, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainErrorOfKind(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrForbidden           = NewDomainErrorOfKind(KindForbidden, "FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainErrorOfKind(KindConflict, "INVALID_STATE", "Operation not allowed in current state")

	ErrAlreadyLinked       = NewDomainErrorOfKind(KindConflict, "ALREADY_LINKED", "Requester is already linked to this property")
	ErrDossierClosed       = NewDomainErrorOfKind(KindConflict, "DOSSIER_CLOSED", "Dossier is closed")
	ErrDuplicateNumber     = NewDomainErrorOfKind(KindConflict, "DUPLICATE_NUMBER", "Document number is already used by an active document")
	ErrInvalidNumberFormat = NewDomainError("INVALID_NUMBER_FORMAT", "Document number does not match the expected format")
	ErrLockTimeout         = NewDomainErrorOfKind(KindConflict, "LOCK_TIMEOUT", "Resource is busy, please try again")
	ErrTariffCorrupted     = NewDomainErrorOfKind(KindFatal, "TARIFF_CORRUPTED", "District tariff table is corrupted")
	ErrSequenceExhausted   = NewDomainErrorOfKind(KindConflict, "SEQUENCE_EXHAUSTED", "Number sequence is exhausted for this scope")
)
