package domain

import (
	"errors"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrLimitExceeded      = errors.New("plan limit reached")
	ErrInsufficientStock  = errors.New("quantity exceeds current stock")
	ErrTransport          = errors.New("business api unavailable")
	ErrStateCorruption    = errors.New("conversation state is inconsistent")
	ErrValidation         = errors.New("validation failed")
	ErrLockNotAcquired    = errors.New("session is busy")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrCompanyExists      = errors.New("user already owns a company")
	ErrNoCompany          = errors.New("user has no company")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)

// ValidationError carries user-facing problems found while checking free-text input.
// The messages are shown verbatim to the user.
type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a problem; nil-safe for chaining in parsers.
func (e *ValidationError) Add(problem string) { e.Problems = append(e.Problems, problem) }

// OrNil returns nil when no problem was collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}
