package app

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the policy evaluated to Deny. Surfaced as 403,
	// never logged as a system error.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTransition means the requested status change is not permitted
	// by the document state machine, or the document moved concurrently.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
