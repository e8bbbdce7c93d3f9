package app

import "fmt"

// DomainError carries an HTTP status and a stable machine code alongside the
// user-facing message. mapError passes it through to the response envelope
// unchanged, so the service layer can produce exact client errors without
// importing net/http semantics everywhere.
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
