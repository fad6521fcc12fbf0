package services

import (
	"errors"
	"net/http"
)

// Business-rule failures. All of them are detected before any write, so a
// handler that sees one of these can report it knowing no partial state was
// left behind.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrOverRepayment       = errors.New("payment amount exceeds credit used")
	ErrDuplicateCard       = errors.New("card number already exists in another card")
	ErrInvalidLimit        = errors.New("invalid credit limit")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrInvalidOperation    = errors.New("operation not supported for this entity")
	ErrAccessDenied        = errors.New("access denied")
	ErrProcessorRejected   = errors.New("payment processor rejected registration")
)

// statusForError maps a business error to its HTTP status. Unknown errors
// are treated as internal failures.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrProcessorRejected):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrCreditLimitExceeded),
		errors.Is(err, ErrOverRepayment),
		errors.Is(err, ErrDuplicateCard),
		errors.Is(err, ErrInvalidLimit),
		errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sendBusinessError writes the mapped status for err, hiding internal error
// text from clients.
func sendBusinessError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred. Please try again."
	}
	SendErrorResponse(w, message, status, nil)
}
