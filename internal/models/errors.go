package models

import (
	"errors"
	"fmt"
)

var (
	ErrOperationAction = errors.New("operation action failed")
	ErrNetworkAction   = errors.New("network action failed")

	ErrNotFound        = errors.New("not found")
	ErrUniqueViolation = errors.New("unique violation")
	ErrInvalidInput    = errors.New("invalid input")

	ErrTicketNotFound = errors.New("ticket not found")
	ErrUploadFailed   = errors.New("remote upload failed")

	ErrDoRetry    = errors.New("it's OK to retry")
	ErrDoNotRetry = errors.New("don't try retrying")
)

const UniqueViolation = "23505"

func NewError(loc, msg string, err error) error {
	return fmt.Errorf("%s: %s: %w", loc, msg, err)
}

// Retryable reports whether the error should go back to the queue.
// Anything not explicitly marked permanent is worth another delivery.
func Retryable(err error) bool {
	if errors.Is(err, ErrDoRetry) {
		return true
	}
	if errors.Is(err, ErrDoNotRetry) {
		return false
	}
	if errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrInvalidInput) {
		return false
	}
	return true
}
