package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
	ErrProductUnavailable     = errors.New("product is no longer available")
	ErrInvalidPaymentMethod   = errors.New("unsupported payment method")
	ErrEmptyOrder             = errors.New("no items to checkout")
	ErrInvalidStateTransition = errors.New("illegal order status transition")
	ErrConflict               = errors.New("lost a concurrent update race")
	ErrUnauthorized           = errors.New("actor is not permitted to act on this entity")
)

// ValidationError names the request fields that are missing or malformed
// so the caller can surface field-level messages to the end user.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
	}
	return e.Message
}

func missingFieldsError(fields []string) *ValidationError {
	return &ValidationError{Message: "missing required delivery fields", Fields: fields}
}
