package service

import "errors"

// ErrNotFound signals an unknown session, license or transaction ID.
// Handlers map it to 404, distinct from malformed input.
var ErrNotFound = errors.New("not found")

// ConflictError carries a machine-readable reason for a rejected state
// transition (duplicate cart item, re-settling a settled cart, empty-cart
// checkout). Handlers map it to 400 with the reason in the body.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// ValidationError signals input rejected at the boundary before any store
// mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
