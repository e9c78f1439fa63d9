package service

import (
	"errors"
	"fmt"
)

// Error kinds returned by the lifecycle.  Anything else a method returns
// is an internal failure.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidAction = errors.New("invalid action")
	ErrBadCredential = errors.New("invalid username or password")
)

// ValidationError is a state or input conflict with a fixed reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is matches any ValidationError with the same reason, so callers can use
// errors.Is against the sentinels below.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	ErrNotOwner         = &ValidationError{Reason: "not owner"}
	ErrMultipleCanteens = &ValidationError{Reason: "multiple canteens"}
	ErrHoldExpired      = &ValidationError{Reason: "expired; released"}
	ErrInvalidTimeBand  = &ValidationError{Reason: "invalid time band"}
	ErrEmptyCart        = &ValidationError{Reason: "empty cart"}
	ErrTotalTooLarge    = &ValidationError{Reason: "total price too large"}
)

// Reasons carried by NotAvailableError.
const (
	ReasonNotAvailable = "Not available"
	ReasonOutOfStock   = "Out of stock"
)

// NotAvailableError reports an item that cannot be held.
type NotAvailableError struct {
	ItemID int32
	Name   string
	Reason string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("%s: %s (item %d)", e.Reason, e.Name, e.ItemID)
}
