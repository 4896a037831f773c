package domain

import (
	"errors"
	"fmt"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrUnauthorizedAdmin   = errors.New("unauthorized approval attempt")
	ErrStatusChanged       = errors.New("reservation status changed")
	ErrInvalidID           = errors.New("invalid id")
	ErrNoFieldsToUpdate    = &ValidationError{Rule: RuleRequired, Message: "no fields to update"}
)

// Validation rules reported in ValidationError.Rule.
const (
	RuleRequired = "required"
	RuleEmail    = "email"
	RuleDate     = "date"
)

// ValidationError reports missing or malformed client input.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError reports a transition requested on a reservation that is no longer pending.
type ConflictError struct {
	ReservationID int64
	Action        Action
	Current       Status
	ApprovedBy    string
}

func (e *ConflictError) Error() string {
	switch e.Current {
	case StatusApproved:
		if e.Action == ActionApprove {
			return fmt.Sprintf("reservation already approved by %s", e.ApprovedBy)
		}
		return "cannot reject an approved reservation"
	case StatusRejected:
		if e.Action == ActionReject {
			return "reservation already rejected"
		}
		return "cannot approve a rejected reservation"
	default:
		return fmt.Sprintf("current status (%s) does not allow %s", e.Current, e.Action)
	}
}

// PersistenceError wraps a store read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotificationError reports a message that could not be delivered to one recipient.
type NotificationError struct {
	Recipient string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Recipient, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
