package domain

import "time"

// Action names an administrator decision on a pending reservation.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Transition is the closed set of mutations a store may apply to a reservation.
// Only ApproveFields and RejectFields implement it.
type Transition interface {
	Target() Status
	Validate() error
	isTransition()
}

// ApproveFields moves a pending reservation to approved.
type ApproveFields struct {
	ApprovedBy string
	ApprovedAt time.Time
}

func (ApproveFields) Target() Status { return StatusApproved }

func (f ApproveFields) Validate() error {
	if f.ApprovedBy == "" {
		return &ValidationError{Field: "approvedBy", Rule: RuleRequired, Message: "approvedBy is required"}
	}
	if f.ApprovedAt.IsZero() {
		return &ValidationError{Field: "approvedAt", Rule: RuleRequired, Message: "approvedAt is required"}
	}
	return nil
}

func (ApproveFields) isTransition() {}

// RejectFields moves a pending reservation to rejected.
type RejectFields struct {
	RejectedAt time.Time
}

func (RejectFields) Target() Status { return StatusRejected }

func (f RejectFields) Validate() error {
	if f.RejectedAt.IsZero() {
		return &ValidationError{Field: "rejectedAt", Rule: RuleRequired, Message: "rejectedAt is required"}
	}
	return nil
}

func (RejectFields) isTransition() {}

// ValidateTransition checks that t is a usable payload.
func ValidateTransition(t Transition) error {
	if t == nil {
		return ErrNoFieldsToUpdate
	}
	return t.Validate()
}

// CheckTransition decides whether action may be applied to r in its current state.
// It returns nil only for pending reservations.
func CheckTransition(r Reservation, action Action) error {
	if r.Status == StatusPending {
		return nil
	}
	return &ConflictError{
		ReservationID: r.ID,
		Action:        action,
		Current:       r.Status,
		ApprovedBy:    r.ApprovedBy,
	}
}

// Apply returns a copy of r with t applied. It does not check the current status.
func Apply(r Reservation, t Transition) Reservation {
	switch f := t.(type) {
	case ApproveFields:
		at := f.ApprovedAt
		r.Status = StatusApproved
		r.ApprovedBy = f.ApprovedBy
		r.ApprovedAt = &at
	case RejectFields:
		at := f.RejectedAt
		r.Status = StatusRejected
		r.RejectedAt = &at
	}
	return r
}
