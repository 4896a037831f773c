package domain

import "time"

// DateLayout is the calendar date encoding used for reservation dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string {
	return string(s)
}

// Reservation is a single booking request for a time slot.
// ApprovedBy/ApprovedAt are only set once approved, RejectedAt only once rejected.
type Reservation struct {
	ID          int64
	Name        string
	Email       string
	Date        string
	Time        string
	Duration    string
	Status      Status
	RequestedAt time.Time
	ApprovedBy  string
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
}

// NewReservation carries the caller-supplied fields of a reservation request.
type NewReservation struct {
	Name        string
	Email       string
	Date        string
	Time        string
	Duration    string
	RequestedAt time.Time
}

// ValidDate reports whether s is a real calendar date encoded as YYYY-MM-DD.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
