package model

import "time"

// Reservation is a borrow request for some quantity of an item over a date range.
// The range is half-open: the item is due back on ReturnDate.
type Reservation struct {
	ID               int64             `json:"id"`
	RequestCode      string            `json:"request_code"`
	ItemID           int64             `json:"item_id"`
	BorrowerID       int64             `json:"borrower_id"`
	Quantity         int               `json:"quantity"`
	BorrowDate       time.Time         `json:"borrow_date"`
	ReturnDate       time.Time         `json:"return_date"`
	Purpose          string            `json:"purpose"`
	Notes            string            `json:"notes,omitempty"`
	Status           ReservationStatus `json:"status"`
	ActualReturnDate *time.Time        `json:"actual_return_date,omitempty"`
	ReviewedBy       *int64            `json:"reviewed_by,omitempty"`
	ReviewNote       string            `json:"review_note,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName     string `json:"item_name,omitempty"`
	BorrowerName string `json:"borrower_name,omitempty"`
}

// Overlaps reports whether the reservation's [BorrowDate, ReturnDate) range
// intersects [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return Overlaps(r.BorrowDate, r.ReturnDate, start, end)
}

// Overlaps reports whether [a, b) and [c, d) intersect.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

// ReservationStatus is a reservation's lifecycle state.
type ReservationStatus string

// Reservation statuses.
const (
	ReservationPending  ReservationStatus = "pending"
	ReservationApproved ReservationStatus = "approved"
	ReservationBorrowed ReservationStatus = "borrowed"
	ReservationReturned ReservationStatus = "returned"
	ReservationRejected ReservationStatus = "rejected"
)

// ReservationStatuses lists every status in lifecycle order.
var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationApproved,
	ReservationBorrowed,
	ReservationReturned,
	ReservationRejected,
}

// CapacityHoldingStatuses are the statuses that count against an item's stock.
var CapacityHoldingStatuses = []ReservationStatus{
	ReservationApproved,
	ReservationBorrowed,
}

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationApproved, ReservationBorrowed,
		ReservationReturned, ReservationRejected:
		return true
	}
	return false
}

// HoldsCapacity reports whether a reservation in this status counts against stock.
func (s ReservationStatus) HoldsCapacity() bool {
	switch s {
	case ReservationApproved, ReservationBorrowed:
		return true
	case ReservationPending, ReservationReturned, ReservationRejected:
		return false
	}
	return false
}

// Terminal reports whether no transition leaves this status.
func (s ReservationStatus) Terminal() bool {
	return len(s.Next()) == 0
}

// Next returns the statuses reachable from s in one step.
func (s ReservationStatus) Next() []ReservationStatus {
	switch s {
	case ReservationPending:
		return []ReservationStatus{ReservationApproved, ReservationRejected}
	case ReservationApproved:
		return []ReservationStatus{ReservationBorrowed, ReservationRejected}
	case ReservationBorrowed:
		return []ReservationStatus{ReservationReturned}
	case ReservationReturned, ReservationRejected:
		return nil
	}
	return nil
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, next := range s.Next() {
		if next == target {
			return true
		}
	}
	return false
}
