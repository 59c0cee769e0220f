package model

import "time"

// Notification is an outbox entry addressed to a user about a reservation.
type Notification struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	ReservationID *int64     `json:"reservation_id,omitempty"`
	Kind          string     `json:"kind"`
	Message       string     `json:"message"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

// Notification kinds.
const (
	NotifySubmitted = "reservation_submitted"
	NotifyApproved  = "reservation_approved"
	NotifyRejected  = "reservation_rejected"
	NotifyBorrowed  = "reservation_borrowed"
	NotifyReturned  = "reservation_returned"
)
