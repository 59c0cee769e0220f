package lending

import (
	"errors"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// Domain errors. Callers match them with errors.Is.
var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidDateRange         = errors.New("invalid date range")
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrItemUnavailable          = errors.New("item is not available for lending")
	ErrInvalidItem              = errors.New("invalid item")
	ErrItemInUse                = errors.New("item has active reservations")
	ErrItemBusy                 = errors.New("item is locked by another request")
)

// InsufficientAvailabilityError reports a failed capacity check.
type InsufficientAvailabilityError struct {
	Requested   int
	Available   int
	Borrowed    int
	Overlapping int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability: requested %d, only %d available (%d borrowed across %d overlapping reservations)",
		e.Requested, e.Available, e.Borrowed, e.Overlapping)
}

func (e *InsufficientAvailabilityError) Is(target error) bool {
	return target == ErrInsufficientAvailability
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From model.ReservationStatus
	To   model.ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
