package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Availability is the capacity of an item over a date range.
type Availability struct {
	ItemID           int64     `json:"item_id"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TotalQuantity    int       `json:"total_quantity"`
	Available        int       `json:"available"`
	BorrowedCount    int       `json:"borrowed_count"`
	OverlappingCount int       `json:"overlapping_count"`
}

// Calculate sums the quantities of capacity-holding reservations overlapping
// [start, end), skipping excludeID when positive. Overlaps are summed rather
// than resolved per day, so the result never overstates free capacity.
func Calculate(total int, reservations []model.Reservation, start, end time.Time, excludeID int64) Availability {
	a := Availability{
		From:          start,
		To:            end,
		TotalQuantity: total,
	}
	for i := range reservations {
		r := &reservations[i]
		if excludeID > 0 && r.ID == excludeID {
			continue
		}
		if !r.Status.HoldsCapacity() || !r.Overlaps(start, end) {
			continue
		}
		a.BorrowedCount += r.Quantity
		a.OverlappingCount++
	}
	a.Available = max(0, total-a.BorrowedCount)
	return a
}

// ComputeAvailability returns how many units of an item are free over
// [start, end). A positive excludeID leaves that reservation out of the count.
// Callers validate that start is before end.
func (s *Service) ComputeAvailability(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (*Availability, error) {
	item, err := store.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return computeAvailability(ctx, s.DB, item, model.Day(start), model.Day(end), excludeID)
}

func computeAvailability(ctx context.Context, q store.Querier, item *model.Item, start, end time.Time, excludeID int64) (*Availability, error) {
	holds, err := store.ListOverlappingHolds(ctx, q, item.ID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	a := Calculate(item.TotalQuantity, holds, start, end, excludeID)
	a.ItemID = item.ID
	return &a, nil
}
