package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Reconciliation is an item's recomputed cached state.
type Reconciliation struct {
	ItemID    int64            `json:"item_id"`
	Available int              `json:"available"`
	Status    model.ItemStatus `json:"status"`
	Changed   bool             `json:"changed"`
}

// Reconcile recomputes an item's available count and status from its
// reservations and persists them. It is idempotent.
func (s *Service) Reconcile(ctx context.Context, itemID int64) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.withItemTx(ctx, itemID, func(q store.Querier) error {
		item, err := store.GetItem(ctx, q, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		rec, err = reconcile(ctx, q, item, s.today())
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ReconcileAll reconciles every non-archived item, releasing capacity held by
// reservations that are past their return date.
func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := store.ListActiveItemIDs(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	results := make([]Reconciliation, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			return results, fmt.Errorf("reconciling item %d: %w", id, err)
		}
		results = append(results, *rec)
	}
	return results, nil
}

// reconcile is the only writer of an item's available count and status.
// Holds whose return date is before today no longer count.
func reconcile(ctx context.Context, q store.Querier, item *model.Item, today time.Time) (*Reconciliation, error) {
	held, err := store.SumActiveHolds(ctx, q, item.ID, today)
	if err != nil {
		return nil, err
	}

	available := max(0, item.TotalQuantity-held)
	status := model.DeriveItemStatus(available, item.Condition)
	rec := &Reconciliation{
		ItemID:    item.ID,
		Available: available,
		Status:    status,
		Changed:   available != item.Available || status != item.Status,
	}
	if !rec.Changed {
		return rec, nil
	}

	if err := store.SetItemAvailability(ctx, q, item.ID, available, status); err != nil {
		return nil, err
	}
	slog.Debug("item reconciled", "item", item.ID, "available", available, "status", status)
	return rec, nil
}
