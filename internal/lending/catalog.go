package lending

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ItemFields are the editable catalog fields of an item.
type ItemFields struct {
	Name        string
	Description string
	Category    string
	Condition   model.Condition
}

func (f *ItemFields) normalize() error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if f.Condition == "" {
		f.Condition = model.ConditionGood
	}
	if !f.Condition.Valid() {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidItem, f.Condition)
	}
	return nil
}

// CreateItem adds an item to the catalog with the given stock.
func (s *Service) CreateItem(ctx context.Context, f ItemFields, total int) (*model.Item, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: total quantity must not be negative", ErrInvalidItem)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.CreateItem(ctx, tx, store.NewItem{
		Name:          f.Name,
		Description:   f.Description,
		Category:      f.Category,
		TotalQuantity: total,
		Condition:     f.Condition,
	})
	if err != nil {
		return nil, err
	}
	if _, err := reconcile(ctx, tx, item, s.today()); err != nil {
		return nil, err
	}
	if item, err = store.GetItem(ctx, tx, item.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	slog.Info("item created", "id", item.ID, "name", item.Name, "total", item.TotalQuantity)
	return item, nil
}

// UpdateItem changes an item's catalog fields and reconciles, since a
// condition change can move it in or out of maintenance.
func (s *Service) UpdateItem(ctx context.Context, id int64, f ItemFields) (*model.Item, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return s.changeItem(ctx, id, func(q store.Querier) error {
		return store.UpdateItem(ctx, q, id, f.Name, f.Description, f.Category, f.Condition)
	})
}

// SetQuantity changes an item's total stock. Shrinking below the quantity
// currently held leaves zero units available.
func (s *Service) SetQuantity(ctx context.Context, id int64, total int) (*model.Item, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: total quantity must not be negative", ErrInvalidItem)
	}
	return s.changeItem(ctx, id, func(q store.Querier) error {
		return store.SetItemQuantity(ctx, q, id, total)
	})
}

// ArchiveItem hides an item from the catalog. Items with approved or
// borrowed reservations not yet due back cannot be archived.
func (s *Service) ArchiveItem(ctx context.Context, id int64) error {
	return s.withItemTx(ctx, id, func(q store.Querier) error {
		item, err := store.GetItem(ctx, q, id)
		if err != nil {
			return err
		}
		if item == nil || item.ArchivedAt != nil {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		held, err := store.SumActiveHolds(ctx, q, id, s.today())
		if err != nil {
			return err
		}
		if held > 0 {
			return fmt.Errorf("%s: %d units held: %w", item.Name, held, ErrItemInUse)
		}
		if err := store.ArchiveItem(ctx, q, id); err != nil {
			return err
		}
		slog.Info("item archived", "id", id, "name", item.Name)
		return nil
	})
}

func (s *Service) changeItem(ctx context.Context, id int64, change func(q store.Querier) error) (*model.Item, error) {
	var item *model.Item
	err := s.withItemTx(ctx, id, func(q store.Querier) error {
		cur, err := store.GetItem(ctx, q, id)
		if err != nil {
			return err
		}
		if cur == nil || cur.ArchivedAt != nil {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if err := change(q); err != nil {
			return err
		}
		if item, err = store.GetItem(ctx, q, id); err != nil {
			return err
		}
		if _, err := reconcile(ctx, q, item, s.today()); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
