package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const itemColumns = `id, name, description, category, image_mime, total_quantity, available,
	status, condition, created_at, updated_at, archived_at`

// NewItem holds the catalog fields of an item being created.
type NewItem struct {
	Name          string
	Description   string
	Category      string
	TotalQuantity int
	Condition     model.Condition
}

// CreateItem creates a new item. Its available count starts at zero; the
// caller reconciles it against reservations.
func CreateItem(ctx context.Context, q Querier, n NewItem) (*model.Item, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, description, category, total_quantity, available, status, condition)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		n.Name, nullString(n.Description), nullString(n.Category), n.TotalQuantity,
		string(model.DeriveItemStatus(0, n.Condition)), string(n.Condition),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, including archived items.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	Status   model.ItemStatus
	Category string
}

// ListItems returns all non-archived items, optionally filtered.
func ListItems(ctx context.Context, q Querier, f ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE archived_at IS NULL`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListActiveItemIDs returns the IDs of all non-archived items.
func ListActiveItemIDs(ctx context.Context, q Querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM items WHERE archived_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing item ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateItem updates an item's catalog metadata and condition.
func UpdateItem(ctx context.Context, q Querier, id int64, name, description, category string, condition model.Condition) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, condition = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND archived_at IS NULL`,
		name, nullString(description), nullString(category), string(condition), id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemQuantity changes the total stock of an item. The cached available
// count is clamped to the new total; callers reconcile afterwards.
func SetItemQuantity(ctx context.Context, q Querier, id int64, total int) error {
	if total < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	_, err := q.ExecContext(ctx,
		`UPDATE items SET total_quantity = ?, available = MIN(available, ?), updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND archived_at IS NULL`,
		total, total, id,
	)
	if err != nil {
		return fmt.Errorf("setting item quantity: %w", err)
	}
	return nil
}

// SetItemAvailability persists the cached available count and derived status.
// Only the reconciler calls this.
func SetItemAvailability(ctx context.Context, q Querier, id int64, available int, status model.ItemStatus) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET available = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		available, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("setting item availability: %w", err)
	}
	return nil
}

// ArchiveItem soft-archives an item. Archived items keep their reservations.
func ArchiveItem(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET archived_at = CURRENT_TIMESTAMP WHERE id = ? AND archived_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("archiving item: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, q Querier, id int64, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND archived_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, q Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	var description, category, imageMime sql.NullString
	err := s.Scan(&item.ID, &item.Name, &description, &category, &imageMime,
		&item.TotalQuantity, &item.Available, &item.Status, &item.Condition,
		&item.CreatedAt, &item.UpdatedAt, &item.ArchivedAt)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Category = category.String
	item.ImageMime = imageMime.String
	return item, nil
}
