package store

import (
	"context"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// CreateNotification writes a notification to the outbox.
func CreateNotification(ctx context.Context, q Querier, userID int64, reservationID *int64, kind, message string) (*model.Notification, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (user_id, reservation_id, kind, message) VALUES (?, ?, ?, ?)`,
		userID, reservationID, kind, message,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}

	n := &model.Notification{}
	err = q.QueryRowContext(ctx,
		`SELECT id, user_id, reservation_id, kind, message, created_at, read_at
		 FROM notifications WHERE id = ?`, id,
	).Scan(&n.ID, &n.UserID, &n.ReservationID, &n.Kind, &n.Message, &n.CreatedAt, &n.ReadAt)
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, q Querier, userID int64, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT id, user_id, reservation_id, kind, message, created_at, read_at
	          FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY id DESC`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ReservationID, &n.Kind, &n.Message, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of a user's notifications as read.
// It reports false if no unread notification with that ID belongs to the user.
func MarkNotificationRead(ctx context.Context, q Querier, id, userID int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications SET read_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ? AND read_at IS NULL`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking notification update: %w", err)
	}
	return n == 1, nil
}
