package lending

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Service runs availability checks and reservation changes against the
// database. Every check-then-act sequence holds the item's lock and a single
// write transaction.
type Service struct {
	DB       *sql.DB
	Locker   Locker
	Notifier Notifier
	// Now returns the current time; the calendar date of its result is today.
	Now func() time.Time
}

// NewService returns a Service with an in-process item lock and log delivery.
func NewService(db *sql.DB) *Service {
	return &Service{
		DB:       db,
		Locker:   NewKeyedMutex(),
		Notifier: LogNotifier{},
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) today() time.Time {
	return model.Day(s.now())
}

// withItemTx runs fn while holding the item's lock inside one transaction.
// fn must only use the querier it is given.
func (s *Service) withItemTx(ctx context.Context, itemID int64, fn func(q store.Querier) error) error {
	unlock, err := s.Locker.Lock(ctx, itemID)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, notifications ...*model.Notification) {
	if s.Notifier == nil {
		return
	}
	for _, n := range notifications {
		if n != nil {
			s.Notifier.Notify(ctx, n)
		}
	}
}

// newRequestCode returns a short human-readable reservation reference.
func newRequestCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REQ-" + strings.ToUpper(id[:8])
}
