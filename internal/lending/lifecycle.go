package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// CreateRequest is a borrower's request for units of an item.
type CreateRequest struct {
	ItemID     int64
	BorrowerID int64
	Quantity   int
	BorrowDate time.Time
	ReturnDate time.Time
	Purpose    string
	Notes      string
}

// CreateReservation validates a request against current availability and
// records it as pending. Pending reservations hold no capacity.
func (s *Service) CreateReservation(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	borrow, ret := model.Day(req.BorrowDate), model.Day(req.ReturnDate)
	if borrow.Before(s.today()) {
		return nil, fmt.Errorf("%w: borrow date %s is in the past", ErrInvalidDateRange, model.FormatDate(borrow))
	}
	if !ret.After(borrow) {
		return nil, fmt.Errorf("%w: return date must be after borrow date", ErrInvalidDateRange)
	}

	var (
		r     *model.Reservation
		notif *model.Notification
	)
	err := s.withItemTx(ctx, req.ItemID, func(q store.Querier) error {
		item, err := lendableItem(ctx, q, req.ItemID)
		if err != nil {
			return err
		}

		avail, err := computeAvailability(ctx, q, item, borrow, ret, 0)
		if err != nil {
			return err
		}
		if avail.Available < req.Quantity {
			return insufficient(req.Quantity, avail)
		}

		r, err = store.CreateReservation(ctx, q, store.NewReservation{
			RequestCode: newRequestCode(),
			ItemID:      item.ID,
			BorrowerID:  req.BorrowerID,
			Quantity:    req.Quantity,
			BorrowDate:  borrow,
			ReturnDate:  ret,
			Purpose:     req.Purpose,
			Notes:       req.Notes,
		})
		if err != nil {
			return err
		}

		notif, err = notify(ctx, q, r, model.NotifySubmitted)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("reservation submitted", "code", r.RequestCode, "item", r.ItemID, "borrower", r.BorrowerID, "quantity", r.Quantity)
	s.deliver(ctx, notif)
	return r, nil
}

// Transition moves a reservation to target. Approve re-checks capacity
// excluding the reservation itself. Transitions entering or leaving a
// capacity-holding status reconcile the item. actorID and note are recorded
// on approve and reject.
func (s *Service) Transition(ctx context.Context, reservationID int64, target model.ReservationStatus, actorID *int64, note string) (*model.Reservation, error) {
	current, err := store.GetReservation(ctx, s.DB, reservationID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("reservation %d: %w", reservationID, ErrNotFound)
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, &TransitionError{From: current.Status, To: target}
	}

	var (
		r     *model.Reservation
		notif *model.Notification
	)
	err = s.withItemTx(ctx, current.ItemID, func(q store.Querier) error {
		// Re-read under the lock; another request may have moved it.
		cur, err := store.GetReservation(ctx, q, reservationID)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("reservation %d: %w", reservationID, ErrNotFound)
		}
		from := cur.Status
		if !from.CanTransitionTo(target) {
			return &TransitionError{From: from, To: target}
		}

		var update store.StatusUpdate
		switch target {
		case model.ReservationApproved:
			item, err := lendableItem(ctx, q, cur.ItemID)
			if err != nil {
				return err
			}
			avail, err := computeAvailability(ctx, q, item, cur.BorrowDate, cur.ReturnDate, cur.ID)
			if err != nil {
				return err
			}
			if avail.Available < cur.Quantity {
				return insufficient(cur.Quantity, avail)
			}
			update = store.StatusUpdate{ReviewedBy: actorID, ReviewNote: note}
		case model.ReservationRejected:
			update = store.StatusUpdate{ReviewedBy: actorID, ReviewNote: note}
		case model.ReservationReturned:
			now := s.now().UTC()
			update = store.StatusUpdate{ActualReturnDate: &now}
		}

		if err := store.UpdateReservationStatus(ctx, q, cur.ID, from, target, update); err != nil {
			return err
		}

		if from.HoldsCapacity() || target.HoldsCapacity() {
			item, err := store.GetItem(ctx, q, cur.ItemID)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("item %d: %w", cur.ItemID, ErrNotFound)
			}
			if _, err := reconcile(ctx, q, item, s.today()); err != nil {
				return err
			}
		}

		r, err = store.GetReservation(ctx, q, cur.ID)
		if err != nil {
			return err
		}
		notif, err = notify(ctx, q, r, notificationKind(target))
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("reservation "+string(target), "code", r.RequestCode, "item", r.ItemID, "quantity", r.Quantity)
	s.deliver(ctx, notif)
	return r, nil
}

// Approve moves a pending reservation to approved.
func (s *Service) Approve(ctx context.Context, id int64, reviewerID int64, note string) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.ReservationApproved, &reviewerID, note)
}

// Reject moves a pending or approved reservation to rejected.
func (s *Service) Reject(ctx context.Context, id int64, reviewerID int64, note string) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.ReservationRejected, &reviewerID, note)
}

// MarkBorrowed records that an approved reservation was picked up.
func (s *Service) MarkBorrowed(ctx context.Context, id int64) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.ReservationBorrowed, nil, "")
}

// MarkReturned records that a borrowed reservation came back.
func (s *Service) MarkReturned(ctx context.Context, id int64) (*model.Reservation, error) {
	return s.Transition(ctx, id, model.ReservationReturned, nil, "")
}

// lendableItem loads an item that can take new or approved reservations.
func lendableItem(ctx context.Context, q store.Querier, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.ArchivedAt != nil {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if item.Condition == model.ConditionNeedsRepair {
		return nil, fmt.Errorf("%s: %w", item.Name, ErrItemUnavailable)
	}
	return item, nil
}

func insufficient(requested int, a *Availability) error {
	return &InsufficientAvailabilityError{
		Requested:   requested,
		Available:   a.Available,
		Borrowed:    a.BorrowedCount,
		Overlapping: a.OverlappingCount,
	}
}

func notificationKind(status model.ReservationStatus) string {
	switch status {
	case model.ReservationApproved:
		return model.NotifyApproved
	case model.ReservationRejected:
		return model.NotifyRejected
	case model.ReservationBorrowed:
		return model.NotifyBorrowed
	case model.ReservationReturned:
		return model.NotifyReturned
	}
	return model.NotifySubmitted
}

// notify records a notification for the reservation's borrower.
func notify(ctx context.Context, q store.Querier, r *model.Reservation, kind string) (*model.Notification, error) {
	var msg string
	switch kind {
	case model.NotifySubmitted:
		msg = fmt.Sprintf("Request %s for %d× %s (%s to %s) is awaiting review.",
			r.RequestCode, r.Quantity, r.ItemName, model.FormatDate(r.BorrowDate), model.FormatDate(r.ReturnDate))
	case model.NotifyApproved:
		msg = fmt.Sprintf("Request %s for %d× %s was approved. Pick up on %s.",
			r.RequestCode, r.Quantity, r.ItemName, model.FormatDate(r.BorrowDate))
	case model.NotifyRejected:
		msg = fmt.Sprintf("Request %s for %s was rejected.", r.RequestCode, r.ItemName)
		if r.ReviewNote != "" {
			msg += " Note: " + r.ReviewNote
		}
	case model.NotifyBorrowed:
		msg = fmt.Sprintf("You picked up %d× %s. Return it by %s.",
			r.Quantity, r.ItemName, model.FormatDate(r.ReturnDate))
	case model.NotifyReturned:
		msg = fmt.Sprintf("Return of %d× %s (%s) was recorded.", r.Quantity, r.ItemName, r.RequestCode)
	}

	id := r.ID
	return store.CreateNotification(ctx, q, r.BorrowerID, &id, kind, msg)
}
