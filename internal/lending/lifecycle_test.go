package lending

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)

	r := f.request(camera.ID, 2, 10, 12)
	assert.Equal(t, model.ReservationPending, r.Status)
	assert.Regexp(t, `^REQ-`, r.RequestCode)
	assert.Equal(t, "Camera", r.ItemName)
	assert.Equal(t, "ana", r.BorrowerName)
	assert.Equal(t, day(10), r.BorrowDate)
	assert.Equal(t, day(12), r.ReturnDate)

	// Pending requests hold nothing.
	assert.Equal(t, 5, f.reload(camera.ID).Available)

	assert.Equal(t, []string{model.NotifySubmitted}, f.notifier.kinds())
	stored, err := store.ListNotifications(f.ctx, f.svc.DB, f.borrower.ID, false)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, r.ID, *stored[0].ReservationID)
}

func TestCreateReservationRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)
	archived := f.item("Old camera", 1)
	require.NoError(t, f.svc.ArchiveItem(f.ctx, archived.ID))
	broken := f.item("Tripod", 2)
	_, err := f.svc.UpdateItem(f.ctx, broken.ID, ItemFields{Name: "Tripod", Condition: model.ConditionNeedsRepair})
	require.NoError(t, err)

	tests := []struct {
		name     string
		itemID   int64
		qty      int
		from, to int
		want     error
	}{
		{"zero quantity", camera.ID, 0, 10, 12, ErrInvalidQuantity},
		{"negative quantity", camera.ID, -1, 10, 12, ErrInvalidQuantity},
		{"empty range", camera.ID, 1, 10, 10, ErrInvalidDateRange},
		{"reversed range", camera.ID, 1, 12, 10, ErrInvalidDateRange},
		// The clock reads 1 March.
		{"past borrow date", camera.ID, 1, 0, 3, ErrInvalidDateRange},
		{"unknown item", 999, 1, 10, 12, ErrNotFound},
		{"archived item", archived.ID, 1, 10, 12, ErrNotFound},
		{"item under maintenance", broken.ID, 1, 10, 12, ErrItemUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(f.ctx, CreateRequest{
				ItemID:     tt.itemID,
				BorrowerID: f.borrower.ID,
				Quantity:   tt.qty,
				BorrowDate: day(tt.from),
				ReturnDate: day(tt.to),
			})
			require.ErrorIs(t, err, tt.want)
		})
	}

	all, err := store.ListReservations(f.ctx, f.svc.DB, store.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateReservationBorrowingToday(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 1)
	r := f.request(camera.ID, 1, 1, 2)
	assert.Equal(t, day(1), r.BorrowDate)
}

func TestCreateReservationInsufficient(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)
	f.approved(camera.ID, 3, 10, 15)

	_, err := f.svc.CreateReservation(f.ctx, CreateRequest{
		ItemID:     camera.ID,
		BorrowerID: f.borrower.ID,
		Quantity:   3,
		BorrowDate: day(12),
		ReturnDate: day(20),
	})
	require.ErrorIs(t, err, ErrInsufficientAvailability)

	var ie *InsufficientAvailabilityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 3, ie.Requested)
	assert.Equal(t, 2, ie.Available)
	assert.Equal(t, 3, ie.Borrowed)
	assert.Equal(t, 1, ie.Overlapping)

	// The same quantity fits once the ranges stop overlapping.
	f.request(camera.ID, 3, 15, 20)
}

func TestApprovalRechecksCapacity(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)
	first := f.request(camera.ID, 3, 10, 15)
	second := f.request(camera.ID, 3, 10, 15)

	_, err := f.svc.Approve(f.ctx, first.ID, f.officer.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, second.ID, f.officer.ID, "")
	var ie *InsufficientAvailabilityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.Available)
	assert.Equal(t, 3, ie.Borrowed)

	r, err := store.GetReservation(f.ctx, f.svc.DB, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, r.Status)
	assert.Equal(t, 2, f.reload(camera.ID).Available)
}

func TestConcurrentApprovals(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 3)

	var pending []*model.Reservation
	for range 6 {
		pending = append(pending, f.request(camera.ID, 1, 10, 12))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		refused  int
	)
	for _, r := range pending {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.Approve(f.ctx, id, f.officer.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, ErrInsufficientAvailability):
				refused++
			default:
				t.Errorf("Approve(%d): %v", id, err)
			}
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, 3, refused)

	item := f.reload(camera.ID)
	assert.Equal(t, 0, item.Available)
	assert.Equal(t, model.ItemStatusAllBorrowed, item.Status)
}

func TestLifecycleReconciles(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)

	r := f.request(camera.ID, 3, 10, 15)
	r, err := f.svc.Approve(f.ctx, r.ID, f.officer.ID, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationApproved, r.Status)
	require.NotNil(t, r.ReviewedBy)
	assert.Equal(t, f.officer.ID, *r.ReviewedBy)
	assert.Equal(t, "enjoy", r.ReviewNote)
	assert.Equal(t, 2, f.reload(camera.ID).Available)

	other := f.approved(camera.ID, 2, 11, 13)
	item := f.reload(camera.ID)
	assert.Equal(t, 0, item.Available)
	assert.Equal(t, model.ItemStatusAllBorrowed, item.Status)

	r, err = f.svc.MarkBorrowed(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationBorrowed, r.Status)
	assert.Equal(t, 0, f.reload(camera.ID).Available)

	r, err = f.svc.MarkReturned(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReturned, r.Status)
	require.NotNil(t, r.ActualReturnDate)
	assert.True(t, r.ActualReturnDate.Equal(f.now))

	item = f.reload(camera.ID)
	assert.Equal(t, 3, item.Available)
	assert.Equal(t, model.ItemStatusAvailable, item.Status)

	_, err = f.svc.Reject(f.ctx, other.ID, f.officer.ID, "cancelled by borrower")
	require.NoError(t, err)
	assert.Equal(t, 5, f.reload(camera.ID).Available)

	assert.Equal(t, []string{
		model.NotifySubmitted, model.NotifyApproved,
		model.NotifySubmitted, model.NotifyApproved,
		model.NotifyBorrowed, model.NotifyReturned,
		model.NotifyRejected,
	}, f.notifier.kinds())
}

func TestRejectPending(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)
	r := f.request(camera.ID, 2, 10, 12)

	r, err := f.svc.Reject(f.ctx, r.ID, f.officer.ID, "not for personal use")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationRejected, r.Status)
	assert.Equal(t, "not for personal use", r.ReviewNote)
	assert.Equal(t, 5, f.reload(camera.ID).Available)
}

func TestInvalidTransitionsWriteNothing(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)

	returned := f.approved(camera.ID, 1, 10, 12)
	_, err := f.svc.MarkBorrowed(f.ctx, returned.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkReturned(f.ctx, returned.ID)
	require.NoError(t, err)

	pending := f.request(camera.ID, 1, 10, 12)
	rejected := f.request(camera.ID, 1, 10, 12)
	_, err = f.svc.Reject(f.ctx, rejected.ID, f.officer.ID, "")
	require.NoError(t, err)

	// Skew the cached count so any reconcile would be visible.
	_, err = f.svc.DB.Exec(`UPDATE items SET available = 1 WHERE id = ?`, camera.ID)
	require.NoError(t, err)
	sent := len(f.notifier.kinds())

	tests := []struct {
		name   string
		id     int64
		target model.ReservationStatus
		from   model.ReservationStatus
	}{
		{"returned to approved", returned.ID, model.ReservationApproved, model.ReservationReturned},
		{"returned to rejected", returned.ID, model.ReservationRejected, model.ReservationReturned},
		{"rejected to approved", rejected.ID, model.ReservationApproved, model.ReservationRejected},
		{"pending to borrowed", pending.ID, model.ReservationBorrowed, model.ReservationPending},
		{"pending to returned", pending.ID, model.ReservationReturned, model.ReservationPending},
		{"pending to pending", pending.ID, model.ReservationPending, model.ReservationPending},
		{"unknown status", pending.ID, model.ReservationStatus("lost"), model.ReservationPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transition(f.ctx, tt.id, tt.target, &f.officer.ID, "")
			require.ErrorIs(t, err, ErrInvalidTransition)

			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.target, te.To)

			r, err := store.GetReservation(f.ctx, f.svc.DB, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.from, r.Status)
		})
	}

	assert.Equal(t, 1, f.reload(camera.ID).Available)
	assert.Len(t, f.notifier.kinds(), sent)
}

func TestTransitionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(f.ctx, 42, model.ReservationApproved, &f.officer.ID, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproveItemUnderMaintenance(t *testing.T) {
	f := newFixture(t)
	camera := f.item("Camera", 5)
	r := f.request(camera.ID, 1, 10, 12)

	_, err := f.svc.UpdateItem(f.ctx, camera.ID, ItemFields{Name: "Camera", Condition: model.ConditionNeedsRepair})
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, r.ID, f.officer.ID, "")
	require.ErrorIs(t, err, ErrItemUnavailable)

	// Rejecting is still possible.
	_, err = f.svc.Reject(f.ctx, r.ID, f.officer.ID, "camera broken")
	require.NoError(t, err)
}
