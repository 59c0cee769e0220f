package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/erazemk/izposoja/internal/model"
)

// reservationColumns is the select list shared by every reservation query.
// Order must match scanReservation.
var reservationColumns = []any{
	goqu.I("r.id"), goqu.I("r.request_code"), goqu.I("r.item_id"), goqu.I("r.borrower_id"),
	goqu.I("r.quantity"), goqu.I("r.borrow_date"), goqu.I("r.return_date"),
	goqu.I("r.purpose"), goqu.I("r.notes"), goqu.I("r.status"),
	goqu.I("r.actual_return_date"), goqu.I("r.reviewed_by"), goqu.I("r.review_note"),
	goqu.I("r.created_at"), goqu.I("r.updated_at"),
	goqu.I("i.name"), goqu.I("u.username"),
}

// NewReservation holds the fields of a reservation being created.
type NewReservation struct {
	RequestCode string
	ItemID      int64
	BorrowerID  int64
	Quantity    int
	BorrowDate  time.Time
	ReturnDate  time.Time
	Purpose     string
	Notes       string
}

// CreateReservation inserts a pending reservation.
func CreateReservation(ctx context.Context, q Querier, n NewReservation) (*model.Reservation, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO reservations (request_code, item_id, borrower_id, quantity, borrow_date, return_date, purpose, notes, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.RequestCode, n.ItemID, n.BorrowerID, n.Quantity,
		model.FormatDate(n.BorrowDate), model.FormatDate(n.ReturnDate),
		n.Purpose, nullString(n.Notes), string(model.ReservationPending),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting reservation id: %w", err)
	}

	return GetReservation(ctx, q, id)
}

// GetReservation returns a reservation by ID.
func GetReservation(ctx context.Context, q Querier, id int64) (*model.Reservation, error) {
	query, args, err := reservationSelect().
		Where(goqu.I("r.id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building reservation query: %w", err)
	}

	r, err := scanReservation(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting reservation: %w", err)
	}
	return r, nil
}

// ReservationFilter narrows ListReservations. Zero values match everything.
// From and To, when both set, keep reservations overlapping [From, To).
type ReservationFilter struct {
	ItemID     int64
	BorrowerID int64
	Status     model.ReservationStatus
	From       time.Time
	To         time.Time
}

// ListReservations returns reservations matching the filter, newest first.
func ListReservations(ctx context.Context, q Querier, f ReservationFilter) ([]model.Reservation, error) {
	var where []exp.Expression
	if f.ItemID > 0 {
		where = append(where, goqu.I("r.item_id").Eq(f.ItemID))
	}
	if f.BorrowerID > 0 {
		where = append(where, goqu.I("r.borrower_id").Eq(f.BorrowerID))
	}
	if f.Status != "" {
		where = append(where, goqu.I("r.status").Eq(string(f.Status)))
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		where = append(where, overlapping(f.From, f.To)...)
	}

	query, args, err := reservationSelect().
		Where(where...).
		Order(goqu.I("r.borrow_date").Desc(), goqu.I("r.id").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building reservation query: %w", err)
	}

	return queryReservations(ctx, q, query, args)
}

// ListOverlappingHolds returns the capacity-holding reservations of an item
// whose range overlaps [start, end). A positive excludeID leaves that
// reservation out.
func ListOverlappingHolds(ctx context.Context, q Querier, itemID int64, start, end time.Time, excludeID int64) ([]model.Reservation, error) {
	where := []exp.Expression{
		goqu.I("r.item_id").Eq(itemID),
		goqu.I("r.status").In(holdingStatuses()),
	}
	where = append(where, overlapping(start, end)...)
	if excludeID > 0 {
		where = append(where, goqu.I("r.id").Neq(excludeID))
	}

	query, args, err := reservationSelect().
		Where(where...).
		Order(goqu.I("r.borrow_date").Asc(), goqu.I("r.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building overlap query: %w", err)
	}

	return queryReservations(ctx, q, query, args)
}

// SumActiveHolds returns the quantity held by an item's capacity-holding
// reservations that are not yet due back before the given day.
func SumActiveHolds(ctx context.Context, q Querier, itemID int64, today time.Time) (int, error) {
	query, args, err := dialect.From("reservations").Prepared(true).
		Select(goqu.COALESCE(goqu.SUM("quantity"), 0)).
		Where(
			goqu.C("item_id").Eq(itemID),
			goqu.C("status").In(holdingStatuses()),
			goqu.C("return_date").Gte(model.FormatDate(today)),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("building hold sum query: %w", err)
	}

	var sum int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("summing active holds: %w", err)
	}
	return sum, nil
}

// StatusUpdate carries the optional columns written with a status change.
type StatusUpdate struct {
	ReviewedBy       *int64
	ReviewNote       string
	ActualReturnDate *time.Time
}

// UpdateReservationStatus moves a reservation from one status to another.
// It returns ErrStaleStatus if the reservation is no longer in status from.
func UpdateReservationStatus(ctx context.Context, q Querier, id int64, from, to model.ReservationStatus, u StatusUpdate) error {
	result, err := q.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?,
		     reviewed_by = COALESCE(?, reviewed_by),
		     review_note = COALESCE(?, review_note),
		     actual_return_date = COALESCE(?, actual_return_date),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(to), u.ReviewedBy, nullString(u.ReviewNote), u.ActualReturnDate, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("updating reservation status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated reservation: %w", err)
	}
	if n != 1 {
		return ErrStaleStatus
	}
	return nil
}

func reservationSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("reservations").As("r")).Prepared(true).
		Select(reservationColumns...).
		Join(goqu.T("items").As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("r.item_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.borrower_id"))))
}

// overlapping matches reservations whose [borrow_date, return_date) range
// intersects [start, end). Dates are YYYY-MM-DD so text order is date order.
func overlapping(start, end time.Time) []exp.Expression {
	return []exp.Expression{
		goqu.I("r.borrow_date").Lt(model.FormatDate(end)),
		goqu.I("r.return_date").Gt(model.FormatDate(start)),
	}
}

func holdingStatuses() []string {
	statuses := make([]string, len(model.CapacityHoldingStatuses))
	for i, s := range model.CapacityHoldingStatuses {
		statuses[i] = string(s)
	}
	return statuses
}

func queryReservations(ctx context.Context, q Querier, query string, args []any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

func scanReservation(s scanner) (*model.Reservation, error) {
	r := &model.Reservation{}
	var borrowDate, returnDate string
	var notes, reviewNote sql.NullString
	err := s.Scan(&r.ID, &r.RequestCode, &r.ItemID, &r.BorrowerID,
		&r.Quantity, &borrowDate, &returnDate,
		&r.Purpose, &notes, &r.Status,
		&r.ActualReturnDate, &r.ReviewedBy, &reviewNote,
		&r.CreatedAt, &r.UpdatedAt,
		&r.ItemName, &r.BorrowerName)
	if err != nil {
		return nil, err
	}

	if r.BorrowDate, err = model.ParseDate(borrowDate); err != nil {
		return nil, err
	}
	if r.ReturnDate, err = model.ParseDate(returnDate); err != nil {
		return nil, err
	}
	r.Notes = notes.String
	r.ReviewNote = reviewNote.String
	return r, nil
}
