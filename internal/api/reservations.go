package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ReservationsHandler handles borrow requests and their review.
type ReservationsHandler struct {
	DB      *sql.DB
	Lending *lending.Service
}

type createReservationRequest struct {
	ItemID     int64  `json:"item_id" validate:"required,gt=0"`
	BorrowerID int64  `json:"borrower_id" validate:"omitempty,gt=0"`
	Quantity   int    `json:"quantity"`
	BorrowDate string `json:"borrow_date" validate:"required,datetime=2006-01-02"`
	ReturnDate string `json:"return_date" validate:"required,datetime=2006-01-02"`
	Purpose    string `json:"purpose" validate:"max=500"`
	Notes      string `json:"notes" validate:"max=2000"`
}

type statusRequest struct {
	Status model.ReservationStatus `json:"status" validate:"required"`
	Note   string                  `json:"note" validate:"max=500"`
}

// Create handles POST /api/reservations. Officers may file a request on
// behalf of a borrower with borrower_id.
func (h *ReservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	borrowerID := claims.UserID
	if req.BorrowerID != 0 && req.BorrowerID != claims.UserID {
		if !model.RoleAtLeast(claims.Role, model.RoleOfficer) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		borrower, err := store.GetUser(r.Context(), h.DB, req.BorrowerID)
		if err != nil {
			slog.Error("failed to get user", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to get user")
			return
		}
		if borrower == nil || borrower.DeletedAt != nil {
			jsonError(w, http.StatusNotFound, "borrower not found")
			return
		}
		borrowerID = borrower.ID
	}

	// Both parse; the validator checked the layout.
	borrow, _ := model.ParseDate(req.BorrowDate)
	ret, _ := model.ParseDate(req.ReturnDate)

	res, err := h.Lending.CreateReservation(r.Context(), lending.CreateRequest{
		ItemID:     req.ItemID,
		BorrowerID: borrowerID,
		Quantity:   req.Quantity,
		BorrowDate: borrow,
		ReturnDate: ret,
		Purpose:    req.Purpose,
		Notes:      req.Notes,
	})
	if err != nil {
		lendingError(w, err, "create reservation")
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// List handles GET /api/reservations. Borrowers only see their own
// reservations; officers may filter by ?borrower_id=. ?item_id=, ?status=
// and ?from=&to= narrow the list.
func (h *ReservationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims := GetClaims(r.Context())

	var f store.ReservationFilter
	var err error
	if s := q.Get("item_id"); s != "" {
		if f.ItemID, err = strconv.ParseInt(s, 10, 64); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid item_id")
			return
		}
	}
	if s := q.Get("borrower_id"); s != "" {
		if f.BorrowerID, err = strconv.ParseInt(s, 10, 64); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid borrower_id")
			return
		}
	}
	if !model.RoleAtLeast(claims.Role, model.RoleOfficer) {
		f.BorrowerID = claims.UserID
	}
	if s := q.Get("status"); s != "" {
		f.Status = model.ReservationStatus(s)
		if !f.Status.Valid() {
			jsonError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		if f.From, err = model.ParseDate(q.Get("from")); err != nil {
			jsonError(w, http.StatusBadRequest, "from: "+err.Error())
			return
		}
		if f.To, err = model.ParseDate(q.Get("to")); err != nil {
			jsonError(w, http.StatusBadRequest, "to: "+err.Error())
			return
		}
		if !f.To.After(f.From) {
			jsonError(w, http.StatusBadRequest, lending.ErrInvalidDateRange.Error()+": to must be after from")
			return
		}
	}

	reservations, err := store.ListReservations(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list reservations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	jsonResponse(w, http.StatusOK, reservations)
}

// Get handles GET /api/reservations/{id}.
func (h *ReservationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservation")
	if !ok {
		return
	}

	res, err := store.GetReservation(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get reservation", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get reservation")
		return
	}
	claims := GetClaims(r.Context())
	if res == nil || (res.BorrowerID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleOfficer)) {
		jsonError(w, http.StatusNotFound, "reservation not found")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// UpdateStatus handles PUT /api/reservations/{id}/status.
func (h *ReservationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reservation")
	if !ok {
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	res, err := h.Lending.Transition(r.Context(), id, req.Status, &claims.UserID, req.Note)
	if err != nil {
		lendingError(w, err, "update reservation")
		return
	}
	slog.Info("reservation status changed", "user", claims.Username, "code", res.RequestCode, "status", res.Status)
	jsonResponse(w, http.StatusOK, res)
}
