package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ItemsHandler handles catalog and availability endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Lending *lending.Service
}

type itemRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"max=100"`
	Condition   model.Condition `json:"condition" validate:"omitempty,oneof=good fair needs_repair"`
}

func (req itemRequest) fields() lending.ItemFields {
	return lending.ItemFields{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
	}
}

type createItemRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	Category      string          `json:"category" validate:"max=100"`
	Condition     model.Condition `json:"condition" validate:"omitempty,oneof=good fair needs_repair"`
	TotalQuantity int             `json:"total_quantity" validate:"min=0"`
}

type quantityRequest struct {
	TotalQuantity *int `json:"total_quantity" validate:"required,min=0"`
}

// List handles GET /api/items. ?status= and ?category= narrow the list.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	f := store.ItemFilter{
		Status:   model.ItemStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
	}
	if f.Status != "" && !f.Status.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Availability handles GET /api/items/{id}/availability?from=&to=.
// ?exclude= leaves one reservation out of the count.
func (h *ItemsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := model.ParseDate(q.Get("from"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := model.ParseDate(q.Get("to"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if !to.After(from) {
		jsonError(w, http.StatusBadRequest, lending.ErrInvalidDateRange.Error()+": to must be after from")
		return
	}

	var exclude int64
	if s := q.Get("exclude"); s != "" {
		if exclude, err = strconv.ParseInt(s, 10, 64); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid exclude id")
			return
		}
	}

	a, err := h.Lending.ComputeAvailability(r.Context(), id, from, to, exclude)
	if err != nil {
		lendingError(w, err, "compute availability")
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Lending.CreateItem(r.Context(), lending.ItemFields{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
	}, req.TotalQuantity)
	if err != nil {
		lendingError(w, err, "create item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Lending.UpdateItem(r.Context(), id, req.fields())
	if err != nil {
		lendingError(w, err, "update item")
		return
	}
	slog.Info("item updated", "user", GetClaims(r.Context()).Username, "item", item.ID, "condition", item.Condition)
	jsonResponse(w, http.StatusOK, item)
}

// SetQuantity handles PUT /api/items/{id}/quantity.
func (h *ItemsHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Lending.SetQuantity(r.Context(), id, *req.TotalQuantity)
	if err != nil {
		lendingError(w, err, "set quantity")
		return
	}
	slog.Info("item quantity set", "user", GetClaims(r.Context()).Username, "item", item.ID, "total", item.TotalQuantity)
	jsonResponse(w, http.StatusOK, item)
}

// Archive handles DELETE /api/items/{id}.
func (h *ItemsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	if err := h.Lending.ArchiveItem(r.Context(), id); err != nil {
		lendingError(w, err, "archive item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item archived"})
}

// Reconcile handles POST /api/items/{id}/reconcile.
func (h *ItemsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	rec, err := h.Lending.Reconcile(r.Context(), id)
	if err != nil {
		lendingError(w, err, "reconcile item")
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// ReconcileAll handles POST /api/items/reconcile.
func (h *ItemsHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.Lending.ReconcileAll(r.Context())
	if err != nil {
		lendingError(w, err, "reconcile items")
		return
	}

	changed := 0
	for _, rec := range results {
		if rec.Changed {
			changed++
		}
	}
	slog.Info("items reconciled", "user", GetClaims(r.Context()).Username, "items", len(results), "changed", changed)
	jsonResponse(w, http.StatusOK, results)
}

// UploadImage handles PUT /api/items/{id}/image as a multipart upload with
// an "image" file field.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.ArchivedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
		return
	case err != nil:
		slog.Error("failed to process image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
