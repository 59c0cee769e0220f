package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/izposoja/internal/lending"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{"error": message})
}

// decodeJSON decodes a JSON request body into target and validates it.
// On failure it writes a 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	err := validate.Struct(target)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return false
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	jsonResponse(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
	return false
}

// pathID parses the {id} path value. On failure it writes a 400 response.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s id", what))
		return 0, false
	}
	return id, true
}

// lendingError maps a lending error to an HTTP response.
func lendingError(w http.ResponseWriter, err error, action string) {
	var (
		ie *lending.InsufficientAvailabilityError
		te *lending.TransitionError
	)
	switch {
	case errors.As(err, &ie):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":          ie.Error(),
			"requested":      ie.Requested,
			"available":      ie.Available,
			"borrowed_count": ie.Borrowed,
		})
	case errors.As(err, &te):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error": te.Error(),
			"from":  te.From,
			"to":    te.To,
		})
	case errors.Is(err, lending.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lending.ErrInvalidDateRange),
		errors.Is(err, lending.ErrInvalidQuantity),
		errors.Is(err, lending.ErrInvalidItem):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lending.ErrItemUnavailable),
		errors.Is(err, lending.ErrItemInUse):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lending.ErrItemBusy):
		w.Header().Set("Retry-After", "1")
		jsonError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
