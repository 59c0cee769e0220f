package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, svc *lending.Service, signer *auth.Signer) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Signer: signer}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Lending: svc}
	reservationsHandler := &ReservationsHandler{DB: db, Lending: svc}
	notificationsHandler := &NotificationsHandler{DB: db}

	authMW := AuthMiddleware(signer, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireOfficer := RequireRole(model.RoleOfficer)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (officer+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireOfficer(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("POST /api/items/reconcile", authMW(requireOfficer(http.HandlerFunc(itemsHandler.ReconcileAll))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireOfficer(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireOfficer(http.HandlerFunc(itemsHandler.Archive))))
	mux.Handle("GET /api/items/{id}/availability", authMW(http.HandlerFunc(itemsHandler.Availability)))
	mux.Handle("PUT /api/items/{id}/quantity", authMW(requireOfficer(http.HandlerFunc(itemsHandler.SetQuantity))))
	mux.Handle("POST /api/items/{id}/reconcile", authMW(requireOfficer(http.HandlerFunc(itemsHandler.Reconcile))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireOfficer(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Reservations: request and read (all roles), review (officer+).
	mux.Handle("POST /api/reservations", authMW(http.HandlerFunc(reservationsHandler.Create)))
	mux.Handle("GET /api/reservations", authMW(http.HandlerFunc(reservationsHandler.List)))
	mux.Handle("GET /api/reservations/{id}", authMW(http.HandlerFunc(reservationsHandler.Get)))
	mux.Handle("PUT /api/reservations/{id}/status", authMW(requireOfficer(http.HandlerFunc(reservationsHandler.UpdateStatus))))

	// Notifications (own only).
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("PUT /api/notifications/{id}/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))

	return mux
}
