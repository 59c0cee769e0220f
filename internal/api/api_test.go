package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	t      *testing.T
	signer *auth.Signer
	users  map[string]*model.User
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	svc := lending.NewService(database)
	signer := auth.NewSigner(testJWTSecret, time.Hour)

	ts := &testServer{
		Server: httptest.NewServer(NewRouter(database, svc, signer)),
		t:      t,
		signer: signer,
		users:  map[string]*model.User{},
	}
	t.Cleanup(ts.Close)

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatal(err)
	}
	for name, role := range map[string]string{
		"admin":   model.RoleAdmin,
		"officer": model.RoleOfficer,
		"ana":     model.RoleBorrower,
		"bor":     model.RoleBorrower,
	} {
		u, err := store.CreateUser(context.Background(), database, name, hash, role)
		if err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
		ts.users[name] = u
	}
	return ts
}

// token issues a session token for a seeded user without going through login.
func (ts *testServer) token(name string) string {
	u := ts.users[name]
	token, _, err := ts.signer.Issue(u.ID, u.Username, u.Role)
	if err != nil {
		ts.t.Fatalf("Issue: %v", err)
	}
	return token
}

// do sends a JSON request and decodes the response body into out, if given.
func (ts *testServer) do(method, path, token string, body, out any) int {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		ts.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// date returns today plus n days as YYYY-MM-DD.
func date(n int) string {
	return model.FormatDate(time.Now().AddDate(0, 0, n))
}

func (ts *testServer) createItem(name string, total int) *model.Item {
	ts.t.Helper()
	var item model.Item
	status := ts.do("POST", "/api/items", ts.token("officer"), map[string]any{
		"name":           name,
		"total_quantity": total,
	}, &item)
	if status != http.StatusCreated {
		ts.t.Fatalf("create item: status %d", status)
	}
	return &item
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	if status := ts.do("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"}, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	var invalid map[string]any
	if status := ts.do("POST", "/api/auth/login", "", map[string]string{"username": "admin"}, &invalid); status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", status)
	}
	if fields, _ := invalid["fields"].(map[string]any); fields["password"] != "required" {
		t.Errorf("expected password field error, got %v", invalid)
	}

	var login struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	if status := ts.do("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "password123"}, &login); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if login.Token == "" || login.User == nil || login.User.Role != model.RoleAdmin {
		t.Errorf("unexpected login response: %+v", login)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.token("ana")

	if status := ts.do("GET", "/api/items", token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", status)
	}
	if status := ts.do("POST", "/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 for logout, got %d", status)
	}
	if status := ts.do("GET", "/api/items", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.token("ana")

	if status := ts.do("PUT", "/api/auth/password", token, map[string]string{
		"current_password": "nope", "new_password": "brand-new-pass",
	}, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", status)
	}
	if status := ts.do("PUT", "/api/auth/password", token, map[string]string{
		"current_password": "password123", "new_password": "short",
	}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", status)
	}
	if status := ts.do("PUT", "/api/auth/password", token, map[string]string{
		"current_password": "password123", "new_password": "brand-new-pass",
	}, nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := ts.do("POST", "/api/auth/login", "", map[string]string{"username": "ana", "password": "brand-new-pass"}, nil); status != http.StatusOK {
		t.Errorf("expected login with new password, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	ts := setupTestServer(t)

	if status := ts.do("GET", "/api/items", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}
	if status := ts.do("GET", "/api/items", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", status)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	ts := setupTestServer(t)
	borrower := ts.token("ana")

	tests := []struct {
		method, path string
		body         any
	}{
		{"POST", "/api/items", map[string]any{"name": "Test", "total_quantity": 1}},
		{"POST", "/api/items/reconcile", nil},
		{"PUT", "/api/reservations/1/status", map[string]string{"status": "approved"}},
		{"GET", "/api/users", nil},
	}
	for _, tt := range tests {
		if status := ts.do(tt.method, tt.path, borrower, tt.body, nil); status != http.StatusForbidden {
			t.Errorf("%s %s: expected 403 for borrower, got %d", tt.method, tt.path, status)
		}
	}

	if status := ts.do("GET", "/api/users", ts.token("officer"), nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for officer listing users, got %d", status)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	ts := setupTestServer(t)
	officer := ts.token("officer")
	item := ts.createItem("Camera", 5)

	if item.Available != 5 || item.Status != model.ItemStatusAvailable {
		t.Errorf("unexpected new item: %+v", item)
	}

	var updated model.Item
	if status := ts.do("PUT", "/api/items/"+itoa(item.ID), officer, map[string]any{
		"name": "Camera", "condition": "needs_repair",
	}, &updated); status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}
	if updated.Status != model.ItemStatusMaintenance {
		t.Errorf("expected maintenance, got %s", updated.Status)
	}

	if status := ts.do("PUT", "/api/items/"+itoa(item.ID), officer, map[string]any{
		"name": "Camera", "condition": "broken",
	}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown condition, got %d", status)
	}

	if status := ts.do("PUT", "/api/items/"+itoa(item.ID)+"/quantity", officer, map[string]any{
		"total_quantity": 8,
	}, &updated); status != http.StatusOK {
		t.Fatalf("quantity: expected 200, got %d", status)
	}
	if updated.TotalQuantity != 8 || updated.Available != 8 {
		t.Errorf("unexpected quantity update: %+v", updated)
	}
	if status := ts.do("PUT", "/api/items/"+itoa(item.ID)+"/quantity", officer, map[string]any{}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 without total_quantity, got %d", status)
	}

	var items []model.Item
	ts.do("GET", "/api/items?status=maintenance", ts.token("ana"), nil, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item under maintenance, got %d", len(items))
	}

	if status := ts.do("DELETE", "/api/items/"+itoa(item.ID), officer, nil, nil); status != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d", status)
	}
	ts.do("GET", "/api/items", officer, nil, &items)
	if len(items) != 0 {
		t.Errorf("expected archived item hidden, got %d items", len(items))
	}
	if status := ts.do("GET", "/api/items/999", officer, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing item, got %d", status)
	}
}

func TestReservationFlow(t *testing.T) {
	ts := setupTestServer(t)
	officer := ts.token("officer")
	ana := ts.token("ana")
	camera := ts.createItem("Camera", 5)
	base := "/api/items/" + itoa(camera.ID)

	var res model.Reservation
	if status := ts.do("POST", "/api/reservations", ana, map[string]any{
		"item_id": camera.ID, "quantity": 3,
		"borrow_date": date(10), "return_date": date(15),
		"purpose": "field trip",
	}, &res); status != http.StatusCreated {
		t.Fatalf("create reservation: expected 201, got %d", status)
	}
	if res.Status != model.ReservationPending || res.BorrowerID != ts.users["ana"].ID {
		t.Errorf("unexpected reservation: %+v", res)
	}

	var avail lending.Availability
	ts.do("GET", base+"/availability?from="+date(12)+"&to="+date(20), ana, nil, &avail)
	if avail.Available != 5 {
		t.Errorf("pending reservation should not hold capacity, available = %d", avail.Available)
	}

	if status := ts.do("PUT", "/api/reservations/"+itoa(res.ID)+"/status", officer, map[string]string{
		"status": "approved", "note": "ok",
	}, &res); status != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", status)
	}
	if res.Status != model.ReservationApproved || res.ReviewNote != "ok" {
		t.Errorf("unexpected approved reservation: %+v", res)
	}

	ts.do("GET", base+"/availability?from="+date(12)+"&to="+date(20), ana, nil, &avail)
	if avail.Available != 2 || avail.BorrowedCount != 3 {
		t.Errorf("expected 2 available / 3 borrowed, got %+v", avail)
	}
	ts.do("GET", base+"/availability?from="+date(16)+"&to="+date(20), ana, nil, &avail)
	if avail.Available != 5 {
		t.Errorf("expected 5 available after the hold, got %d", avail.Available)
	}

	var conflict map[string]any
	if status := ts.do("POST", "/api/reservations", ts.token("bor"), map[string]any{
		"item_id": camera.ID, "quantity": 3,
		"borrow_date": date(12), "return_date": date(20),
	}, &conflict); status != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient availability, got %d", status)
	}
	if conflict["available"] != float64(2) || conflict["borrowed_count"] != float64(3) {
		t.Errorf("unexpected conflict body: %v", conflict)
	}

	path := "/api/reservations/" + itoa(res.ID) + "/status"
	if status := ts.do("PUT", path, officer, map[string]string{"status": "returned"}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for approved -> returned, got %d", status)
	}
	for _, s := range []string{"borrowed", "returned"} {
		if status := ts.do("PUT", path, officer, map[string]string{"status": s}, &res); status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", s, status)
		}
	}
	if res.ActualReturnDate == nil {
		t.Error("expected actual return date after return")
	}
	if status := ts.do("PUT", path, officer, map[string]string{"status": "rejected"}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for returned -> rejected, got %d", status)
	}

	var notes []model.Notification
	ts.do("GET", "/api/notifications", ana, nil, &notes)
	if len(notes) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(notes))
	}
	if status := ts.do("PUT", "/api/notifications/"+itoa(notes[0].ID)+"/read", ana, nil, nil); status != http.StatusOK {
		t.Errorf("mark read: expected 200, got %d", status)
	}
	if status := ts.do("PUT", "/api/notifications/"+itoa(notes[1].ID)+"/read", ts.token("bor"), nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for someone else's notification, got %d", status)
	}
	ts.do("GET", "/api/notifications?unread=1", ana, nil, &notes)
	if len(notes) != 3 {
		t.Errorf("expected 3 unread notifications, got %d", len(notes))
	}
}

func TestReservationValidation(t *testing.T) {
	ts := setupTestServer(t)
	ana := ts.token("ana")
	camera := ts.createItem("Camera", 2)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad date", map[string]any{"item_id": camera.ID, "quantity": 1, "borrow_date": "tomorrow", "return_date": date(3)}, http.StatusBadRequest},
		{"reversed dates", map[string]any{"item_id": camera.ID, "quantity": 1, "borrow_date": date(5), "return_date": date(3)}, http.StatusBadRequest},
		{"past borrow date", map[string]any{"item_id": camera.ID, "quantity": 1, "borrow_date": date(-2), "return_date": date(3)}, http.StatusBadRequest},
		{"zero quantity", map[string]any{"item_id": camera.ID, "quantity": 0, "borrow_date": date(1), "return_date": date(3)}, http.StatusBadRequest},
		{"missing item", map[string]any{"item_id": 999, "quantity": 1, "borrow_date": date(1), "return_date": date(3)}, http.StatusNotFound},
		{"too many", map[string]any{"item_id": camera.ID, "quantity": 3, "borrow_date": date(1), "return_date": date(3)}, http.StatusConflict},
		{"for someone else", map[string]any{"item_id": camera.ID, "borrower_id": ts.users["bor"].ID, "quantity": 1, "borrow_date": date(1), "return_date": date(3)}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := ts.do("POST", "/api/reservations", ana, tt.body, nil); status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
		})
	}

	if status := ts.do("GET", "/api/items/"+itoa(camera.ID)+"/availability?from="+date(3)+"&to="+date(3), ana, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty availability range, got %d", status)
	}
}

func TestReservationVisibility(t *testing.T) {
	ts := setupTestServer(t)
	camera := ts.createItem("Camera", 2)

	var mine model.Reservation
	ts.do("POST", "/api/reservations", ts.token("ana"), map[string]any{
		"item_id": camera.ID, "quantity": 1, "borrow_date": date(1), "return_date": date(2),
	}, &mine)

	var onBehalf model.Reservation
	if status := ts.do("POST", "/api/reservations", ts.token("officer"), map[string]any{
		"item_id": camera.ID, "borrower_id": ts.users["bor"].ID, "quantity": 1,
		"borrow_date": date(1), "return_date": date(2),
	}, &onBehalf); status != http.StatusCreated {
		t.Fatalf("officer on behalf: expected 201, got %d", status)
	}
	if onBehalf.BorrowerID != ts.users["bor"].ID {
		t.Errorf("expected reservation for bor, got borrower %d", onBehalf.BorrowerID)
	}

	if status := ts.do("GET", "/api/reservations/"+itoa(mine.ID), ts.token("bor"), nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for someone else's reservation, got %d", status)
	}

	var list []model.Reservation
	ts.do("GET", "/api/reservations?borrower_id="+itoa(ts.users["ana"].ID), ts.token("bor"), nil, &list)
	if len(list) != 1 || list[0].ID != onBehalf.ID {
		t.Errorf("borrower should only see own reservations, got %+v", list)
	}

	ts.do("GET", "/api/reservations?status=pending&item_id="+itoa(camera.ID), ts.token("officer"), nil, &list)
	if len(list) != 2 {
		t.Errorf("expected 2 pending reservations, got %d", len(list))
	}
}

func TestUsersAPI(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.token("admin")

	var created model.User
	if status := ts.do("POST", "/api/users", admin, map[string]string{
		"username": "cene", "password": "long-enough", "role": "officer",
	}, &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if status := ts.do("POST", "/api/users", admin, map[string]string{
		"username": "cene", "password": "long-enough", "role": "officer",
	}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", status)
	}
	if status := ts.do("POST", "/api/users", admin, map[string]string{
		"username": "dana", "password": "long-enough", "role": "manager",
	}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown role, got %d", status)
	}

	var officers []model.User
	ts.do("GET", "/api/users?role=officer", admin, nil, &officers)
	if len(officers) != 2 {
		t.Errorf("expected 2 officers, got %d", len(officers))
	}

	if status := ts.do("DELETE", "/api/users/"+itoa(ts.users["admin"].ID), admin, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for self-deletion, got %d", status)
	}
	if status := ts.do("DELETE", "/api/users/"+itoa(created.ID), admin, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for delete, got %d", status)
	}
	if status := ts.do("GET", "/api/users/"+itoa(created.ID), admin, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for deleted user, got %d", status)
	}
}
