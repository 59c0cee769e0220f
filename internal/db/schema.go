package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'borrower' CHECK (role IN ('admin', 'officer', 'borrower')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT,
    category       TEXT,
    image          BLOB,
    image_mime     TEXT,
    total_quantity INTEGER NOT NULL DEFAULT 0 CHECK (total_quantity >= 0),
    available      INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0 AND available <= total_quantity),
    status         TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'all_borrowed', 'maintenance')),
    condition      TEXT NOT NULL DEFAULT 'good' CHECK (condition IN ('good', 'fair', 'needs_repair')),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived_at    DATETIME
);

CREATE TABLE IF NOT EXISTS reservations (
    id                 INTEGER PRIMARY KEY,
    request_code       TEXT NOT NULL UNIQUE,
    item_id            INTEGER NOT NULL REFERENCES items(id),
    borrower_id        INTEGER NOT NULL REFERENCES users(id),
    quantity           INTEGER NOT NULL CHECK (quantity >= 1),
    borrow_date        TEXT NOT NULL,
    return_date        TEXT NOT NULL,
    purpose            TEXT NOT NULL DEFAULT '',
    notes              TEXT,
    status             TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'borrowed', 'returned', 'rejected')),
    actual_return_date DATETIME,
    reviewed_by        INTEGER REFERENCES users(id),
    review_note        TEXT,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (return_date > borrow_date)
);

CREATE INDEX IF NOT EXISTS idx_reservations_item_status
    ON reservations(item_id, status);

CREATE INDEX IF NOT EXISTS idx_reservations_borrower
    ON reservations(borrower_id);

CREATE TABLE IF NOT EXISTS notifications (
    id             INTEGER PRIMARY KEY,
    user_id        INTEGER NOT NULL REFERENCES users(id),
    reservation_id INTEGER REFERENCES reservations(id),
    kind           TEXT NOT NULL,
    message        TEXT NOT NULL,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    read_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_user
    ON notifications(user_id, read_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
