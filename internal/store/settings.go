package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// EnsureSetting stores value under key unless the key already exists, and
// returns whichever value is stored. INSERT OR IGNORE followed by a read keeps
// concurrent first runs from disagreeing.
func EnsureSetting(ctx context.Context, q Querier, key, value string) (string, error) {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, value,
	)
	if err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	var stored string
	err = q.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return stored, nil
}

// GetJWTSecret returns the signing secret, generating one on first use.
func GetJWTSecret(ctx context.Context, q Querier) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return EnsureSetting(ctx, q, "jwt_secret", hex.EncodeToString(buf))
}
