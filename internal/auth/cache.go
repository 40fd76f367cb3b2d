// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrCacheMiss is returned for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// =============================================================================
// TOKEN CACHE
// =============================================================================

// Cache is a key/value store for credentials with per-entry expiry.
type Cache struct {
	db     *sql.DB
	sealer *Sealer
	path   string

	mu     sync.Mutex
	closed bool

	// now is replaceable for expiry tests.
	now func() time.Time
}

// OpenCache opens (creating if needed) the cache at path. A non-empty
// passphrase seals every value written; the salt lives in the same file.
func OpenCache(path, passphrase string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Cache{db: db, path: path, now: time.Now}
	if err := c.init(passphrase); err != nil {
		db.Close()
		return nil, err
	}
	// Best effort; the file holds bearer tokens.
	_ = os.Chmod(path, 0600)
	return c, nil
}

func (c *Cache) init(passphrase string) error {
	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := c.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to configure token cache: %w", err)
		}
	}
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create token cache schema: %w", err)
	}
	if passphrase == "" {
		return nil
	}

	salt, err := c.salt(ctx)
	if err != nil {
		return err
	}
	c.sealer, err = NewSealer(passphrase, salt)
	return err
}

// salt loads the stored salt, creating it on first use.
func (c *Cache) salt(ctx context.Context) ([]byte, error) {
	var encoded string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'salt'`).Scan(&encoded)
	switch {
	case err == nil:
		return base64.StdEncoding.DecodeString(encoded)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to read cache salt: %w", err)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('salt', ?)`,
		base64.StdEncoding.EncodeToString(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to store cache salt: %w", err)
	}
	return salt, nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Sealed reports whether values are written sealed.
func (c *Cache) Sealed() bool {
	return c.sealer != nil
}

// Get returns the value for key, or ErrCacheMiss when absent or expired.
// Expired rows are removed as they are found.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM tokens WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}

	if expiresAt > 0 && c.now().Unix() >= expiresAt {
		_ = c.Delete(ctx, key)
		return "", ErrCacheMiss
	}

	switch {
	case c.sealer != nil:
		return c.sealer.Open(value)
	case IsSealed(value):
		return "", ErrSealedValue
	default:
		return value, nil
	}
}

// Put stores value under key. A zero expiry never expires.
func (c *Cache) Put(ctx context.Context, key, value string, expiry time.Time) error {
	if c.sealer != nil {
		sealed, err := c.sealer.Seal(value)
		if err != nil {
			return err
		}
		value = sealed
	}

	var expiresAt int64
	if !expiry.IsZero() {
		expiresAt = expiry.Unix()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO tokens (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, value, expiresAt, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM tokens WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every cached credential. The salt is kept.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("failed to clear token cache: %w", err)
	}
	return nil
}

// Len returns the number of stored rows, expired ones included.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database. It is safe to call more than once.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
