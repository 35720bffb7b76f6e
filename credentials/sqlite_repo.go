package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const defaultSlot = "default"

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	slot         TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	remember     INTEGER NOT NULL DEFAULT 0,
	updated_at   INTEGER NOT NULL
)`

// SQLiteRepo keeps the pair as a single row. Both halves live in the same
// row, so an upsert or delete always moves them together.
type SQLiteRepo struct {
	db   *sql.DB
	slot string
}

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLiteRepo opens (or creates) the database at path and prepares the
// credentials table.
func OpenSQLiteRepo(ctx context.Context, path string) (*SQLiteRepo, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createCredentialsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}
	return &SQLiteRepo{db: db, slot: defaultSlot}, nil
}

// Close releases the database handle.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) Load(ctx context.Context) (Pair, error) {
	var pair Pair
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, user_id, remember FROM credentials WHERE slot = ?`, r.slot,
	).Scan(&pair.AccessToken, &pair.UserID, &pair.Remember)
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrNotFound
	}
	if err != nil {
		return Pair{}, fmt.Errorf("sqlite load credentials: %w", err)
	}
	if !pair.Complete() {
		return Pair{}, ErrNotFound
	}
	return pair, nil
}

func (r *SQLiteRepo) Save(ctx context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (slot, access_token, user_id, remember, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			access_token = excluded.access_token,
			user_id = excluded.user_id,
			remember = excluded.remember,
			updated_at = excluded.updated_at`,
		r.slot, pair.AccessToken, pair.UserID, pair.Remember, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite save credentials: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE slot = ?`, r.slot); err != nil {
		return fmt.Errorf("sqlite clear credentials: %w", err)
	}
	return nil
}
