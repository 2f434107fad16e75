package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cached_notifications (
	user_id  TEXT    NOT NULL,
	id       TEXT    NOT NULL,
	position INTEGER NOT NULL,
	payload  TEXT    NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS cache_flags (
	user_id    TEXT    PRIMARY KEY,
	has_unseen INTEGER NOT NULL DEFAULT 0
);`

// SQLiteCache stores each user's State in a local SQLite file.
type SQLiteCache struct {
	db *sqlx.DB
}

// DefaultCachePath returns ~/.taskhub/cache.db, creating the directory.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	dir := filepath.Join(home, ".taskhub")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "cache.db"), nil
}

// OpenSQLiteCache opens (or creates) the cache database at dbPath.
func OpenSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

type cachedRow struct {
	ID      string `db:"id"`
	Payload string `db:"payload"`
}

// Load returns the stored state; a user with nothing cached gets an empty state.
func (c *SQLiteCache) Load(ctx context.Context, userID string) (State, error) {
	var rows []cachedRow
	err := c.db.SelectContext(ctx, &rows,
		"SELECT id, payload FROM cached_notifications WHERE user_id = ? ORDER BY position",
		userID,
	)
	if err != nil {
		return State{}, fmt.Errorf("reading cached notifications: %w", err)
	}

	state := State{Items: make([]Item, 0, len(rows))}
	for _, row := range rows {
		var item Item
		if err := json.Unmarshal([]byte(row.Payload), &item); err != nil {
			return State{}, fmt.Errorf("decoding cached notification %s: %w", row.ID, err)
		}
		state.Items = append(state.Items, item)
	}

	var hasUnseen int
	err = c.db.GetContext(ctx, &hasUnseen, "SELECT has_unseen FROM cache_flags WHERE user_id = ?", userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return State{}, fmt.Errorf("reading unseen flag: %w", err)
	default:
		state.HasUnseen = hasUnseen != 0
	}
	return state, nil
}

// Save replaces the user's cached list and flag in one transaction.
func (c *SQLiteCache) Save(ctx context.Context, userID string, s State) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cached_notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO cached_notifications (user_id, id, position, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, item := range s.Items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding notification %s: %w", item.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, userID, item.ID, i, string(payload)); err != nil {
			return fmt.Errorf("caching notification %s: %w", item.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_flags (user_id, has_unseen) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET has_unseen = excluded.has_unseen`,
		userID, boolToInt(s.HasUnseen),
	)
	if err != nil {
		return fmt.Errorf("writing unseen flag: %w", err)
	}

	return tx.Commit()
}

// Clear removes everything cached for the user.
func (c *SQLiteCache) Clear(ctx context.Context, userID string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cached_notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_flags WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing unseen flag: %w", err)
	}
	return tx.Commit()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
