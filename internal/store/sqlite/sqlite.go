// Package sqlite is the transactional inventory.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
	"packtrack/internal/store/sqlite/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// FileName is the database file created inside the configured data dir.
const FileName = "packtrack.db"

// Store implements inventory.Store using SQLite. Every operation runs in its
// own transaction; there is no atomicity across tables or calls.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. path can be ":memory:".
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	s := NewStoreFromDB(db)
	s.path = path
	return s, nil
}

// NewStoreFromDB wraps an existing connection. The caller is responsible for
// the schema.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// PutBox upserts a box by ID.
func (s *Store) PutBox(ctx context.Context, box model.Box) error {
	if err := s.check(); err != nil {
		return err
	}

	const query = `INSERT INTO boxes (id, name, is_full, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_full = excluded.is_full,
			created_at = excluded.created_at`

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, query, box.ID, box.Name, box.IsFull, box.CreatedAt.UnixMilli())
		return err
	})
	if err != nil {
		return unavailable("upserting box", err)
	}
	return nil
}

// PutItem upserts an item by ID.
func (s *Store) PutItem(ctx context.Context, item model.Item) error {
	if err := s.check(); err != nil {
		return err
	}

	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	const query = `INSERT INTO items (id, box_id, box_name, image_url, name, description, tags, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			box_id = excluded.box_id,
			box_name = excluded.box_name,
			image_url = excluded.image_url,
			name = excluded.name,
			description = excluded.description,
			tags = excluded.tags,
			timestamp = excluded.timestamp`

	err = withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, query,
			item.ID, item.BoxID, item.BoxName, item.ImageURL, item.Name, item.Description,
			string(tagsJSON), item.Timestamp.UnixMilli())
		return err
	})
	if err != nil {
		return unavailable("upserting item", err)
	}
	return nil
}

// GetAllBoxes returns every stored box.
func (s *Store) GetAllBoxes(ctx context.Context) ([]model.Box, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var boxes []model.Box
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, name, is_full, created_at FROM boxes`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b         model.Box
				createdAt int64
			)
			if err := rows.Scan(&b.ID, &b.Name, &b.IsFull, &createdAt); err != nil {
				return err
			}
			b.CreatedAt = time.UnixMilli(createdAt).UTC()
			boxes = append(boxes, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, unavailable("selecting boxes", err)
	}
	if boxes == nil {
		boxes = []model.Box{}
	}
	return boxes, nil
}

// GetAllItems returns every stored item. A row whose tags column is not a
// JSON array fails the whole read with inventory.ErrMalformedData.
func (s *Store) GetAllItems(ctx context.Context) ([]model.Item, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var (
		items     []model.Item
		malformed error
	)
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, box_id, box_name, image_url, name, description, tags, timestamp FROM items`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				it        model.Item
				tagsJSON  string
				timestamp int64
			)
			if err := rows.Scan(&it.ID, &it.BoxID, &it.BoxName, &it.ImageURL, &it.Name, &it.Description, &tagsJSON, &timestamp); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(tagsJSON), &it.Tags); err != nil {
				malformed = fmt.Errorf("%w: item %s tags: %v", inventory.ErrMalformedData, it.ID, err)
				return malformed
			}
			if it.Tags == nil {
				it.Tags = []string{}
			}
			it.Timestamp = time.UnixMilli(timestamp).UTC()
			items = append(items, it)
		}
		return rows.Err()
	})
	if malformed != nil {
		return nil, malformed
	}
	if err != nil {
		return nil, unavailable("selecting items", err)
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// Delete removes a record by ID. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, table inventory.Table, id string) error {
	if err := s.check(); err != nil {
		return err
	}

	var query string
	switch table {
	case inventory.TableBoxes:
		query = `DELETE FROM boxes WHERE id = ?`
	case inventory.TableItems:
		query = `DELETE FROM items WHERE id = ?`
	default:
		return fmt.Errorf("unknown table: %s", table)
	}

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, query, id)
		return err
	})
	if err != nil {
		return unavailable("deleting from "+string(table), err)
	}
	return nil
}

// CheckMigrations verifies that the schema is up to date.
func (s *Store) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using
// VACUUM INTO. destPath must not exist.
func (s *Store) BackupTo(ctx context.Context, destPath string) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path, empty for wrapped connections.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection. Later operations fail with
// inventory.ErrStorageUnavailable.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check() error {
	if s.closed.Load() {
		return fmt.Errorf("sqlite store closed: %w", inventory.ErrStorageUnavailable)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, inventory.ErrStorageUnavailable, err)
}

// Compile-time check that Store implements inventory.Store interface
var _ inventory.Store = (*Store)(nil)
