/*
Package sqlite provides a SQLite-backed implementation of domain.DocumentStore.

PURPOSE:
  Stands in for the external document database (one table of property-bag
  documents keyed by collection + opaque id). Useful for running the engine
  on a single machine and for integration tests against a real database.

KEY TABLES:
  documents: (collection, id, properties_json, created_at, updated_at)

FILTERING:
  Queries select one collection in insertion order and evaluate the
  domain.Filter in Go. Property names are display names chosen by the
  operator (some with trailing spaces), so they are not promoted to columns.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, like the in-memory store.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers never block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/accountability.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repos := documents.New(store)

SEE ALSO:
  - domain/store.go: DocumentStore interface
  - domain/store/memory.go: In-memory implementation for testing
  - store/documents: Typed repositories on top of this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/accountability-engine/domain"
)

// Store implements domain.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		collection TEXT NOT NULL,
		properties_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, properties_json, created_at, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var result []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows, collection)
		if err != nil {
			return nil, err
		}
		if filter.Matches(doc.Properties) {
			result = append(result, doc)
		}
	}
	return result, rows.Err()
}

func (s *Store) Create(ctx context.Context, collection string, props domain.Properties) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(props)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode %s properties: %w", collection, err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection, properties_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, collection, string(data), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert %s: %w", collection, err)
	}

	// Round-trip through JSON so callers see the same shapes Query returns.
	var stored domain.Properties
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{ID: id, Collection: collection, Properties: stored, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, props domain.Properties) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, properties_json, created_at, updated_at
		FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDocument(row, collection)
	if err == sql.ErrNoRows {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, err
	}

	for k, v := range props {
		doc.Properties[k] = v
	}
	data, err := json.Marshal(doc.Properties)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode %s properties: %w", collection, err)
	}

	doc.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET properties_json = ?, updated_at = ?
		WHERE collection = ? AND id = ?`,
		string(data), doc.UpdatedAt.Format(time.RFC3339Nano), collection, id); err != nil {
		return domain.Document{}, fmt.Errorf("update %s: %w", collection, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}

	var stored domain.Properties
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Document{}, err
	}
	doc.Properties = stored
	return doc, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, collection string) (domain.Document, error) {
	var (
		id, propsJSON, createdAt, updatedAt string
	)
	if err := row.Scan(&id, &propsJSON, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}

	props := domain.Properties{}
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}

	doc := domain.Document{ID: id, Collection: collection, Properties: props}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return doc, nil
}
