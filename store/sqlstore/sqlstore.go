/*
Package sqlstore provides a SQL-backed implementation of generic.Store.

PURPOSE:
  Persists documents in a single `documents` table. The same code runs on
  SQLite (mattn/go-sqlite3) for a single shop install and on PostgreSQL
  (lib/pq) when the shop runs against a hosted database. Only the
  placeholder style, the JSON path expression and row locking differ.

KEY TABLE:
  documents(collection, id, seq, data, created_at, updated_at)
    PRIMARY KEY (collection, id)
    seq is a store-wide creation sequence (ledger tiebreak)
    data is the JSON document body

DIALECTS:
  sqlite3:  json_extract(data, '$.field'), no row locks
  postgres: (data::jsonb)->>'field', SELECT ... FOR UPDATE in Update

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of database transactions.
  SQLite is opened with a single connection so ":memory:" databases are
  shared by every call.

WAL MODE:
  File-backed SQLite is opened with WAL for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlstore.Open("sqlite3", "./data/shopbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on Open/New. The table is schemaless on purpose:
  record shapes live in the domain packages.

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/shopbook/shopbook/generic"
)

// Dialect selects SQL flavour differences.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// ParseDialect maps a database/sql driver name onto a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Store implements generic.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
	now     func() time.Time
}

// Open connects to the database and migrates the schema.
// For SQLite, use ":memory:" for an in-memory database.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	if dialect == SQLite && dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_journal_mode=WAL"
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	store, err := New(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection and migrates the schema.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrations returns the schema statements, one per Exec.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			seq        BIGINT NOT NULL,
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_seq
			ON documents(collection, seq)`,
	}
}

func (s *Store) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns one document or nil when absent.
func (s *Store) Get(ctx context.Context, ref generic.Ref) (*generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.getDoc(ctx, s.db, ref, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	return &doc, nil
}

// Query returns matching documents ordered by creation sequence.
func (s *Store) Query(ctx context.Context, collection generic.Collection, filters ...generic.Filter) ([]generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	b.WriteString(`SELECT id, seq, data, created_at, updated_at FROM documents WHERE collection = ?`)
	args := []any{string(collection)}
	for _, f := range filters {
		if !generic.ValidField(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		b.WriteString(" AND ")
		b.WriteString(s.fieldExpr(f.Field))
		b.WriteString(" = ?")
		args = append(args, f.Value)
	}
	b.WriteString(" ORDER BY seq ASC")

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []generic.Document
	for rows.Next() {
		var (
			doc       generic.Document
			data      string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&doc.Ref.ID, &doc.Seq, &data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		doc.Ref.Collection = collection
		doc.Data = json.RawMessage(data)
		doc.CreatedAt = parseTime(createdAt)
		doc.UpdatedAt = parseTime(updatedAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) getDoc(ctx context.Context, q queryer, ref generic.Ref, lock bool) (generic.Document, error) {
	query := `SELECT seq, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`
	if lock && s.dialect == Postgres {
		query += " FOR UPDATE"
	}

	var (
		doc       = generic.Document{Ref: ref}
		data      string
		createdAt string
		updatedAt string
	)
	err := q.QueryRowContext(ctx, s.rebind(query), string(ref.Collection), ref.ID).
		Scan(&doc.Seq, &data, &createdAt, &updatedAt)
	if err != nil {
		return doc, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return doc, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Create inserts a document and assigns the next creation sequence.
func (s *Store) Create(ctx context.Context, ref generic.Ref, data any) error {
	body, err := generic.Encode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO documents (collection, id, seq, data, created_at, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?, ?, ?)
	`), string(ref.Collection), ref.ID, string(body), now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create %s: %w", ref, err)
	}
	return nil
}

// Update runs fn inside a database transaction around the row.
func (s *Store) Update(ctx context.Context, ref generic.Ref, fn generic.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.getDoc(ctx, tx, ref, true)
		if errors.Is(err, sql.ErrNoRows) {
			return generic.ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ref, err)
		}

		next, err := fn(doc)
		if err != nil {
			return err
		}
		body, err := generic.Encode(next)
		if err != nil {
			return err
		}
		return s.writeBody(ctx, tx, ref, body)
	})
}

// BatchWrite applies every write in one database transaction.
func (s *Store) BatchWrite(ctx context.Context, writes []generic.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, w := range writes {
			if w.Delete {
				if err := s.deleteDoc(ctx, tx, w.Ref); err != nil {
					return err
				}
				continue
			}

			doc, err := s.getDoc(ctx, tx, w.Ref, true)
			if errors.Is(err, sql.ErrNoRows) {
				return generic.ErrDocumentNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", w.Ref, err)
			}
			body, err := generic.MergeFields(doc.Data, w.Fields)
			if err != nil {
				return err
			}
			if err := s.writeBody(ctx, tx, w.Ref, body); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, ref generic.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDoc(ctx, s.db, ref)
}

func (s *Store) writeBody(ctx context.Context, db execer, ref generic.Ref, body json.RawMessage) error {
	_, err := db.ExecContext(ctx, s.rebind(`
		UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?
	`), string(body), s.now().Format(time.RFC3339Nano), string(ref.Collection), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}
	return nil
}

func (s *Store) deleteDoc(ctx context.Context, db execer, ref generic.Ref) error {
	_, err := db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`),
		string(ref.Collection), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// DIALECT HELPERS
// =============================================================================

// fieldExpr extracts a top-level JSON string field. name must already have
// passed generic.ValidField.
func (s *Store) fieldExpr(name string) string {
	if s.dialect == Postgres {
		return "COALESCE((data::jsonb)->>'" + name + "', '')"
	}
	return "COALESCE(json_extract(data, '$." + name + "'), '')"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
