// Package sqlite provides a SQLite-backed document store and counter service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/cadence/pkg/metrics"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const backend = "sqlite"

// Store persists documents and counters in SQLite.
type Store struct {
	sqlDB      *sql.DB
	batchLimit int
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithBatchLimit sets the maximum number of mutations per Commit.
func WithBatchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// Open opens a SQLite store at path and applies embedded migrations. The
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{sqlDB: sqlDB, batchLimit: repository.DefaultBatchLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) BatchLimit() int { return s.batchLimit }

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(backend, op)
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Get(ctx context.Context, collection, id string) (doc repository.Document, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())
	return get(ctx, s.sqlDB, collection, id)
}

func get(ctx context.Context, q querier, collection, id string) (repository.Document, error) {
	var fields string
	var body []byte
	err := q.QueryRowContext(ctx,
		`SELECT fields, body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&fields, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.Document{}, fmt.Errorf("%s/%s: %w", collection, id, repository.ErrNotFound)
	}
	if err != nil {
		return repository.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeRow(id, fields, body)
}

func decodeRow(id, fields string, body []byte) (repository.Document, error) {
	doc := repository.Document{ID: id, Body: body}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return repository.Document{}, fmt.Errorf("decode fields of %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Document, error) {
	return s.Query(ctx, collection)
}

// Query joins one EXISTS clause per filter against the field index.
func (s *Store) Query(ctx context.Context, collection string, filters ...repository.Filter) (out []repository.Document, err error) {
	defer func(start time.Time) { observe("query", start, err) }(time.Now())

	var sb strings.Builder
	sb.WriteString(`SELECT d.id, d.fields, d.body FROM documents d WHERE d.collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		if len(f.Values) == 0 {
			return nil, nil
		}
		sb.WriteString(` AND EXISTS (SELECT 1 FROM document_fields f WHERE f.collection = d.collection AND f.id = d.id AND f.field = ? AND f.value IN (`)
		sb.WriteString(strings.TrimSuffix(strings.Repeat("?,", len(f.Values)), ","))
		sb.WriteString(`))`)
		args = append(args, f.Field)
		for _, v := range f.Values {
			args = append(args, v)
		}
	}
	sb.WriteString(` ORDER BY d.id`)

	rows, err := s.sqlDB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, fields string
		var body []byte
		if err := rows.Scan(&id, &fields, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decodeRow(id, fields, body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, collection string, doc repository.Document) error {
	return s.Commit(ctx, []repository.Mutation{repository.SetMutation(collection, doc)})
}

func (s *Store) Update(ctx context.Context, collection, id string, p repository.Patch) error {
	return s.Commit(ctx, []repository.Mutation{repository.UpdateMutation(collection, id, p)})
}

// Create inserts doc, failing with ErrAlreadyExists on a key collision.
func (s *Store) Create(ctx context.Context, collection string, doc repository.Document) (err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", repository.ErrInvalidRequest)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		fields, err := json.Marshal(nonNil(doc.Fields))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, fields, body, updated_at) VALUES (?, ?, ?, ?, ?)`,
			collection, doc.ID, string(fields), doc.Body, time.Now().UTC().UnixMilli(),
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%s/%s: %w", collection, doc.ID, repository.ErrAlreadyExists)
			}
			return fmt.Errorf("create %s/%s: %w", collection, doc.ID, err)
		}
		return writeFields(ctx, tx, collection, doc)
	})
}

// Commit applies muts in one transaction.
func (s *Store) Commit(ctx context.Context, muts []repository.Mutation) (err error) {
	defer func(start time.Time) { observe("commit", start, err) }(time.Now())
	if err := repository.ValidateBatch(muts, s.batchLimit); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range muts {
			if err := apply(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func apply(ctx context.Context, tx *sql.Tx, m repository.Mutation) error {
	switch m.Kind {
	case repository.MutationSet:
		doc := m.Doc
		doc.ID = m.ID
		return put(ctx, tx, m.Collection, doc)
	case repository.MutationUpdate:
		cur, err := get(ctx, tx, m.Collection, m.ID)
		if err != nil {
			return err
		}
		next, err := repository.ApplyPatch(cur, m.Patch)
		if err != nil {
			return err
		}
		return put(ctx, tx, m.Collection, next)
	case repository.MutationAppendUnique:
		cur, err := get(ctx, tx, m.Collection, m.ID)
		if err != nil {
			return err
		}
		body, changed, err := repository.AppendUnique(cur.Body, m.Field, m.Values)
		if err != nil || !changed {
			return err
		}
		cur.Body = body
		return put(ctx, tx, m.Collection, cur)
	}
	return fmt.Errorf("%w: unknown mutation kind %d", repository.ErrInvalidRequest, m.Kind)
}

func put(ctx context.Context, tx *sql.Tx, collection string, doc repository.Document) error {
	fields, err := json.Marshal(nonNil(doc.Fields))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, body, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET
		   fields = excluded.fields,
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		collection, doc.ID, string(fields), doc.Body, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, doc.ID, err)
	}
	return writeFields(ctx, tx, collection, doc)
}

func writeFields(ctx context.Context, tx *sql.Tx, collection string, doc repository.Document) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_fields WHERE collection = ? AND id = ?`, collection, doc.ID,
	); err != nil {
		return fmt.Errorf("clear fields of %s/%s: %w", collection, doc.ID, err)
	}
	for _, k := range slices.Sorted(maps.Keys(doc.Fields)) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_fields (collection, id, field, value) VALUES (?, ?, ?, ?)`,
			collection, doc.ID, k, doc.Fields[k],
		); err != nil {
			return fmt.Errorf("index %s of %s/%s: %w", k, collection, doc.ID, err)
		}
	}
	return nil
}

// Next increments the named counter in a single statement.
func (s *Store) Next(ctx context.Context, name string) (v int64, err error) {
	defer func(start time.Time) { observe("counter", start, err) }(time.Now())
	err = s.sqlDB.QueryRowContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = value + 1
		 RETURNING value`,
		name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("advance counter %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ repository.Backend = (*Store)(nil)
