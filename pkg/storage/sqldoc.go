// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported SQL document store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// SQLConfig configures a SQL-backed document store.
type SQLConfig struct {
	// Driver is DriverSQLite (embedded, default) or DriverPostgres.
	Driver string

	// DSN is the sqlite file path or the postgres connection string.
	DSN string

	// Collection namespaces documents so several targets can share a table.
	Collection string

	// CacheSize bounds the Get cache. Zero uses 512 entries.
	CacheSize int

	// ReadOnly skips schema creation and rejects writes. A database without
	// the documents table reads as empty; a missing sqlite file is not
	// created.
	ReadOnly bool
}

// SQLDocumentStore implements DocumentStore on sqlite (modernc) or postgres
// (pgx). Documents are stored as JSON bodies keyed by (collection, id) with a
// version column for optimistic concurrency.
type SQLDocumentStore struct {
	db         *sql.DB
	dialect    dialect
	collection string
	cache      *lru.Cache[string, ProjectDocument]
	now        func() time.Time
	readOnly   bool
	noTable    bool

	mu     sync.RWMutex
	closed bool
}

type dialect struct {
	name      string
	bind      func(n int) string
	jsonParam func(n int) string
	schema    string
	hasTable  string
}

var sqliteDialect = dialect{
	name:      DriverSQLite,
	bind:      func(int) string { return "?" },
	jsonParam: func(int) string { return "?" },
	schema: `
CREATE TABLE IF NOT EXISTS project_documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  version INTEGER NOT NULL,
  body TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  PRIMARY KEY (collection, id)
);`,
	hasTable: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'project_documents'`,
}

var postgresDialect = dialect{
	name:      DriverPostgres,
	bind:      func(n int) string { return fmt.Sprintf("$%d", n) },
	jsonParam: func(n int) string { return fmt.Sprintf("$%d::jsonb", n) },
	schema: `
CREATE TABLE IF NOT EXISTS project_documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  version BIGINT NOT NULL,
  body JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  PRIMARY KEY (collection, id)
);`,
	hasTable: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'project_documents'`,
}

// NewSQLDocumentStore opens the database, ensures the schema exists unless
// cfg.ReadOnly is set, and returns a ready store.
func NewSQLDocumentStore(cfg SQLConfig) (*SQLDocumentStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "projects"
	}
	if !collectionPattern.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("document store dsn is required")
	}

	var (
		d          dialect
		driverName string
	)
	switch driver {
	case DriverSQLite:
		d, driverName = sqliteDialect, "sqlite"
		isPath := dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
		if isPath && cfg.ReadOnly {
			if _, err := os.Stat(dsn); errors.Is(err, os.ErrNotExist) {
				dsn = ":memory:"
			}
		} else if isPath {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	case DriverPostgres:
		d, driverName = postgresDialect, "pgx"
	default:
		return nil, fmt.Errorf("unsupported document store driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	noTable := false
	if cfg.ReadOnly {
		var n int
		if err := db.QueryRow(d.hasTable).Scan(&n); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("inspect schema: %w", err)
		}
		noTable = n == 0
	} else if _, err := db.Exec(d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, ProjectDocument](size)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &SQLDocumentStore{
		db:         db,
		dialect:    d,
		collection: collection,
		cache:      cache,
		now:        time.Now,
		readOnly:   cfg.ReadOnly,
		noTable:    noTable,
	}, nil
}

// Driver reports which SQL dialect the store speaks.
func (s *SQLDocumentStore) Driver() string { return s.dialect.name }

// Get implements DocumentStore.
func (s *SQLDocumentStore) Get(ctx context.Context, id string) (*ProjectDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.noTable {
		return nil, ErrNotFound
	}
	if doc, ok := s.cache.Get(id); ok {
		clone := doc.Clone()
		return &clone, nil
	}

	q := fmt.Sprintf(`SELECT version, body FROM project_documents WHERE collection = %s AND id = %s`,
		s.dialect.bind(1), s.dialect.bind(2))
	var (
		version int64
		body    []byte
	)
	err := s.db.QueryRowContext(ctx, q, s.collection, id).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	doc, err := decodeDocument(body, version)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	s.cache.Add(id, doc)
	clone := doc.Clone()
	return &clone, nil
}

// List implements DocumentStore.
func (s *SQLDocumentStore) List(ctx context.Context) ([]ProjectDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.noTable {
		return nil, nil
	}

	q := fmt.Sprintf(`SELECT version, body FROM project_documents WHERE collection = %s ORDER BY id`, s.dialect.bind(1))
	rows, err := s.db.QueryContext(ctx, q, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []ProjectDocument
	for rows.Next() {
		var (
			version int64
			body    []byte
		)
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(body, version)
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// CompareAndSwap implements DocumentStore.
func (s *SQLDocumentStore) CompareAndSwap(ctx context.Context, doc ProjectDocument, expected int64) (ProjectDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ProjectDocument{}, ErrClosed
	}
	if s.readOnly {
		return ProjectDocument{}, fmt.Errorf("write %s: %w", doc.ID, ErrReadOnly)
	}

	stored := doc.Clone()
	stored.Version = expected + 1
	stored.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	body, err := json.Marshal(stored)
	if err != nil {
		return ProjectDocument{}, fmt.Errorf("encode %s: %w", doc.ID, err)
	}

	var res sql.Result
	if expected == 0 {
		q := fmt.Sprintf(`INSERT INTO project_documents (collection, id, version, body, updated_at)
VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (collection, id) DO NOTHING`,
			s.dialect.bind(1), s.dialect.bind(2), s.dialect.bind(3), s.dialect.jsonParam(4), s.dialect.bind(5))
		res, err = s.db.ExecContext(ctx, q, s.collection, stored.ID, stored.Version, string(body), stored.UpdatedAt)
	} else {
		q := fmt.Sprintf(`UPDATE project_documents SET version = %s, body = %s, updated_at = %s
WHERE collection = %s AND id = %s AND version = %s`,
			s.dialect.bind(1), s.dialect.jsonParam(2), s.dialect.bind(3),
			s.dialect.bind(4), s.dialect.bind(5), s.dialect.bind(6))
		res, err = s.db.ExecContext(ctx, q, stored.Version, string(body), stored.UpdatedAt, s.collection, stored.ID, expected)
	}
	if err != nil {
		return ProjectDocument{}, fmt.Errorf("write %s: %w", doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ProjectDocument{}, fmt.Errorf("write %s: %w", doc.ID, err)
	}
	s.cache.Remove(stored.ID)
	if n == 0 {
		return ProjectDocument{}, fmt.Errorf("%w: %s expected version %d", ErrConflict, doc.ID, expected)
	}
	return stored, nil
}

// DeleteAll implements DocumentStore.
func (s *SQLDocumentStore) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.readOnly {
		return 0, fmt.Errorf("delete documents: %w", ErrReadOnly)
	}
	q := fmt.Sprintf(`DELETE FROM project_documents WHERE collection = %s`, s.dialect.bind(1))
	res, err := s.db.ExecContext(ctx, q, s.collection)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	s.cache.Purge()
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return int(n), nil
}

// Close implements DocumentStore.
func (s *SQLDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func decodeDocument(body []byte, version int64) (ProjectDocument, error) {
	var doc ProjectDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return ProjectDocument{}, err
	}
	// The version column is authoritative.
	doc.Version = version
	if doc.Components == nil {
		doc.Components = []ComponentDocument{}
	}
	return doc, nil
}
