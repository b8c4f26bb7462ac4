// Package cache implements the durable client-local store: dataset payloads
// keyed by opaque id plus a local mirror of project records. It is the
// authority for offline work; operations never depend on network state and
// fail only on local storage problems.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"datamentor/internal/dataset"
)

// Cached is one locally stored dataset payload.
type Cached struct {
	Payload   []byte
	Name      string
	SizeBytes int64
	Mirrored  bool
	UpdatedAt time.Time
}

// Store is a single-file SQLite store holding dataset payloads and the local
// project index.
type Store struct {
	db   *sql.DB
	path string
}

// Open constructs the local store at path, creating the schema if needed.
// An empty path defaults to ./datamentor.db; ":memory:" is supported for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "datamentor.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// in-memory databases vanish per connection; keep a single one
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payload BLOB NOT NULL,
		size_bytes INTEGER NOT NULL,
		mirrored INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create datasets table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		record BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create projects table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// PutDataset durably stores the payload, replacing any prior value for the id.
func (s *Store) PutDataset(ctx context.Context, id string, payload []byte, name string, mirrored bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets(id,name,payload,size_bytes,mirrored,updated_at) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, payload=excluded.payload,
		 size_bytes=excluded.size_bytes, mirrored=excluded.mirrored, updated_at=excluded.updated_at`,
		id, name, payload, int64(len(payload)), boolInt(mirrored), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put dataset %s: %w", id, err)
	}
	return nil
}

// GetDataset returns the payload for id; the second return is false on a miss.
func (s *Store) GetDataset(ctx context.Context, id string) (Cached, bool, error) {
	var c Cached
	var mirrored int
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, name, size_bytes, mirrored, updated_at FROM datasets WHERE id = ?`, id).
		Scan(&c.Payload, &c.Name, &c.SizeBytes, &mirrored, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Cached{}, false, nil
	}
	if err != nil {
		return Cached{}, false, fmt.Errorf("get dataset %s: %w", id, err)
	}
	c.Mirrored = mirrored != 0
	if ts, perr := time.Parse(time.RFC3339Nano, updated); perr == nil {
		c.UpdatedAt = ts
	}
	return c, true, nil
}

// MarkMirrored records that the payload for id reached the remote blob store.
func (s *Store) MarkMirrored(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE datasets SET mirrored = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark mirrored %s: %w", id, err)
	}
	return nil
}

// DeleteDataset removes the payload for id; missing ids are not an error.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	return nil
}

// SaveProject writes/overwrites the record in the local project index.
func (s *Store) SaveProject(ctx context.Context, p dataset.Project) error {
	record, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects(id,record,created_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET record=excluded.record, created_at=excluded.created_at`,
		p.ID, record, p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject loads one project record; the second return is false on a miss.
func (s *Store) GetProject(ctx context.Context, id string) (dataset.Project, bool, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM projects WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return dataset.Project{}, false, nil
	}
	if err != nil {
		return dataset.Project{}, false, fmt.Errorf("get project %s: %w", id, err)
	}
	var p dataset.Project
	if err := json.Unmarshal(record, &p); err != nil {
		return dataset.Project{}, false, fmt.Errorf("decode project %s: %w", id, err)
	}
	return p, true, nil
}

// ListProjects returns all locally known projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]dataset.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []dataset.Project
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		var p dataset.Project
		if err := json.Unmarshal(record, &p); err != nil {
			return nil, fmt.Errorf("decode project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes a record from the local index; missing ids are not an error.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
