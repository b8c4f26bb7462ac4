package metatable

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"datamentor/internal/dataset"
)

// Compile-time contract assertion.
var _ Index = (*PostgresIndex)(nil)

const defaultDSN = "postgres://localhost/datamentor?sslmode=disable"

// PostgresIndex persists project records to Postgres. Cells travel as an
// opaque JSONB array; the table is the project-of-record when reachable.
type PostgresIndex struct {
	db *sql.DB
}

// OpenPostgres opens the index using the provided DSN (falls back to
// defaultDSN) and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresIndex, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		cells JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure projects table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS projects_user_idx ON projects (user_id)`); err != nil {
		return nil, fmt.Errorf("ensure user index: %w", err)
	}
	return &PostgresIndex{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (x *PostgresIndex) DB() *sql.DB { return x.db }

// Close releases the connection pool.
func (x *PostgresIndex) Close() error { return x.db.Close() }

func (x *PostgresIndex) Upsert(ctx context.Context, userID string, p dataset.Project) error {
	cells := p.Cells
	if cells == nil {
		cells = []dataset.NotebookCell{}
	}
	payload, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("encode cells for %s: %w", p.ID, err)
	}
	_, err = x.db.ExecContext(ctx,
		`INSERT INTO projects(id,user_id,name,dataset_id,cells,created_at) VALUES($1,$2,$3,$4,$5,$6)
		 ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, dataset_id=EXCLUDED.dataset_id,
		 cells=EXCLUDED.cells, created_at=EXCLUDED.created_at`,
		p.ID, userID, p.Name, p.DatasetID, payload, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", p.ID, err)
	}
	return nil
}

func (x *PostgresIndex) List(ctx context.Context, userID string) ([]dataset.Project, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, name, dataset_id, cells, created_at FROM projects WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []dataset.Project
	for rows.Next() {
		var p dataset.Project
		var cells []byte
		var created time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.DatasetID, &cells, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if len(cells) > 0 {
			if err := json.Unmarshal(cells, &p.Cells); err != nil {
				return nil, fmt.Errorf("decode cells for %s: %w", p.ID, err)
			}
		}
		p.CreatedAt = created.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func (x *PostgresIndex) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID); err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	return nil
}
