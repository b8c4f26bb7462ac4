// Package metatable is the remote metadata table adapter: the shared,
// cross-device project-of-record store. Every operation is scoped to one
// user's records; the sync engine treats failures here as "offline", never as
// fatal for writes that already landed in the local index.
package metatable

import (
	"context"
	"errors"
	"fmt"
	"os"

	"datamentor/internal/dataset"
)

var errUnreachable = errors.New("metatable: remote unreachable")

// Index is the record store keyed by project id.
type Index interface {
	// Upsert writes/overwrites one project record for the user.
	Upsert(ctx context.Context, userID string, p dataset.Project) error
	// List returns all of the user's project records.
	List(ctx context.Context, userID string) ([]dataset.Project, error)
	// Delete removes a record; missing ids are not an error.
	Delete(ctx context.Context, userID, projectID string) error
}

// Open selects an Index implementation using environment variables.
//
//	DATAMENTOR_METADATA_DRIVER: postgres|memory|off (default: postgres when a
//	DSN is set, otherwise off)
//	DATAMENTOR_POSTGRES_DSN: postgres DSN when driver=postgres
//
// A nil Index with nil error means the deployment runs without a remote
// metadata table (pure local mode).
func Open(ctx context.Context) (Index, error) {
	driver := os.Getenv("DATAMENTOR_METADATA_DRIVER")
	dsn := os.Getenv("DATAMENTOR_POSTGRES_DSN")
	if driver == "" {
		if dsn == "" {
			return nil, nil
		}
		driver = "postgres"
	}
	switch driver {
	case "off":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown metadata driver %s", driver)
	}
}
