package sync

import (
	"errors"
	"fmt"
)

// ErrDatasetNotFound is returned when every resolution step is exhausted:
// local cache, exact remote folders and the recovery search. Callers must
// surface a "data source missing" failure, never fabricate an empty dataset.
type ErrDatasetNotFound struct {
	DatasetID string
}

func (e ErrDatasetNotFound) Error() string {
	return fmt.Sprintf("dataset %s not found: local cache, remote folders and recovery search exhausted", e.DatasetID)
}

// ErrProjectNotFound is returned when a project id resolves in neither the
// local index nor the remote metadata table.
type ErrProjectNotFound struct {
	ProjectID string
}

func (e ErrProjectNotFound) Error() string {
	return fmt.Sprintf("project %s not found", e.ProjectID)
}

// ErrLocalStore wraps a fatal local storage failure (quota or IO). It is
// surfaced immediately and never retried; network state plays no part in it.
type ErrLocalStore struct {
	Op  string
	Err error
}

func (e ErrLocalStore) Error() string {
	return fmt.Sprintf("local store: %s: %v", e.Op, e.Err)
}

func (e ErrLocalStore) Unwrap() error { return e.Err }

// IsDatasetNotFound reports whether err is a terminal resolution failure.
func IsDatasetNotFound(err error) bool {
	var target ErrDatasetNotFound
	return errors.As(err, &target)
}
