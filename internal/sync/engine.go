// Package sync is the synchronization engine: the sole mediator between the
// local cache, the local project index, the remote blob store and the remote
// metadata table. Writes land locally first and mirror remotely best-effort;
// reads fall back from the cache through exact remote paths to a heuristic
// recovery search. The engine favors availability: a single remote failure
// means "offline", not an error.
package sync

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"datamentor/internal/blob"
	"datamentor/internal/cache"
	"datamentor/internal/dataset"
	"datamentor/internal/metatable"
)

// Engine orchestrates reads and writes across the four stores for one user.
// The remote blob store and metadata index may both be nil, which yields a
// pure-local deployment.
type Engine struct {
	userID  string
	local   *cache.Store
	remote  blob.Store
	index   metatable.Index
	log     *zap.SugaredLogger
	metrics MetricsRecorder

	remoteHealthy atomic.Bool
	indexHealthy  atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetricsRecorder attaches a metrics sink to the engine.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = rec }
}

// New constructs an engine. logger may be nil (logging disabled).
func New(userID string, local *cache.Store, remote blob.Store, index metatable.Index, logger *zap.SugaredLogger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Engine{userID: userID, local: local, remote: remote, index: index, log: logger}
	e.remoteHealthy.Store(remote != nil)
	e.indexHealthy.Store(index != nil)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status reports whether the remote sides are configured and last known
// reachable. Remote-unreachable is a status, not an exception.
type Status struct {
	RemoteConfigured bool `json:"remote_configured"`
	RemoteHealthy    bool `json:"remote_healthy"`
	IndexConfigured  bool `json:"index_configured"`
	IndexHealthy     bool `json:"index_healthy"`
}

// Status returns the engine's current degradation flags.
func (e *Engine) Status() Status {
	return Status{
		RemoteConfigured: e.remote != nil,
		RemoteHealthy:    e.remote != nil && e.remoteHealthy.Load(),
		IndexConfigured:  e.index != nil,
		IndexHealthy:     e.index != nil && e.indexHealthy.Load(),
	}
}

func (e *Engine) observe(ctx context.Context, op string, start time.Time, err error) {
	if e.metrics != nil {
		e.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
}

// SaveDataset stores a freshly uploaded payload: local cache first (the
// durability guarantee), then a best-effort remote mirror. A remote failure
// leaves the dataset local-only and unmirrored, never fails the save.
func (e *Engine) SaveDataset(ctx context.Context, payload []byte, name string) (d dataset.Dataset, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "save_dataset", start, err) }()
	d, err = e.writeDataset(ctx, dataset.NewDatasetID(), payload, name)
	return d, err
}

// ReplaceDataset overwrites the payload for an existing id, e.g. when a
// cleaned result is saved back. Most recent wins; no versioning.
func (e *Engine) ReplaceDataset(ctx context.Context, id string, payload []byte, name string) (d dataset.Dataset, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "replace_dataset", start, err) }()
	d, err = e.writeDataset(ctx, id, payload, name)
	return d, err
}

func (e *Engine) writeDataset(ctx context.Context, id string, payload []byte, name string) (dataset.Dataset, error) {
	if err := e.local.PutDataset(ctx, id, payload, name, false); err != nil {
		return dataset.Dataset{}, ErrLocalStore{Op: "put dataset", Err: err}
	}
	mirrored := e.mirror(ctx, id, payload, name)
	if mirrored {
		if err := e.local.MarkMirrored(ctx, id); err != nil {
			e.log.Warnw("failed to record mirror flag", "dataset", id, "error", err)
		}
	}
	return dataset.Dataset{
		ID:        id,
		Name:      name,
		SizeBytes: int64(len(payload)),
		Mirrored:  mirrored,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// mirror enforces the single-active-file policy: existing entries in the
// dataset folder are removed before the new payload is uploaded, so replacing
// a dataset under the same id never accumulates stale objects.
func (e *Engine) mirror(ctx context.Context, id string, payload []byte, name string) bool {
	if e.remote == nil {
		return false
	}
	prefix := dataset.FolderPrefix(e.userID, id)
	entries, err := e.remote.List(ctx, prefix)
	if err != nil {
		e.degradeRemote("list dataset folder", err)
		return false
	}
	for _, ent := range entries {
		if _, err := e.remote.Delete(ctx, ent.Key); err != nil {
			e.degradeRemote("clear dataset folder", err)
			return false
		}
	}
	key := dataset.ObjectKey(e.userID, id, name)
	if _, err := e.remote.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentTypeFor(name)}); err != nil {
		e.degradeRemote("upload dataset", err)
		return false
	}
	e.remoteHealthy.Store(true)
	return true
}

// CreateProject makes a new project bound to a dataset and persists it.
func (e *Engine) CreateProject(ctx context.Context, name, datasetID string) (dataset.Project, error) {
	p := dataset.Project{
		ID:        dataset.NewProjectID(),
		Name:      name,
		DatasetID: datasetID,
		Cells:     []dataset.NotebookCell{},
		CreatedAt: time.Now().UTC(),
	}
	if err := e.SaveProject(ctx, p); err != nil {
		return dataset.Project{}, err
	}
	return p, nil
}

// SaveProject writes the record to the local project index unconditionally,
// then best-effort upserts it into the remote metadata table. The local write
// is the durability guarantee; a remote failure neither rolls it back nor
// blocks it.
func (e *Engine) SaveProject(ctx context.Context, p dataset.Project) (err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "save_project", start, err) }()
	if lerr := e.local.SaveProject(ctx, p); lerr != nil {
		err = ErrLocalStore{Op: "save project", Err: lerr}
		return err
	}
	if e.index != nil {
		if uerr := e.index.Upsert(ctx, e.userID, p); uerr != nil {
			e.degradeIndex("upsert project", uerr)
		} else {
			e.indexHealthy.Store(true)
		}
	}
	return nil
}

// GetProject loads one project, local index first, remote table as fallback.
func (e *Engine) GetProject(ctx context.Context, id string) (dataset.Project, error) {
	p, ok, err := e.local.GetProject(ctx, id)
	if err != nil {
		return dataset.Project{}, ErrLocalStore{Op: "get project", Err: err}
	}
	if ok {
		return p, nil
	}
	if e.index != nil {
		remote, lerr := e.index.List(ctx, e.userID)
		if lerr != nil {
			e.degradeIndex("list projects", lerr)
		} else {
			e.indexHealthy.Store(true)
			for _, rp := range remote {
				if rp.ID == id {
					return rp, nil
				}
			}
		}
	}
	return dataset.Project{}, ErrProjectNotFound{ProjectID: id}
}

// DeleteProject removes a project and its dataset everywhere it may live:
// local index, local cache (dataset- and project-keyed payloads), remote
// metadata row and both candidate remote folders. The local steps are the
// synchronous guarantee; remote cleanup is best effort and only logged.
func (e *Engine) DeleteProject(ctx context.Context, projectID, datasetID string) (err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "delete_project", start, err) }()

	if lerr := e.local.DeleteProject(ctx, projectID); lerr != nil {
		err = ErrLocalStore{Op: "delete project", Err: lerr}
		return err
	}
	if datasetID != "" {
		if lerr := e.local.DeleteDataset(ctx, datasetID); lerr != nil {
			err = ErrLocalStore{Op: "delete dataset payload", Err: lerr}
			return err
		}
	}
	// recovery may have cached a payload under the project id as well
	if lerr := e.local.DeleteDataset(ctx, projectID); lerr != nil {
		err = ErrLocalStore{Op: "delete project-keyed payload", Err: lerr}
		return err
	}

	if e.index != nil {
		if derr := e.index.Delete(ctx, e.userID, projectID); derr != nil {
			e.degradeIndex("delete project record", derr)
		} else {
			e.indexHealthy.Store(true)
		}
	}
	if e.remote != nil {
		if datasetID != "" {
			e.removeFolder(ctx, datasetID)
		}
		e.removeFolder(ctx, projectID)
	}
	return nil
}

func (e *Engine) removeFolder(ctx context.Context, folderID string) {
	prefix := dataset.FolderPrefix(e.userID, folderID)
	entries, err := e.remote.List(ctx, prefix)
	if err != nil {
		e.degradeRemote("list folder for cleanup", err)
		return
	}
	for _, ent := range entries {
		if _, err := e.remote.Delete(ctx, ent.Key); err != nil {
			e.degradeRemote("remove blob", err)
			return
		}
	}
	e.remoteHealthy.Store(true)
}

func (e *Engine) degradeRemote(op string, err error) {
	e.remoteHealthy.Store(false)
	e.log.Warnw("remote blob store unreachable, continuing local-only", "op", op, "error", err)
}

func (e *Engine) degradeIndex(op string, err error) {
	e.indexHealthy.Store(false)
	e.log.Warnw("remote metadata table unreachable, continuing local-only", "op", op, "error", err)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".xlsx", ".xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func sortProjectsNewestFirst(ps []dataset.Project) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
}
