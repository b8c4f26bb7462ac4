package sync

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"datamentor/internal/dataset"
	"datamentor/internal/sandbox"
)

// Resolution is the outcome of a successful dataset lookup.
type Resolution struct {
	// Data is the payload bytes.
	Data []byte
	// Name is the display filename the payload was found under.
	Name string
	// IsLocal is true when the payload came straight from the local cache.
	IsLocal bool
	// RecoveredDatasetID is set when the payload was found in a folder other
	// than the expected one. Callers should heal the project pointer to it.
	RecoveredDatasetID string
}

// Resolve locates a dataset payload, trying progressively broader sources:
//
//  1. the local cache under datasetID
//  2. the exact remote folder for datasetID
//  3. the remote folder for projectID (older records stored payloads there)
//  4. a recovery search across every folder the user owns, matching the
//     display name hint and then the dataset id against stored filenames
//
// Every remote step found by 2-4 is written through to the local cache under
// the original datasetID so the next open is a cache hit. Remote errors count
// as misses and degrade status; only exhausting all steps is an error.
func (e *Engine) Resolve(ctx context.Context, datasetID, projectID, nameHint string) (res Resolution, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "resolve_dataset", start, err) }()

	cached, ok, lerr := e.local.GetDataset(ctx, datasetID)
	if lerr != nil {
		err = ErrLocalStore{Op: "get dataset", Err: lerr}
		return Resolution{}, err
	}
	if ok {
		return Resolution{Data: cached.Payload, Name: cached.Name, IsLocal: true}, nil
	}

	if e.remote == nil {
		err = ErrDatasetNotFound{DatasetID: datasetID}
		return Resolution{}, err
	}

	if res, ok := e.fetchFolder(ctx, datasetID); ok {
		e.writeThrough(ctx, datasetID, res)
		return res, nil
	}
	if projectID != "" && projectID != datasetID {
		if res, ok := e.fetchFolder(ctx, projectID); ok {
			res.RecoveredDatasetID = projectID
			e.writeThrough(ctx, datasetID, res)
			return res, nil
		}
	}
	if res, ok := e.recoverySearch(ctx, datasetID, nameHint); ok {
		e.writeThrough(ctx, datasetID, res)
		return res, nil
	}

	err = ErrDatasetNotFound{DatasetID: datasetID}
	return Resolution{}, err
}

// fetchFolder downloads the first visible file in a user folder.
func (e *Engine) fetchFolder(ctx context.Context, folderID string) (Resolution, bool) {
	entries, err := e.remote.List(ctx, dataset.FolderPrefix(e.userID, folderID))
	if err != nil {
		e.degradeRemote("list dataset folder", err)
		return Resolution{}, false
	}
	for _, ent := range entries {
		name := path.Base(ent.Key)
		if strings.HasPrefix(name, ".") {
			continue
		}
		data, ok := e.download(ctx, ent.Key)
		if !ok {
			return Resolution{}, false
		}
		return Resolution{Data: data, Name: name}, true
	}
	return Resolution{}, false
}

// recoverySearch scans every folder under the user's prefix for a filename
// matching the hint, trying exact matches before substring matches so the
// most specific candidate wins. Folders and files are visited in key order,
// making recovery deterministic.
func (e *Engine) recoverySearch(ctx context.Context, datasetID, nameHint string) (Resolution, bool) {
	entries, err := e.remote.List(ctx, e.userID+"/")
	if err != nil {
		e.degradeRemote("list user folders", err)
		return Resolution{}, false
	}

	type candidate struct {
		folderID string
		key      string
		name     string
	}
	var candidates []candidate
	for _, ent := range entries {
		rest := strings.TrimPrefix(ent.Key, e.userID+"/")
		folderID, name, ok := strings.Cut(rest, "/")
		if !ok || name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "/") {
			continue
		}
		candidates = append(candidates, candidate{folderID: folderID, key: ent.Key, name: name})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].key < candidates[j].key })

	sanitized := dataset.SanitizeFilename(nameHint)
	predicates := []func(name string) bool{
		func(name string) bool { return nameHint != "" && name == nameHint },
		func(name string) bool { return nameHint != "" && name == sanitized },
		func(name string) bool { return nameHint != "" && strings.Contains(name, nameHint) },
		func(name string) bool { return strings.Contains(name, datasetID) },
	}
	for _, match := range predicates {
		for _, c := range candidates {
			if !match(c.name) {
				continue
			}
			data, ok := e.download(ctx, c.key)
			if !ok {
				return Resolution{}, false
			}
			e.log.Infow("recovered dataset from unexpected folder",
				"dataset", datasetID, "folder", c.folderID, "file", c.name)
			return Resolution{Data: data, Name: c.name, RecoveredDatasetID: c.folderID}, true
		}
	}
	return Resolution{}, false
}

func (e *Engine) download(ctx context.Context, key string) ([]byte, bool) {
	_, rc, err := e.remote.Get(ctx, key)
	if err != nil {
		e.degradeRemote("download dataset", err)
		return nil, false
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		e.degradeRemote("read dataset body", err)
		return nil, false
	}
	e.remoteHealthy.Store(true)
	return data, true
}

// writeThrough caches a remotely resolved payload under the original dataset
// id so future opens are offline-capable. Failure here only loses the cache
// benefit, so it is logged rather than surfaced.
func (e *Engine) writeThrough(ctx context.Context, datasetID string, res Resolution) {
	if err := e.local.PutDataset(ctx, datasetID, res.Data, res.Name, true); err != nil {
		e.log.Warnw("failed to cache resolved dataset", "dataset", datasetID, "error", err)
	}
}

// OpenProject loads a project, resolves its dataset and replays the notebook
// inside a fresh sandbox: init, load the payload, then run every non-blank
// code cell in order. When resolution relocated the payload, the project's dataset pointer
// is healed and saved before returning. Cell outputs are refreshed in the
// returned project; a cell whose code fails keeps its error and replay stops,
// matching what a user would see stepping through by hand.
func (e *Engine) OpenProject(ctx context.Context, projectID string, sb sandbox.Engine) (dataset.Project, Resolution, error) {
	p, err := e.GetProject(ctx, projectID)
	if err != nil {
		return dataset.Project{}, Resolution{}, err
	}
	res, err := e.Resolve(ctx, p.DatasetID, p.ID, p.Name)
	if err != nil {
		return dataset.Project{}, Resolution{}, err
	}
	if res.RecoveredDatasetID != "" && res.RecoveredDatasetID != p.DatasetID {
		p.DatasetID = res.RecoveredDatasetID
		if serr := e.SaveProject(ctx, p); serr != nil {
			return dataset.Project{}, Resolution{}, serr
		}
	}

	if sb != nil {
		if err := sb.Init(ctx); err != nil {
			return dataset.Project{}, Resolution{}, fmt.Errorf("init sandbox: %w", err)
		}
		if err := sb.LoadFile(ctx, res.Data, res.Name); err != nil {
			return dataset.Project{}, Resolution{}, fmt.Errorf("load dataset into sandbox: %w", err)
		}
		for i := range p.Cells {
			if p.Cells[i].Type != dataset.CellCode || strings.TrimSpace(p.Cells[i].Content) == "" {
				continue
			}
			out, rerr := sb.RunCode(ctx, p.Cells[i].Content)
			if rerr != nil {
				return dataset.Project{}, Resolution{}, fmt.Errorf("replay cell %s: %w", p.Cells[i].ID, rerr)
			}
			p.Cells[i].Output = out.Stdout
			p.Cells[i].Error = out.Err
			if out.Err != "" {
				break
			}
		}
	}
	return p, res, nil
}
