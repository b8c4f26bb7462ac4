package sync

import (
	"context"
	"time"

	"datamentor/internal/dataset"
)

// ListProjects returns the union of the local index and the remote metadata
// table, newest first. When both sides hold the same project id, the copy
// with more cells wins, since cell count only ever grows for a record the
// other side has not yet seen. On an exact tie the remote copy is kept, as
// the remote table may carry edits from another device with equal progress.
// A remote failure degrades to the local list alone.
func (e *Engine) ListProjects(ctx context.Context) (ps []dataset.Project, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "list_projects", start, err) }()

	local, lerr := e.local.ListProjects(ctx)
	if lerr != nil {
		err = ErrLocalStore{Op: "list projects", Err: lerr}
		return nil, err
	}

	byID := make(map[string]dataset.Project, len(local))
	for _, p := range local {
		byID[p.ID] = p
	}

	if e.index != nil {
		remote, rerr := e.index.List(ctx, e.userID)
		if rerr != nil {
			e.degradeIndex("list projects", rerr)
		} else {
			e.indexHealthy.Store(true)
			for _, rp := range remote {
				lp, ok := byID[rp.ID]
				if !ok || len(rp.Cells) >= len(lp.Cells) {
					byID[rp.ID] = rp
				}
			}
		}
	}

	merged := make([]dataset.Project, 0, len(byID))
	for _, p := range byID {
		merged = append(merged, p)
	}
	sortProjectsNewestFirst(merged)
	return merged, nil
}
