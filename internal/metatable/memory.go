package metatable

import (
	"context"
	"sort"
	"sync"

	"datamentor/internal/dataset"
)

var _ Index = (*MemoryIndex)(nil)

// MemoryIndex implements Index backed by process memory. Intended for tests
// and index-less development runs.
type MemoryIndex struct {
	mu      sync.RWMutex
	byUser  map[string]map[string]dataset.Project
	failing bool
}

// NewMemory returns an empty in-memory index.
func NewMemory() *MemoryIndex {
	return &MemoryIndex{byUser: make(map[string]map[string]dataset.Project)}
}

// SetFailing toggles simulated remote-unreachable behavior for tests.
func (x *MemoryIndex) SetFailing(v bool) {
	x.mu.Lock()
	x.failing = v
	x.mu.Unlock()
}

func (x *MemoryIndex) Upsert(_ context.Context, userID string, p dataset.Project) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.failing {
		return errUnreachable
	}
	m, ok := x.byUser[userID]
	if !ok {
		m = make(map[string]dataset.Project)
		x.byUser[userID] = m
	}
	m[p.ID] = cloneProject(p)
	return nil
}

func (x *MemoryIndex) List(_ context.Context, userID string) ([]dataset.Project, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.failing {
		return nil, errUnreachable
	}
	m := x.byUser[userID]
	out := make([]dataset.Project, 0, len(m))
	for _, p := range m {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (x *MemoryIndex) Delete(_ context.Context, userID, projectID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.failing {
		return errUnreachable
	}
	delete(x.byUser[userID], projectID)
	return nil
}

func cloneProject(p dataset.Project) dataset.Project {
	out := p
	if p.Cells != nil {
		out.Cells = make([]dataset.NotebookCell, len(p.Cells))
		copy(out.Cells, p.Cells)
	}
	return out
}
