package sync

import (
	"context"
	"testing"
	"time"

	"datamentor/internal/dataset"
)

func cellsOf(n int) []dataset.NotebookCell {
	out := make([]dataset.NotebookCell, n)
	for i := range out {
		out[i] = dataset.NotebookCell{ID: dataset.NewCellID(), Type: dataset.CellCode, Content: "pass"}
	}
	return out
}

func TestListProjectsMergePrefersMoreCells(t *testing.T) {
	eng, local, _, index := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// remote ahead of local
	if err := local.SaveProject(ctx, dataset.Project{ID: "p1", Name: "stale", Cells: cellsOf(3), CreatedAt: now}); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if err := index.Upsert(ctx, testUser, dataset.Project{ID: "p1", Name: "fresh", Cells: cellsOf(5), CreatedAt: now}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}
	// local ahead of remote
	if err := local.SaveProject(ctx, dataset.Project{ID: "p2", Name: "fresh", Cells: cellsOf(5), CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if err := index.Upsert(ctx, testUser, dataset.Project{ID: "p2", Name: "stale", Cells: cellsOf(3), CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	ps, err := eng.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 merged projects, got %d", len(ps))
	}
	for _, p := range ps {
		if p.Name != "fresh" || len(p.Cells) != 5 {
			t.Fatalf("merge kept the copy with fewer cells: %+v", p)
		}
	}
	if ps[0].ID != "p1" || ps[1].ID != "p2" {
		t.Fatalf("expected newest-first ordering, got %s then %s", ps[0].ID, ps[1].ID)
	}
}

func TestListProjectsTiePrefersRemote(t *testing.T) {
	eng, local, _, index := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := local.SaveProject(ctx, dataset.Project{ID: "p1", Name: "local copy", Cells: cellsOf(2), CreatedAt: now}); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if err := index.Upsert(ctx, testUser, dataset.Project{ID: "p1", Name: "remote copy", Cells: cellsOf(2), CreatedAt: now}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	ps, err := eng.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 1 || ps[0].Name != "remote copy" {
		t.Fatalf("tie must prefer the remote copy, got %+v", ps)
	}
}

func TestListProjectsUnionsBothSides(t *testing.T) {
	eng, local, _, index := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := local.SaveProject(ctx, dataset.Project{ID: "local-only", CreatedAt: now}); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if err := index.Upsert(ctx, testUser, dataset.Project{ID: "remote-only", CreatedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	ps, err := eng.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 2 || ps[0].ID != "remote-only" || ps[1].ID != "local-only" {
		t.Fatalf("unexpected union %+v", ps)
	}
}

func TestListProjectsIndexFailureDegradesToLocal(t *testing.T) {
	eng, local, _, index := newTestEngine(t)
	ctx := context.Background()

	if err := local.SaveProject(ctx, dataset.Project{ID: "p1", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	index.SetFailing(true)

	ps, err := eng.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list must succeed on index failure: %v", err)
	}
	if len(ps) != 1 || ps[0].ID != "p1" {
		t.Fatalf("expected local list, got %+v", ps)
	}
	if st := eng.Status(); st.IndexHealthy {
		t.Fatalf("expected degraded index status, got %+v", st)
	}
}
