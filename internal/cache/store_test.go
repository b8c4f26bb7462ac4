package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"datamentor/internal/dataset"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDatasetPutGetReplaceDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetDataset(ctx, "ds_missing"); err != nil || ok {
		t.Fatalf("miss should be (false, nil): ok=%v err=%v", ok, err)
	}

	payload := []byte("a,b\n1,2\n")
	if err := s.PutDataset(ctx, "ds_1", payload, "sales.csv", false); err != nil {
		t.Fatalf("put: %v", err)
	}
	c, ok, err := s.GetDataset(ctx, "ds_1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(c.Payload, payload) || c.Name != "sales.csv" || c.SizeBytes != int64(len(payload)) || c.Mirrored {
		t.Fatalf("unexpected cached value %+v", c)
	}

	// replacement overwrites rather than versions
	if err := s.PutDataset(ctx, "ds_1", []byte("cleaned"), "sales_clean.csv", true); err != nil {
		t.Fatalf("replace: %v", err)
	}
	c, ok, err = s.GetDataset(ctx, "ds_1")
	if err != nil || !ok {
		t.Fatalf("get after replace: ok=%v err=%v", ok, err)
	}
	if string(c.Payload) != "cleaned" || c.Name != "sales_clean.csv" || !c.Mirrored {
		t.Fatalf("replacement not applied: %+v", c)
	}

	if err := s.DeleteDataset(ctx, "ds_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetDataset(ctx, "ds_1"); ok {
		t.Fatalf("dataset should be gone")
	}
	// deleting a missing id is a no-op
	if err := s.DeleteDataset(ctx, "ds_1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMarkMirrored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.PutDataset(ctx, "ds_1", []byte("x"), "x.csv", false); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.MarkMirrored(ctx, "ds_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	c, _, err := s.GetDataset(ctx, "ds_1")
	if err != nil || !c.Mirrored {
		t.Fatalf("expected mirrored, got %+v err=%v", c, err)
	}
}

func TestProjectIndexRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := dataset.Project{ID: "proj_a", Name: "a.csv", DatasetID: "ds_a", CreatedAt: now.Add(-time.Hour)}
	newer := dataset.Project{
		ID: "proj_b", Name: "b.csv", DatasetID: "ds_b", CreatedAt: now,
		Cells: []dataset.NotebookCell{{ID: "cell_1", Type: dataset.CellCode, Content: "df.head()"}},
	}
	for _, p := range []dataset.Project{older, newer} {
		if err := s.SaveProject(ctx, p); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}

	got, ok, err := s.GetProject(ctx, "proj_b")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Cells) != 1 || got.Cells[0].Content != "df.head()" {
		t.Fatalf("cells not persisted: %+v", got)
	}

	list, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "proj_b" || list[1].ID != "proj_a" {
		t.Fatalf("expected newest-first order, got %+v", list)
	}

	// overwrite keeps a single record per id
	newer.Cells = append(newer.Cells, dataset.NotebookCell{ID: "cell_2", Type: dataset.CellMarkdown, Content: "# notes"})
	if err := s.SaveProject(ctx, newer); err != nil {
		t.Fatalf("resave: %v", err)
	}
	list, _ = s.ListProjects(ctx)
	if len(list) != 2 || len(list[0].Cells) != 2 {
		t.Fatalf("overwrite not applied: %+v", list)
	}

	if err := s.DeleteProject(ctx, "proj_b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetProject(ctx, "proj_b"); ok {
		t.Fatalf("project should be gone")
	}
}

func TestOpenOnDiskPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "datamentor.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.PutDataset(ctx, "ds_1", []byte("persisted"), "p.csv", false); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()
	c, ok, err := s2.GetDataset(ctx, "ds_1")
	if err != nil || !ok || string(c.Payload) != "persisted" {
		t.Fatalf("payload did not survive reopen: ok=%v err=%v %+v", ok, err, c)
	}
}
