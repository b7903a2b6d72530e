package blockindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskrank/internal/host/hosttest"
	"taskrank/internal/poll"
	"taskrank/internal/taskindex"
)

func newTestIndex(t *testing.T, docs *hosttest.Documents) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), docs, Options{Debounce: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexDocumentAndAnchors(t *testing.T) {
	docs := hosttest.NewDocuments(map[string]string{
		"Work/a.md": "# Tasks\n- [ ] Buy milk  ^milk01\n- [x] Done  ^done01\nplain paragraph ^para01\n",
	})
	idx := newTestIndex(t, docs)
	ctx := context.Background()

	if err := idx.IndexDocument(ctx, "Work/a.md"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	anchors, err := idx.Anchors(ctx, "/Work/a.md")
	if err != nil {
		t.Fatalf("Anchors: %v", err)
	}
	for _, id := range []string{"milk01", "done01", "para01"} {
		if _, ok := anchors[id]; !ok {
			t.Fatalf("anchor %s missing: %v", id, anchors)
		}
	}

	docs.Set("Work/a.md", "- [ ] Buy milk\n")
	if err := idx.IndexDocument(ctx, "Work/a.md"); err != nil {
		t.Fatalf("re-index: %v", err)
	}
	anchors, _ = idx.Anchors(ctx, "Work/a.md")
	if len(anchors) != 0 {
		t.Fatalf("stale anchors kept: %v", anchors)
	}
}

func TestNotifyIsEventuallyConsistent(t *testing.T) {
	docs := hosttest.NewDocuments(map[string]string{"Work/a.md": "- [ ] Task\n"})
	idx := newTestIndex(t, docs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idx.Start(ctx)

	_ = docs.Write(ctx, "Work/a.md", "- [ ] Task  ^new001\n")
	// dotted form lands on the same document row
	idx.Notify("./Work/a.md")

	err := poll.Until(ctx, poll.Options{Interval: 2 * time.Millisecond, Timeout: 2 * time.Second}, func(ctx context.Context) (bool, error) {
		anchors, err := idx.Anchors(ctx, "Work/a.md")
		if err != nil {
			return false, err
		}
		_, ok := anchors["new001"]
		return ok, nil
	})
	if err != nil {
		t.Fatalf("anchor never indexed: %v", err)
	}
	var rows int
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&rows); err != nil {
		t.Fatalf("count documents: %v", err)
	}
	if rows != 1 {
		t.Fatalf("documents=%d, want 1", rows)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	docs := hosttest.NewDocuments(map[string]string{"Work/a.md": "- [ ] Task  ^flush1\n"})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(dbPath, docs, Options{Debounce: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.Start(context.Background())
	idx.Notify("Work/a.md")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dbPath, docs, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	anchors, err := reopened.Anchors(context.Background(), "Work/a.md")
	if err != nil {
		t.Fatalf("Anchors: %v", err)
	}
	if _, ok := anchors["flush1"]; !ok {
		t.Fatalf("pending change lost on close: %v", anchors)
	}
}

func TestRebuildDropsDeletedDocuments(t *testing.T) {
	docs := hosttest.NewDocuments(map[string]string{
		"Work/a.md": "- [ ] One  ^one001\n",
		"Work/b.md": "- [ ] Two  ^two001\n",
	})
	idx := newTestIndex(t, docs)
	ctx := context.Background()

	stats, err := idx.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if stats.Documents != 2 || stats.Anchors != 2 || stats.Tasks != 2 {
		t.Fatalf("stats=%+v", stats)
	}

	remaining := hosttest.NewDocuments(map[string]string{"Work/a.md": "- [ ] One  ^one001\n"})
	idx.docs = remaining
	stats, err = idx.Rebuild(ctx)
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if stats.Documents != 1 || stats.Anchors != 1 {
		t.Fatalf("stats after delete=%+v", stats)
	}
}

func TestGetAllTasksServesTaskIndexShape(t *testing.T) {
	docs := hosttest.NewDocuments(map[string]string{
		"Work/a.md": "## Errands\n- [ ] Buy milk ➕ 2024-03-01  ^milk01\n- [x] Paid rent\n- [-] Dropped idea\n",
	})
	idx := newTestIndex(t, docs)
	ctx := context.Background()
	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	src, shape, err := taskindex.Adapt(idx)
	if err != nil {
		t.Fatalf("Adapt: %v", err)
	}
	if shape != taskindex.ShapeGetAllTasks {
		t.Fatalf("shape=%s", shape)
	}
	recs, err := src.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d", len(recs))
	}
	milk := recs[0]
	if milk.Path() != "Work/a.md" || milk.Line() != 1 || milk.Description() != "Buy milk" {
		t.Fatalf("milk record=%v", milk)
	}
	if milk.Anchor() != "milk01" || milk.Heading() != "Errands" || milk.Created() != "2024-03-01" {
		t.Fatalf("milk metadata=%v", milk)
	}
	if taskindex.IsCompleted(milk) || !taskindex.IsCompleted(recs[1]) || !taskindex.IsCompleted(recs[2]) {
		t.Fatal("completion mismatch")
	}
}
