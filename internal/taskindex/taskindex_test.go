package taskindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsCompleted(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{name: "done date wins over open status", rec: Record{"status": " ", "doneDate": "2024-01-01"}, want: true},
		{name: "status text done", rec: Record{"status": "x done"}, want: true},
		{name: "boolean flag", rec: Record{"completed": true, "status": "todo"}, want: true},
		{name: "checked flag", rec: Record{"checked": true}, want: true},
		{name: "symbol x", rec: Record{"status": "x"}, want: true},
		{name: "checkmark", rec: Record{"statusSymbol": "✅"}, want: true},
		{name: "cancelled", rec: Record{"status": "Cancelled"}, want: true},
		{name: "nested status type", rec: Record{"status": map[string]any{"type": "DONE", "symbol": "x"}}, want: true},
		{name: "time value date", rec: Record{"completedDate": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, want: true},
		{name: "open", rec: Record{"status": " ", "completed": false, "doneDate": ""}, want: false},
		{name: "incomplete is open", rec: Record{"status": "incomplete"}, want: false},
		{name: "todo nested", rec: Record{"status": map[string]any{"type": "TODO", "symbol": " "}}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCompleted(tc.rec); got != tc.want {
				t.Fatalf("IsCompleted(%v)=%v, want %v", tc.rec, got, tc.want)
			}
		})
	}
}

type pointDate struct{ s string }

func (p pointDate) Format(string) string { return p.s }

func TestCreatedShapes(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{name: "string", rec: Record{"created": "2024-03-04"}, want: "2024-03-04"},
		{name: "string with time", rec: Record{"createdDate": "2024-03-04T10:00:00Z"}, want: "2024-03-04"},
		{name: "time", rec: Record{"createdDate": time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC)}, want: "2023-12-31"},
		{name: "formatter", rec: Record{"createdDate": pointDate{s: "2022-05-06"}}, want: "2022-05-06"},
		{name: "ymd floats", rec: Record{"created": map[string]any{"year": 2024.0, "month": 2.0, "day": 9.0}}, want: "2024-02-09"},
		{name: "ymd invalid", rec: Record{"created": map[string]any{"year": 2024, "month": 13, "day": 1}}, want: ""},
		{name: "nil pointer", rec: Record{"createdDate": (*time.Time)(nil)}, want: ""},
		{name: "absent", rec: Record{}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Created(); got != tc.want {
				t.Fatalf("Created=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{
		"taskLocation":    map[string]any{"path": "/Work/a.md", "lineNumber": 4.0},
		"description":     "Write report",
		"blockLink":       " ^abc123",
		"precedingHeader": "Projects",
	}
	if rec.Path() != "Work/a.md" {
		t.Fatalf("Path=%q", rec.Path())
	}
	if rec.Line() != 4 {
		t.Fatalf("Line=%d", rec.Line())
	}
	if rec.Anchor() != "^abc123" {
		t.Fatalf("Anchor=%q", rec.Anchor())
	}
	if rec.Heading() != "Projects" || rec.Description() != "Write report" {
		t.Fatalf("unexpected heading/description: %q %q", rec.Heading(), rec.Description())
	}
	if rec.Handle() != "Work/a.md:4" {
		t.Fatalf("Handle=%q", rec.Handle())
	}
	if (Record{}).Line() != -1 {
		t.Fatal("missing line should be -1")
	}
}

type getterService struct{}

func (getterService) GetAllTasks(context.Context) ([]Record, error) {
	return []Record{{"path": "a.md"}}, nil
}

type listerService struct{}

func (listerService) AllTasks() []Record { return []Record{{"path": "b.md"}} }

type memCache struct{}

func (memCache) GetTasks() []Record { return []Record{{"path": "c.md"}} }

type cacheService struct{}

func (cacheService) Cache() TaskCache { return memCache{} }

type legacyService struct{}

func (legacyService) Tasks() ([]map[string]any, error) {
	return []map[string]any{{"path": "d.md"}}, nil
}

type bothService struct {
	getterService
	listerService
}

func TestAdaptProbesShapes(t *testing.T) {
	tests := []struct {
		name  string
		svc   any
		shape Shape
		path  string
	}{
		{name: "getter", svc: getterService{}, shape: ShapeGetAllTasks, path: "a.md"},
		{name: "lister", svc: listerService{}, shape: ShapeAllTasks, path: "b.md"},
		{name: "cache", svc: cacheService{}, shape: ShapeCache, path: "c.md"},
		{name: "legacy", svc: legacyService{}, shape: ShapeLegacy, path: "d.md"},
		{name: "priority order", svc: bothService{}, shape: ShapeGetAllTasks, path: "a.md"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src, shape, err := Adapt(tc.svc)
			if err != nil {
				t.Fatalf("Adapt: %v", err)
			}
			if shape != tc.shape {
				t.Fatalf("shape=%s, want %s", shape, tc.shape)
			}
			recs, err := src.GetAllTasks(context.Background())
			if err != nil {
				t.Fatalf("GetAllTasks: %v", err)
			}
			if len(recs) != 1 || recs[0].Path() != tc.path {
				t.Fatalf("unexpected records: %v", recs)
			}
		})
	}
}

func TestAdaptRejectsUnknownShapes(t *testing.T) {
	for _, svc := range []any{nil, struct{}{}, "service"} {
		if _, _, err := Adapt(svc); !errors.Is(err, ErrIncompatibleService) {
			t.Fatalf("Adapt(%T) err=%v, want ErrIncompatibleService", svc, err)
		}
	}
}

func TestExportJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(jsonPath, []byte(`{"tasks":[{"path":"Work/a.md","line":2,"description":"Call Bob","status":" "}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	arrayPath := filepath.Join(dir, "array.json")
	if err := os.WriteFile(arrayPath, []byte(`[{"path":"Work/b.md"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "tasks.yaml")
	yamlDoc := "tasks:\n  - path: Work/c.md\n    line: 1\n    description: Buy milk\n    created: {year: 2024, month: 1, day: 5}\n"
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]string{jsonPath: "Work/a.md", arrayPath: "Work/b.md", yamlPath: "Work/c.md"} {
		src, shape, err := Adapt(Export{Path: path})
		if err != nil {
			t.Fatalf("Adapt export: %v", err)
		}
		if shape != ShapeLegacy {
			t.Fatalf("shape=%s, want %s", shape, ShapeLegacy)
		}
		recs, err := src.GetAllTasks(context.Background())
		if err != nil {
			t.Fatalf("GetAllTasks(%s): %v", path, err)
		}
		if len(recs) != 1 || recs[0].Path() != want {
			t.Fatalf("records for %s: %v", path, recs)
		}
		if path == yamlPath && recs[0].Created() != "2024-01-05" {
			t.Fatalf("yaml created=%q", recs[0].Created())
		}
	}

	if _, err := (Export{Path: filepath.Join(dir, "missing.json")}).Tasks(); err == nil {
		t.Fatal("missing export should error")
	}
}
