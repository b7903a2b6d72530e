package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskrank/internal/host"
)

func writeFile(t *testing.T, root, rel, text string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveBlocksParentEscape(t *testing.T) {
	v, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := v.Resolve("../outside.md"); !errors.Is(err, ErrPathOutsideVault) {
		t.Fatalf("Resolve err=%v, want ErrPathOutsideVault", err)
	}
	got, err := v.Resolve("/Work/a.md")
	if err != nil {
		t.Fatalf("Resolve leading slash: %v", err)
	}
	if got != filepath.Join(v.Root(), "Work", "a.md") {
		t.Fatalf("Resolve=%q", got)
	}
}

func TestResolveBlocksSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	v, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := v.Resolve("escape/file.md"); !errors.Is(err, ErrPathOutsideVault) {
		t.Fatalf("Resolve err=%v, want ErrPathOutsideVault", err)
	}
}

func TestReadWriteList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Work/a.md", "- [ ] one\n")
	writeFile(t, root, "Work/sub/b.md", "- [ ] two\n")
	writeFile(t, root, "Work/notes.txt", "ignored")
	writeFile(t, root, "Work/.hidden/c.md", "ignored")
	writeFile(t, root, "Home/d.md", "- [ ] three\n")

	v, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	var notified []string
	v.OnWrite(func(path string) { notified = append(notified, path) })

	got, err := v.List(ctx, "Work")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.Join(got, ",") != "Work/a.md,Work/sub/b.md" {
		t.Fatalf("List=%v", got)
	}
	all, err := v.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("List all=%v err=%v", all, err)
	}
	if _, err := v.List(ctx, "Missing"); !errors.Is(err, host.ErrNotFound) {
		t.Fatalf("List missing err=%v", err)
	}

	if err := v.Write(ctx, "/Work/a.md", "- [ ] one  ^abc123\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	text, err := v.Read(ctx, "Work/a.md")
	if err != nil || text != "- [ ] one  ^abc123\n" {
		t.Fatalf("Read=%q err=%v", text, err)
	}
	if len(notified) != 1 || notified[0] != "Work/a.md" {
		t.Fatalf("notified=%v", notified)
	}
	if _, err := v.Read(ctx, "Work/none.md"); !errors.Is(err, host.ErrNotFound) {
		t.Fatalf("Read missing err=%v", err)
	}
	if err := v.Write(ctx, "./Work//sub/../a.md", "- [ ] one  ^abc123\n"); err != nil {
		t.Fatalf("Write dotted path: %v", err)
	}
	if len(notified) != 2 || notified[1] != "Work/a.md" {
		t.Fatalf("dotted write notified=%v", notified)
	}

	entries, err := os.ReadDir(filepath.Join(root, "Work"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRel(t *testing.T) {
	root := t.TempDir()
	v, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := v.Rel(filepath.Join(v.Root(), "Daily", "today.md"))
	if err != nil || got != "Daily/today.md" {
		t.Fatalf("Rel=%q err=%v", got, err)
	}
	if _, err := v.Rel(filepath.Dir(v.Root())); !errors.Is(err, ErrPathOutsideVault) {
		t.Fatalf("Rel outside err=%v", err)
	}
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"Work/today.md":       "Work/today.md",
		"./Work/today.md":     "Work/today.md",
		"/Work//today.md":     "Work/today.md",
		" Work/x/../today.md": "Work/today.md",
		".":                   "",
		"":                    "",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestTarget(t *testing.T) {
	v, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"./Work/today.md", "Work/today.md"},
		{"Work/./today.md", "Work/today.md"},
		{"/Work/today.md", "Work/today.md"},
		{filepath.Join(v.Root(), "Work", "today.md"), "Work/today.md"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := v.Target(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("Target(%q)=%q err=%v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := v.Target("../outside.md"); !errors.Is(err, ErrPathOutsideVault) {
		t.Fatalf("Target escape err=%v", err)
	}
}
