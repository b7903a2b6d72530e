// Package hosttest provides in-memory host collaborators for tests.
package hosttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"taskrank/internal/blockid"
	"taskrank/internal/host"
)

// Documents is an in-memory document store that records writes.
type Documents struct {
	mu     sync.Mutex
	files  map[string]string
	writes map[string]int
	// OnRead runs after every successful read; tests use it to simulate
	// out-of-band mutation of other documents.
	OnRead func(path string)
	// OnWrite runs after every write.
	OnWrite func(path, text string)
}

func NewDocuments(files map[string]string) *Documents {
	d := &Documents{files: map[string]string{}, writes: map[string]int{}}
	for k, v := range files {
		d.files[k] = v
	}
	return d
}

func (d *Documents) Read(_ context.Context, path string) (string, error) {
	d.mu.Lock()
	text, ok := d.files[path]
	hook := d.OnRead
	d.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("read %s: %w", path, host.ErrNotFound)
	}
	if hook != nil {
		hook(path)
	}
	return text, nil
}

func (d *Documents) Write(_ context.Context, path, text string) error {
	d.mu.Lock()
	d.files[path] = text
	d.writes[path]++
	hook := d.OnWrite
	d.mu.Unlock()
	if hook != nil {
		hook(path, text)
	}
	return nil
}

func (d *Documents) List(_ context.Context, folder string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	folder = strings.Trim(folder, "/")
	var out []string
	for p := range d.files {
		if !strings.HasSuffix(p, blockid.Extension) {
			continue
		}
		if folder == "" || p == folder || strings.HasPrefix(p, folder+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Text returns the current content of path.
func (d *Documents) Text(path string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.files[path]
}

// Set replaces a document without counting a write.
func (d *Documents) Set(path, text string) {
	d.mu.Lock()
	d.files[path] = text
	d.mu.Unlock()
}

// Writes returns how many times path was written.
func (d *Documents) Writes(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[path]
}

// TotalWrites returns the number of writes across all documents.
func (d *Documents) TotalWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.writes {
		n += c
	}
	return n
}

// Index is an anchor index that reads straight from Documents, optionally
// lagging behind by a number of polls.
type Index struct {
	Docs *Documents
	// Lag is the number of Anchors calls per path that report nothing new.
	Lag int
	// Never disables indexing entirely.
	Never bool

	mu    sync.Mutex
	calls map[string]int
}

func (i *Index) Anchors(_ context.Context, path string) (map[string]struct{}, error) {
	i.mu.Lock()
	if i.calls == nil {
		i.calls = map[string]int{}
	}
	i.calls[path]++
	n := i.calls[path]
	i.mu.Unlock()
	if i.Never || n <= i.Lag {
		return map[string]struct{}{}, nil
	}
	return blockid.Existing(i.Docs.Text(path)), nil
}

// Calls returns how many times Anchors was asked about path.
func (i *Index) Calls(path string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[path]
}

// Editor is an editor bound to one document in Documents.
type Editor struct {
	Docs *Documents
	Path string
	Pos  host.Position
	// InsertFunc overrides the default splice-and-write behaviour.
	InsertFunc func(ctx context.Context, pos host.Position, text string) (host.Position, error)

	inserts int
}

func (e *Editor) ActivePath() string          { return e.Path }
func (e *Editor) Cursor() host.Position       { return e.Pos }
func (e *Editor) SetCursor(pos host.Position) { e.Pos = pos }
func (e *Editor) Inserts() int                { return e.inserts }

func (e *Editor) Insert(ctx context.Context, pos host.Position, text string) (host.Position, error) {
	e.inserts++
	if e.InsertFunc != nil {
		return e.InsertFunc(ctx, pos, text)
	}
	current, err := e.Docs.Read(ctx, e.Path)
	if err != nil {
		return host.Position{}, err
	}
	updated, end := host.Splice(current, pos, text)
	if err := e.Docs.Write(ctx, e.Path, updated); err != nil {
		return host.Position{}, err
	}
	return end, nil
}

// Workspace reports a fixed active document.
type Workspace struct{ Active string }

func (w Workspace) ActiveDocument() string { return w.Active }

// Prompter returns a fixed count or error.
type Prompter struct {
	Count int
	Err   error
	Calls int
}

func (p *Prompter) PromptCount(context.Context, int) (int, error) {
	p.Calls++
	return p.Count, p.Err
}

// Notifier records notices.
type Notifier struct {
	mu        sync.Mutex
	Infos     []string
	Errors    []string
	Successes []string
}

func (n *Notifier) Info(msg string) {
	n.mu.Lock()
	n.Infos = append(n.Infos, msg)
	n.mu.Unlock()
}

func (n *Notifier) Error(msg string) {
	n.mu.Lock()
	n.Errors = append(n.Errors, msg)
	n.mu.Unlock()
}

func (n *Notifier) Success(msg string) {
	n.mu.Lock()
	n.Successes = append(n.Successes, msg)
	n.mu.Unlock()
}
