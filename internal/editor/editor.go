// Package editor is a file-backed editing view: one bound document and a
// cursor, with insertions persisted through the document store.
package editor

import (
	"context"
	"fmt"
	"sync"

	"taskrank/internal/host"
)

// Editor 绑定单个文档与光标
// Editor binds one document and a cursor
type Editor struct {
	docs host.Documents
	path string

	mu     sync.Mutex
	cursor host.Position
}

var _ host.Editor = (*Editor)(nil)

// New 绑定 path；光标为零基行列
// New binds path with a zero-based cursor
func New(docs host.Documents, path string, cursor host.Position) *Editor {
	return &Editor{docs: docs, path: path, cursor: cursor}
}

// AtEnd 将光标定位到文档末尾
// AtEnd places the cursor at the end of the bound document
func AtEnd(ctx context.Context, docs host.Documents, path string) (*Editor, error) {
	text, err := docs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	_, end := host.Splice(text, host.Position{Line: len(text) + 1, Col: len(text) + 1}, "")
	return New(docs, path, end), nil
}

func (e *Editor) ActivePath() string {
	return e.path
}

func (e *Editor) Cursor() host.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Editor) SetCursor(pos host.Position) {
	e.mu.Lock()
	e.cursor = pos
	e.mu.Unlock()
}

// Insert 在 pos 处插入文本（越界时夹取到文档边界）并写回
// Insert splices text at pos, clamped to the document, and writes it back
func (e *Editor) Insert(ctx context.Context, pos host.Position, text string) (host.Position, error) {
	if e.path == "" {
		return host.Position{}, fmt.Errorf("editor has no bound document")
	}
	current, err := e.docs.Read(ctx, e.path)
	if err != nil {
		return host.Position{}, err
	}
	updated, end := host.Splice(current, pos, text)
	if err := e.docs.Write(ctx, e.path, updated); err != nil {
		return host.Position{}, fmt.Errorf("write %s: %w", e.path, err)
	}
	return end, nil
}
