package host

import (
	"context"
	"errors"
)

// ErrNotFound 文档不存在
// ErrNotFound reports a document that does not exist
var ErrNotFound = errors.New("document not found")

// Documents 宿主文档存储；路径为 vault 相对的 slash 路径
// Documents is the host document store; paths are vault-relative slash paths
type Documents interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, text string) error
	// List 递归列出目录下的 markdown 文档；空目录名表示整个 vault
	// List recursively lists markdown documents under folder; "" means the whole vault
	List(ctx context.Context, folder string) ([]string, error)
}

// Position 光标位置（零基行、列）
// Position is a zero-based line/column cursor position
type Position struct {
	Line int
	Col  int
}

// Editor 当前打开的编辑视图
// Editor is the currently open editing view
type Editor interface {
	// ActivePath 返回绑定的文档；未绑定时为空
	// ActivePath returns the bound document, or "" when none
	ActivePath() string
	Cursor() Position
	SetCursor(pos Position)
	// Insert 在 pos 处插入文本并返回插入结束位置
	// Insert splices text at pos and returns the position right after it
	Insert(ctx context.Context, pos Position, text string) (Position, error)
}

// Workspace 宿主对“当前活动文档”的认知
// Workspace exposes the host's notion of the currently active document
type Workspace interface {
	ActiveDocument() string
}

// AnchorIndex 宿主后台索引（最终一致）
// AnchorIndex is the host's eventually consistent background index
type AnchorIndex interface {
	// Anchors 返回该文档当前可解析的锚点
	// Anchors returns the anchors currently resolvable for path
	Anchors(ctx context.Context, path string) (map[string]struct{}, error)
}

// Prompter 向用户索取任务数量；取消时返回 ErrCancelled
// Prompter asks the user for a task count; cancellation returns ErrCancelled
type Prompter interface {
	PromptCount(ctx context.Context, defaultCount int) (int, error)
}

// ErrCancelled 用户取消
// ErrCancelled reports a user cancellation
var ErrCancelled = errors.New("cancelled by user")

// Notifier 面向用户的短暂提示
// Notifier shows transient user-visible notices
type Notifier interface {
	Info(msg string)
	Error(msg string)
	Success(msg string)
}
