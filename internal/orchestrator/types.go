package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"taskrank/internal/host"
	"taskrank/internal/task"
)

// ErrNoActiveDocument 没有可插入的目标文档
// ErrNoActiveDocument reports that neither the editor nor the host has an active document
var ErrNoActiveDocument = errors.New("no active document")

// Ranker 排序服务
// Ranker orders task ids against a priorities text
type Ranker interface {
	Rank(ctx context.Context, priorities string, items []task.Item, maxCount int) ([]string, error)
}

// OutcomeKind 一次运行的正常结局
// OutcomeKind names how a run ended without error
type OutcomeKind string

const (
	Inserted        OutcomeKind = "inserted"
	NoTasks         OutcomeKind = "no_tasks"
	NoPriorities    OutcomeKind = "no_priorities"
	NothingToInsert OutcomeKind = "nothing_to_insert"
	Cancelled       OutcomeKind = "cancelled"
)

// Outcome 运行结果
// Outcome describes a finished run
type Outcome struct {
	Kind   OutcomeKind
	Target string
	// Count 用户请求的任务数
	// Count is the task count the user asked for
	Count     int
	Collected int
	Embeds    []string
	// Cursor 插入结束后的光标位置
	// Cursor is the cursor position after the insertion
	Cursor host.Position
	// Restored 收集阶段后活动文档被还原
	// Restored is true when the active document had to be restored after collection
	Restored bool
}

// Options 运行参数
// Options configures a run
type Options struct {
	Folders      []string
	Heading      string
	DefaultCount int
	Logger       *slog.Logger
}
