// Package orchestrator sequences one ranking run: collect, restore the
// active document if collection disturbed it, extract priorities, rank and
// insert embeds at the saved cursor.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskrank/internal/blockid"
	"taskrank/internal/collector"
	"taskrank/internal/host"
	"taskrank/internal/priorities"
	"taskrank/internal/task"
)

// DefaultCount 提示框的默认任务数
// DefaultCount is the count suggested by the prompt
const DefaultCount = 5

// Deps 协作者
// Deps are the collaborators of a run. Editor and Workspace may be nil, not both.
type Deps struct {
	Docs      host.Documents
	Editor    host.Editor
	Workspace host.Workspace
	Index     host.AnchorIndex
	Prompter  host.Prompter
	Collector collector.Collector
	Ranker    Ranker
}

type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, opts: opts, logger: logger}
}

// Run 执行一次完整流程；空结果以 Outcome 表示，不是错误
// Run executes one end-to-end run. Empty results are Outcomes, not errors.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	target := o.resolveTarget()
	if target == "" {
		return Outcome{}, ErrNoActiveDocument
	}
	out := Outcome{Target: target}

	// baseline before any prompt or async work
	var cursor host.Position
	if o.boundToTarget(target) {
		cursor = o.deps.Editor.Cursor()
	}
	snapshot, err := o.deps.Docs.Read(ctx, target)
	if err != nil {
		if errors.Is(err, host.ErrNotFound) {
			return out, fmt.Errorf("%w: %s", ErrNoActiveDocument, target)
		}
		return out, fmt.Errorf("snapshot %s: %w", target, err)
	}

	count, err := o.deps.Prompter.PromptCount(ctx, o.opts.DefaultCount)
	if err != nil {
		if errors.Is(err, host.ErrCancelled) || errors.Is(err, context.Canceled) {
			out.Kind = Cancelled
			return out, nil
		}
		return out, fmt.Errorf("prompt task count: %w", err)
	}
	if count < 1 {
		return out, fmt.Errorf("task count must be a positive integer, got %d", count)
	}
	out.Count = count

	items, collectErr := o.deps.Collector.Collect(ctx, collector.Request{Folders: o.opts.Folders, ActivePath: target})
	restored, err := o.restore(ctx, target, snapshot)
	if err != nil {
		o.logger.Error("restore active document failed", "path", target, "err", err)
	}
	out.Restored = restored
	if collectErr != nil {
		return out, fmt.Errorf("collect tasks: %w", collectErr)
	}
	out.Collected = len(items)
	if len(items) == 0 {
		out.Kind = NoTasks
		return out, nil
	}

	prio := priorities.Extract(snapshot, o.opts.Heading)
	if strings.TrimSpace(prio) == "" {
		out.Kind = NoPriorities
		return out, nil
	}

	ranked, err := o.deps.Ranker.Rank(ctx, prio, items, count)
	if err != nil {
		return out, err
	}

	out.Embeds = o.embeds(ctx, ranked, items)
	if len(out.Embeds) == 0 {
		out.Kind = NothingToInsert
		return out, nil
	}

	end, err := o.insert(ctx, target, cursor, strings.Join(out.Embeds, "\n")+"\n")
	if err != nil {
		return out, fmt.Errorf("insert embeds into %s: %w", target, err)
	}
	out.Kind = Inserted
	out.Cursor = end
	o.logger.Info("embeds inserted", "path", target, "count", len(out.Embeds), "line", cursor.Line)
	return out, nil
}

func (o *Orchestrator) resolveTarget() string {
	if o.deps.Editor != nil {
		if p := strings.TrimSpace(o.deps.Editor.ActivePath()); p != "" {
			return p
		}
	}
	if o.deps.Workspace != nil {
		return strings.TrimSpace(o.deps.Workspace.ActiveDocument())
	}
	return ""
}

func (o *Orchestrator) boundToTarget(target string) bool {
	return o.deps.Editor != nil && o.deps.Editor.ActivePath() == target
}

// restore puts the snapshot back when collection changed the active document.
func (o *Orchestrator) restore(ctx context.Context, path, snapshot string) (bool, error) {
	current, err := o.deps.Docs.Read(ctx, path)
	if err != nil {
		return false, fmt.Errorf("re-read %s: %w", path, err)
	}
	if current == snapshot {
		return false, nil
	}
	o.logger.Warn("active document changed during collection, restoring snapshot", "path", path, "before", len(snapshot), "after", len(current))
	if err := o.deps.Docs.Write(ctx, path, snapshot); err != nil {
		return false, fmt.Errorf("restore %s: %w", path, err)
	}
	return true, nil
}

// embeds maps ranked ids back to collected tasks, in ranking order.
// Unknown ids and anchors the index never confirmed are dropped.
func (o *Orchestrator) embeds(ctx context.Context, ranked []string, items []task.Item) []string {
	byID := make(map[string]task.Item, len(items))
	for _, it := range items {
		if id := blockid.Normalize(it.ID); id != "" {
			byID[id] = it
		}
	}

	var out []string
	used := map[string]bool{}
	for _, raw := range ranked {
		id := blockid.Normalize(raw)
		it, ok := byID[id]
		if !ok {
			o.logger.Debug("ranked id unknown, skipped", "id", raw)
			continue
		}
		if used[id] {
			continue
		}
		if !it.Confirmed && !o.indexed(ctx, it.Location.Path, id) {
			o.logger.Warn("anchor not confirmed by index, skipped", "id", id, "path", it.Location.Path)
			continue
		}
		used[id] = true
		out = append(out, blockid.Embed(it.Location.Path, id))
	}
	return out
}

// indexed re-checks one anchor at insertion time.
func (o *Orchestrator) indexed(ctx context.Context, path, id string) bool {
	if o.deps.Index == nil || path == "" {
		return false
	}
	anchors, err := o.deps.Index.Anchors(ctx, path)
	if err != nil {
		return false
	}
	_, ok := anchors[id]
	return ok
}

func (o *Orchestrator) insert(ctx context.Context, target string, at host.Position, text string) (host.Position, error) {
	if o.boundToTarget(target) {
		end, err := o.deps.Editor.Insert(ctx, at, text)
		if err != nil {
			return host.Position{}, err
		}
		o.deps.Editor.SetCursor(end)
		return end, nil
	}
	current, err := o.deps.Docs.Read(ctx, target)
	if err != nil {
		return host.Position{}, err
	}
	updated, end := host.Splice(current, at, text)
	if err := o.deps.Docs.Write(ctx, target, updated); err != nil {
		return host.Position{}, err
	}
	return end, nil
}
