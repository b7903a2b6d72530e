package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskrank/internal/blockid"
	"taskrank/internal/blocksync"
	"taskrank/internal/host"
	"taskrank/internal/task"
	"taskrank/internal/taskindex"
)

// Indexed 基于外部任务索引服务的收集策略
// Indexed collects tasks through an external task-indexing service and
// delegates anchor assignment to the synchronizer, one task at a time.
type Indexed struct {
	Source taskindex.Source
	Docs   host.Documents
	Index  host.AnchorIndex
	Sync   blocksync.Options
	Logger *slog.Logger
}

func (c *Indexed) Collect(ctx context.Context, req Request) ([]task.Item, error) {
	if c.Source == nil {
		return nil, taskindex.ErrIncompatibleService
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	records, err := c.Source.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed tasks: %w", err)
	}

	opts := c.Sync
	opts.ActivePath = req.ActivePath
	opts.Logger = logger
	syncer := blocksync.New(c.Docs, c.Index, opts)

	var (
		items   []task.Item
		seen    = map[string]string{}
		skipped int
	)
	for _, rec := range records {
		path := rec.Path()
		if path == "" || !InFolders(path, req.Folders) || blocksync.SamePath(path, req.ActivePath) {
			continue
		}
		if taskindex.IsCompleted(rec) {
			skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := syncer.Ensure(ctx, blocksync.Ref{ID: rec.Anchor(), Path: path, Line: rec.Line(), Match: describes(rec.Description())})
		if err != nil {
			return nil, fmt.Errorf("ensure anchor for %s: %w", rec.Handle(), err)
		}
		if owner, dup := seen[res.ID]; dup {
			logger.Warn("duplicate anchor dropped", "id", res.ID, "path", path, "first", owner)
			continue
		}
		seen[res.ID] = path

		text := DisplayText(rec.Description())
		created := rec.Created()
		if created == "" {
			created = InlineCreated(rec.Description())
		}
		items = append(items, task.Item{
			ID:        blockid.Normalize(res.ID),
			Location:  task.Location{Path: path, Line: rec.Line(), Handle: rec.Handle()},
			Text:      text,
			Context:   rec.Heading(),
			Created:   created,
			Status:    task.StatusOpen,
			Confirmed: res.Confirmed,
		})
	}
	logger.Debug("indexed collection done", "records", len(records), "open", len(items), "completed", skipped)
	return items, nil
}

// describes matches a document line whose display text still carries the
// indexed description. Task plugins strip trailing metadata from the
// description, so containment is enough.
func describes(description string) func(string) bool {
	want := DisplayText(description)
	if want == "" {
		return nil
	}
	return func(line string) bool {
		return strings.Contains(DisplayText(line), want)
	}
}
