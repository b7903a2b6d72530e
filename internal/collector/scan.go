package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskrank/internal/blockid"
	"taskrank/internal/blocksync"
	"taskrank/internal/host"
	"taskrank/internal/task"
)

// Scan 直接扫描文档文本的收集策略
// Scan reads raw documents, anchors every open checklist line in memory and
// writes each mutated document back once.
type Scan struct {
	Docs   host.Documents
	Index  host.AnchorIndex
	Sync   blocksync.Options
	Logger *slog.Logger
}

func (c *Scan) Collect(ctx context.Context, req Request) ([]task.Item, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := c.Sync
	opts.ActivePath = req.ActivePath
	opts.Logger = logger
	syncer := blocksync.New(c.Docs, c.Index, opts)

	paths, err := c.listPaths(ctx, req.Folders)
	if err != nil {
		return nil, err
	}

	var items []task.Item
	// ids claimed by earlier documents in this run
	claimed := map[string]struct{}{}
	for _, path := range paths {
		if blocksync.SamePath(path, req.ActivePath) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := c.scanDocument(ctx, syncer, path, claimed, logger)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	logger.Debug("scan collection done", "documents", len(paths), "open", len(items))
	return items, nil
}

func (c *Scan) listPaths(ctx context.Context, folders []string) ([]string, error) {
	roots := normalizeFolders(folders)
	if len(roots) == 0 {
		roots = []string{""}
	}
	var out []string
	seen := map[string]bool{}
	for _, root := range roots {
		paths, err := c.Docs.List(ctx, root)
		if err != nil {
			if errors.Is(err, host.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("list %q: %w", root, err)
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (c *Scan) scanDocument(ctx context.Context, syncer *blocksync.Synchronizer, path string, claimed map[string]struct{}, logger *slog.Logger) ([]task.Item, error) {
	text, err := c.Docs.Read(ctx, path)
	if err != nil {
		if errors.Is(err, host.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(text, "\n")
	taken := blockid.Existing(text)
	for id := range claimed {
		taken[id] = struct{}{}
	}
	// tokens first seen in this document, to detect repeats inside it
	local := map[string]struct{}{}

	var (
		items     []task.Item
		generated []string
		heading   string
	)
	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if m := headingLine.FindStringSubmatch(line); m != nil {
			heading = strings.TrimSpace(m[1])
			continue
		}
		if !openTaskLine.MatchString(line) {
			continue
		}
		display := DisplayText(line)
		if display == "" {
			continue
		}

		id := blockid.TrailingToken(line)
		_, inOther := claimed[id]
		_, inThis := local[id]
		fresh := id == "" || inOther || inThis
		if fresh {
			if id != "" {
				logger.Warn("duplicate anchor re-anchored", "id", id, "path", path, "line", i)
			}
			id = syncer.Generate(taken)
			lines[i] = blockid.Append(blockid.Strip(line), id)
			if strings.HasSuffix(raw, "\r") {
				lines[i] += "\r"
			}
			generated = append(generated, id)
		}
		local[id] = struct{}{}

		items = append(items, task.Item{
			ID:        id,
			Location:  task.Location{Path: path, Line: i},
			Text:      display,
			Context:   heading,
			Created:   InlineCreated(line),
			Status:    task.StatusOpen,
			Confirmed: !fresh,
		})
	}

	if len(generated) > 0 {
		if err := c.Docs.Write(ctx, path, strings.Join(lines, "\n")); err != nil {
			// nothing generated here was persisted; report only pre-anchored tasks
			logger.Warn("write anchors failed", "path", path, "err", err)
			items = keepConfirmed(items)
		} else {
			confirmed, err := syncer.Wait(ctx, path, generated)
			if err != nil {
				return nil, err
			}
			if confirmed {
				for i := range items {
					items[i].Confirmed = true
				}
			}
		}
	}
	for id := range local {
		claimed[id] = struct{}{}
	}
	return items, nil
}

func keepConfirmed(items []task.Item) []task.Item {
	out := items[:0]
	for _, it := range items {
		if it.Confirmed {
			out = append(out, it)
		}
	}
	return out
}
