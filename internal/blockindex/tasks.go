package blockindex

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"taskrank/internal/blockid"
	"taskrank/internal/collector"
	"taskrank/internal/taskindex"
)

var (
	checklistLine = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[(.)\]`)
	headingLine   = regexp.MustCompile(`^#{1,6}\s+(.+?)(?:\s+#+)?\s*$`)
)

type anchorRow struct {
	anchor string
	line   int
}

type taskRow struct {
	line        int
	status      string
	description string
	anchor      string
	heading     string
	created     string
}

type parsedDocument struct {
	anchors []anchorRow
	tasks   []taskRow
}

func parseDocument(text string) parsedDocument {
	var (
		out     parsedDocument
		heading string
	)
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		anchor := blockid.TrailingToken(line)
		if anchor != "" {
			out.anchors = append(out.anchors, anchorRow{anchor: anchor, line: n})
		}
		if m := headingLine.FindStringSubmatch(line); m != nil {
			heading = strings.TrimSpace(m[1])
			continue
		}
		m := checklistLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out.tasks = append(out.tasks, taskRow{
			line:        n,
			status:      m[1],
			description: collector.DisplayText(line),
			anchor:      anchor,
			heading:     heading,
			created:     collector.InlineCreated(line),
		})
	}
	return out
}

// GetAllTasks 以任务索引服务的形状导出所有已索引的清单行
// GetAllTasks exposes every indexed checklist line in the task-index service shape
func (i *Index) GetAllTasks(ctx context.Context) ([]taskindex.Record, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT path, line, status, description, anchor, heading, created
		FROM tasks ORDER BY path, line`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []taskindex.Record
	for rows.Next() {
		var (
			path, status, description, anchor, heading, created string
			line                                                int
		)
		if err := rows.Scan(&path, &line, &status, &description, &anchor, &heading, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec := taskindex.Record{
			"path":        path,
			"line":        line,
			"description": description,
			"status":      statusText(status),
			"completed":   status == "x" || status == "X",
		}
		if anchor != "" {
			rec["blockId"] = anchor
		}
		if heading != "" {
			rec["precedingHeader"] = heading
		}
		if created != "" {
			rec["created"] = created
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func statusText(symbol string) string {
	switch symbol {
	case "x", "X":
		return "done"
	case "-":
		return "cancelled"
	case " ":
		return "todo"
	}
	return symbol
}
