// Package collector enumerates open checklist tasks outside the active
// document and makes sure each one carries an anchor.
package collector

import (
	"context"
	"regexp"
	"strings"

	"taskrank/internal/blockid"
	"taskrank/internal/task"
)

// Request 单次收集的输入
// Request is the input of one collection run
type Request struct {
	// Folders 限定扫描的目录前缀；为空表示整个 vault
	// Folders restricts collection to these vault prefixes; empty means all
	Folders []string
	// ActivePath 当前活动文档，无条件排除
	// ActivePath is the active document, always excluded
	ActivePath string
}

// Collector 收集策略
// Collector is one collection strategy; all strategies share this contract
type Collector interface {
	Collect(ctx context.Context, req Request) ([]task.Item, error)
}

var (
	// "- [ ] text", "* [ ] text", "+ [ ] text", "1. [ ] text", any indentation
	openTaskLine = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[ \](?:\s+(.*))?$`)
	headingLine  = regexp.MustCompile(`^#{1,6}\s+(.+?)(?:\s+#+)?\s*$`)

	createdEmoji  = regexp.MustCompile(`➕\s*(\d{4}-\d{2}-\d{2})`)
	createdField  = regexp.MustCompile(`\[created::\s*(\d{4}-\d{2}-\d{2})\s*\]`)
	createdPlain  = regexp.MustCompile(`(?i)\bcreated:\s*(\d{4}-\d{2}-\d{2})\b`)
	listPrefix    = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[[^\]]\]\s*`)
	multipleSpace = regexp.MustCompile(`\s{2,}`)
)

// InlineCreated 从行内标记解析创建日期
// InlineCreated parses a created date from inline text markers, or ""
func InlineCreated(text string) string {
	for _, re := range []*regexp.Regexp{createdEmoji, createdField, createdPlain} {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// DisplayText strips the list marker, checkbox, anchor token and created
// markers from a task line.
func DisplayText(line string) string {
	s := strings.TrimRight(line, "\r")
	s = blockid.Strip(s)
	s = listPrefix.ReplaceAllString(s, "")
	for _, re := range []*regexp.Regexp{createdEmoji, createdField, createdPlain} {
		s = re.ReplaceAllString(s, "")
	}
	s = multipleSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// InFolders 判断路径是否落在任一目录前缀下
// InFolders reports whether path equals or sits under one of folders.
// No folders means every path passes.
func InFolders(path string, folders []string) bool {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	active := 0
	for _, root := range folders {
		root = strings.Trim(strings.TrimSpace(root), "/")
		if root == "" {
			continue
		}
		active++
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return active == 0
}

func normalizeFolders(folders []string) []string {
	out := make([]string, 0, len(folders))
	seen := map[string]bool{}
	for _, f := range folders {
		f = strings.Trim(strings.TrimSpace(f), "/")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
