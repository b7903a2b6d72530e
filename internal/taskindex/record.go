package taskindex

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Record 任务索引服务返回的不透明记录；不同版本字段形状不同
// Record is one opaque task record; field shapes vary across service versions
type Record map[string]any

var (
	// completed status words and symbols
	completedStatus = regexp.MustCompile(`(?i)\b(?:done|complete|completed|cancel\w*)\b|[✓✔☑✅❌🗑]|^\s*\[?[xX]\]?\s*$`)
	isoDatePrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

var (
	pathKeys        = []string{"path", "filePath", "file.path", "taskLocation.path", "location.path"}
	lineKeys        = []string{"line", "lineNumber", "taskLocation.lineNumber", "position.start.line", "location.line"}
	descriptionKeys = []string{"description", "text", "content"}
	anchorKeys      = []string{"blockId", "blockLink", "anchor"}
	headingKeys     = []string{"precedingHeader", "heading", "header", "section.subpath"}
	createdKeys     = []string{"createdDate", "created", "created_at"}
	handleKeys      = []string{"handle", "uid", "key"}

	completedFlagKeys = []string{"completed", "done", "checked", "isDone", "isCompleted", "fullyCompleted"}
	completedDateKeys = []string{"doneDate", "completedDate", "completion", "completion_date", "cancelledDate"}
	statusKeys        = []string{"status", "statusSymbol", "checkbox", "status.type", "status.symbol", "status.name"}
)

// Path 文档路径
// Path returns the owning document path
func (r Record) Path() string {
	return strings.TrimPrefix(r.firstString(pathKeys), "/")
}

// Line 零基行号，未知为 -1
// Line returns the zero-based line offset, or -1 when unknown
func (r Record) Line() int {
	for _, key := range lineKeys {
		v, ok := r.lookup(key)
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok && n >= 0 {
			return n
		}
	}
	return -1
}

func (r Record) Description() string { return r.firstString(descriptionKeys) }
func (r Record) Anchor() string      { return r.firstString(anchorKeys) }
func (r Record) Heading() string     { return r.firstString(headingKeys) }

// Handle 不透明句柄；缺省为 path:line
// Handle returns an opaque source handle, defaulting to path:line
func (r Record) Handle() string {
	if h := r.firstString(handleKeys); h != "" {
		return h
	}
	if p := r.Path(); p != "" {
		return fmt.Sprintf("%s:%d", p, r.Line())
	}
	return ""
}

// Created 结构化创建日期；支持字符串、带 Format 方法的值、{year,month,day}
// Created returns the structured created date as YYYY-MM-DD, or "".
// Supported shapes: plain string, a value with Format(layout) string such as
// time.Time, and a {year, month, day} map.
func (r Record) Created() string {
	for _, key := range createdKeys {
		v, ok := r.lookup(key)
		if !ok || v == nil {
			continue
		}
		if s := formatDate(v); s != "" {
			return s
		}
	}
	return ""
}

// IsCompleted 完成度启发式：布尔标记、完成日期、状态文本，任一命中即完成
// IsCompleted reports completion when any of: a boolean flag, a non-empty
// completion date, or a status text matching the completed pattern.
func IsCompleted(r Record) bool {
	for _, key := range completedFlagKeys {
		if v, ok := r.lookup(key); ok {
			if b, isBool := v.(bool); isBool && b {
				return true
			}
		}
	}
	for _, key := range completedDateKeys {
		if v, ok := r.lookup(key); ok && v != nil {
			if s, isString := v.(string); isString {
				if strings.TrimSpace(s) != "" {
					return true
				}
				continue
			}
			return true
		}
	}
	for _, key := range statusKeys {
		v, ok := r.lookup(key)
		if !ok {
			continue
		}
		if s, isString := v.(string); isString && completedStatus.MatchString(s) {
			return true
		}
	}
	return false
}

func (r Record) firstString(keys []string) string {
	for _, key := range keys {
		v, ok := r.lookup(key)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// lookup resolves a dotted key through nested maps.
func (r Record) lookup(key string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

type formatter interface {
	Format(layout string) string
}

func formatDate(v any) string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if m := isoDatePrefix.FindString(s); m != "" {
			return m
		}
		return ""
	case formatter:
		if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}
		return isoDatePrefix.FindString(val.Format("2006-01-02"))
	}
	m, ok := asMap(v)
	if !ok {
		return ""
	}
	year, okY := toInt(m["year"])
	month, okM := toInt(m["month"])
	day, okD := toInt(m["day"])
	if !okY || !okM || !okD || month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
