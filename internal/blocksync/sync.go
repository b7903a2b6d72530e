package blocksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"taskrank/internal/blockid"
	"taskrank/internal/host"
	"taskrank/internal/poll"
)

// State 本次同步走过的分支
// State names the branch a single Ensure call took
type State string

const (
	StateHasToken     State = "has_token"
	StateNoLocation   State = "no_location"
	StateActiveFile   State = "active_file_guard"
	StateLineHasToken State = "line_has_token"
	StateGenerated    State = "generated"
)

// "- [ ] ", "* [ ] ", "1. [ ] ", any indentation
var openChecklist = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[ \]`)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultWaitTimeout  = 1500 * time.Millisecond
)

// Ref 待同步的任务引用
// Ref points at a task whose anchor should be ensured
type Ref struct {
	// ID 任务已携带的锚点（可能为空或带前缀）
	// ID is the anchor already surfaced with the task, possibly empty or marked
	ID   string
	Path string
	// Line 零基行号；<0 表示未知
	// Line is the zero-based line offset; negative means unknown
	Line int
	// Match 可选：校验该行确实是被引用的任务（索引记录可能已过期）
	// Match optionally confirms the line is still the referenced task;
	// index records go stale after edits.
	Match func(line string) bool
}

// Result 同步结果
// Result is the outcome of one Ensure call
type Result struct {
	ID        string
	State     State
	Persisted bool
	Confirmed bool
}

// Options 同步参数
// Options configures the synchronizer
type Options struct {
	// ActivePath 当前活动文档，永不写入
	// ActivePath is the currently active document, never written
	ActivePath   string
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Rand         *rand.Rand
	Logger       *slog.Logger
}

// Synchronizer 为任务行分配并持久化锚点，并等待后台索引确认
// Synchronizer assigns and persists line anchors and waits for index confirmation
type Synchronizer struct {
	docs  host.Documents
	index host.AnchorIndex
	opts  Options

	mu sync.Mutex
	// issued holds every id handed out by this synchronizer
	issued map[string]struct{}
}

func New(docs host.Documents, index host.AnchorIndex, opts Options) *Synchronizer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer{docs: docs, index: index, opts: opts, issued: map[string]struct{}{}}
}

// Ensure returns a confirmed-or-best-effort anchor for ref. The active
// document is never written, and only an open checklist line is ever
// anchored.
func (s *Synchronizer) Ensure(ctx context.Context, ref Ref) (Result, error) {
	if id := blockid.Normalize(ref.ID); id != "" {
		s.claim(id)
		return Result{ID: id, State: StateHasToken, Persisted: true, Confirmed: true}, nil
	}
	if strings.TrimSpace(ref.Path) == "" || ref.Line < 0 {
		return s.unpersisted(StateNoLocation, ref), nil
	}
	if SamePath(ref.Path, s.opts.ActivePath) {
		return s.unpersisted(StateActiveFile, ref), nil
	}

	text, err := s.docs.Read(ctx, ref.Path)
	if err != nil {
		if errors.Is(err, host.ErrNotFound) {
			return s.unpersisted(StateNoLocation, ref), nil
		}
		return Result{}, fmt.Errorf("read %s: %w", ref.Path, err)
	}
	lines := strings.Split(text, "\n")
	if ref.Line >= len(lines) {
		return s.unpersisted(StateNoLocation, ref), nil
	}
	line := lines[ref.Line]
	body := strings.TrimSuffix(line, "\r")

	res := Result{Persisted: true}
	if tok := blockid.TrailingToken(body); tok != "" {
		res.ID, res.State = tok, StateLineHasToken
		s.claim(tok)
	} else {
		if !openChecklist.MatchString(body) || (ref.Match != nil && !ref.Match(body)) {
			s.opts.Logger.Warn("indexed line is no longer the task", "path", ref.Path, "line", ref.Line)
			return s.unpersisted(StateNoLocation, ref), nil
		}
		res.ID = s.draw(blockid.Existing(text))
		res.State = StateGenerated
		lines[ref.Line] = blockid.Append(body, res.ID) + line[len(body):]
		if err := s.docs.Write(ctx, ref.Path, strings.Join(lines, "\n")); err != nil {
			return Result{}, fmt.Errorf("write anchor to %s: %w", ref.Path, err)
		}
	}

	confirmed, err := s.Wait(ctx, ref.Path, []string{res.ID})
	if err != nil {
		return Result{}, err
	}
	res.Confirmed = confirmed
	return res, nil
}

// Wait polls the anchor index until every id is resolvable for path. A
// timeout is not an error: it returns false.
func (s *Synchronizer) Wait(ctx context.Context, path string, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	if s.index == nil {
		return false, nil
	}
	err := poll.Until(ctx, poll.Options{Interval: s.opts.PollInterval, Timeout: s.opts.WaitTimeout}, func(ctx context.Context) (bool, error) {
		anchors, err := s.index.Anchors(ctx, path)
		if err != nil {
			// transient index failures count as "not yet"
			s.opts.Logger.Debug("anchor index query failed", "path", path, "err", err)
			return false, nil
		}
		for _, id := range ids {
			if _, ok := anchors[id]; !ok {
				return false, nil
			}
		}
		return true, nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, poll.ErrTimeout):
		s.opts.Logger.Warn("anchor not confirmed by index", "path", path, "ids", ids, "timeout", s.opts.WaitTimeout)
		return false, nil
	default:
		return false, err
	}
}

// Generate 为整份内存文档生成锚点（扫描式收集器使用）
// Generate draws a fresh token unique within existing.
func (s *Synchronizer) Generate(existing map[string]struct{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := blockid.Generate(s.opts.Rand, existing)
	s.issued[id] = struct{}{}
	return id
}

// ActivePath returns the guarded document.
func (s *Synchronizer) ActivePath() string {
	return s.opts.ActivePath
}

func (s *Synchronizer) unpersisted(state State, ref Ref) Result {
	id := s.draw(nil)
	s.opts.Logger.Debug("anchor not persisted", "state", state, "path", ref.Path, "line", ref.Line)
	return Result{ID: id, State: state}
}

// draw generates an id unique within existing and every id issued so far.
func (s *Synchronizer) draw(existing map[string]struct{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := make(map[string]struct{}, len(existing)+len(s.issued))
	for id := range existing {
		taken[id] = struct{}{}
	}
	for id := range s.issued {
		taken[id] = struct{}{}
	}
	id := blockid.Generate(s.opts.Rand, taken)
	s.issued[id] = struct{}{}
	return id
}

func (s *Synchronizer) claim(id string) {
	s.mu.Lock()
	s.issued[id] = struct{}{}
	s.mu.Unlock()
}

// SamePath compares two vault paths after cleaning them, ignoring leading
// slashes and a missing extension.
func SamePath(a, b string) bool {
	a, b = cleanPath(a), cleanPath(b)
	if a == "" || b == "" {
		return false
	}
	return blockid.EnsureExtension(a) == blockid.EnsureExtension(b)
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
