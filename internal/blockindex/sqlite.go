// Package blockindex is the background anchor index: an eventually
// consistent SQLite mirror of every anchor and checklist line in the vault.
package blockindex

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"taskrank/internal/host"
	"taskrank/internal/vault"

	_ "modernc.org/sqlite"
)

// DefaultDebounce 通知到索引之间的延迟
// DefaultDebounce is the delay between a change notification and indexing
const DefaultDebounce = 250 * time.Millisecond

// Options 索引参数
// Options configures the index
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Stats 索引规模
// Stats summarises the index content
type Stats struct {
	Documents int
	Anchors   int
	Tasks     int
}

// Index 基于 SQLite (WAL 模式) 的后台锚点索引
// Index is the SQLite-backed background anchor index (WAL mode)
type Index struct {
	db     *sql.DB
	path   string
	docs   host.Documents
	opts   Options
	logger *slog.Logger

	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

var _ host.AnchorIndex = (*Index)(nil)

// Open 创建并初始化索引数据库
// Open creates and initializes the index database
func Open(dbPath string, docs host.Documents, opts Options) (*Index, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{
		db:     db,
		path:   dbPath,
		docs:   docs,
		opts:   opts,
		logger: logger,
		queue:  make(chan string, 256),
	}
	if err := idx.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return idx, nil
}

func (i *Index) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path       TEXT PRIMARY KEY,
		hash       TEXT NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS anchors (
		path   TEXT NOT NULL,
		anchor TEXT NOT NULL,
		line   INTEGER NOT NULL,
		PRIMARY KEY(path, anchor, line)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		path        TEXT NOT NULL,
		line        INTEGER NOT NULL,
		status      TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		anchor      TEXT NOT NULL DEFAULT '',
		heading     TEXT NOT NULL DEFAULT '',
		created     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY(path, line)
	);

	CREATE INDEX IF NOT EXISTS idx_anchors_path ON anchors(path);
	CREATE INDEX IF NOT EXISTS idx_tasks_path ON tasks(path);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Start 启动后台工作协程，消费变更通知
// Start launches the worker that consumes change notifications
func (i *Index) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.run(ctx)
}

// Notify 通知文档已变更；索引在防抖延迟后异步更新
// Notify reports a changed document; indexing happens after the debounce delay
func (i *Index) Notify(path string) {
	path = normalize(path)
	if path == "" {
		return
	}
	select {
	case i.queue <- path:
	default:
		// queue full: the next Rebuild picks the change up
		i.logger.Warn("index queue full, change dropped", "path", path)
	}
}

func (i *Index) run(ctx context.Context) {
	defer close(i.done)
	pending := map[string]struct{}{}
	var fire <-chan time.Time

	flush := func(ctx context.Context) {
		for path := range pending {
			if err := i.IndexDocument(ctx, path); err != nil {
				i.logger.Warn("index document failed", "path", path, "err", err)
			}
			delete(pending, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			// drain what is already queued so writes made just before exit are indexed
		drain:
			for {
				select {
				case path := <-i.queue:
					pending[path] = struct{}{}
				default:
					break drain
				}
			}
			flush(context.Background())
			return
		case path := <-i.queue:
			pending[path] = struct{}{}
			fire = time.After(i.opts.Debounce)
		case <-fire:
			fire = nil
			flush(ctx)
		}
	}
}

// Close 停止工作协程（先冲刷待处理通知）并关闭数据库
// Close stops the worker after flushing pending notifications, then closes the database
func (i *Index) Close() error {
	var err error
	i.once.Do(func() {
		if i.cancel != nil {
			i.cancel()
			<-i.done
		}
		err = i.db.Close()
	})
	return err
}

// Anchors 返回文档当前已索引的锚点
// Anchors returns the anchors currently indexed for path
func (i *Index) Anchors(ctx context.Context, path string) (map[string]struct{}, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT anchor FROM anchors WHERE path=?`, normalize(path))
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var anchor string
		if err := rows.Scan(&anchor); err != nil {
			return nil, fmt.Errorf("scan anchor: %w", err)
		}
		out[anchor] = struct{}{}
	}
	return out, rows.Err()
}

// IndexDocument 同步重建单个文档的索引；内容未变时跳过
// IndexDocument re-indexes one document synchronously; unchanged content is skipped
func (i *Index) IndexDocument(ctx context.Context, path string) error {
	path = normalize(path)
	text, err := i.docs.Read(ctx, path)
	if err != nil {
		if errors.Is(err, host.ErrNotFound) {
			return i.forget(ctx, path)
		}
		return err
	}

	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])
	var current string
	err = i.db.QueryRowContext(ctx, `SELECT hash FROM documents WHERE path=?`, path).Scan(&current)
	if err == nil && current == hash {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load document hash: %w", err)
	}

	parsed := parseDocument(text)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearDocument(ctx, tx, path); err != nil {
		return err
	}
	anchorStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO anchors (path, anchor, line) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare anchor insert: %w", err)
	}
	defer anchorStmt.Close()
	for _, a := range parsed.anchors {
		if _, err := anchorStmt.ExecContext(ctx, path, a.anchor, a.line); err != nil {
			return fmt.Errorf("insert anchor %s: %w", a.anchor, err)
		}
	}

	taskStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (path, line, status, description, anchor, heading, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare task insert: %w", err)
	}
	defer taskStmt.Close()
	for _, t := range parsed.tasks {
		if _, err := taskStmt.ExecContext(ctx, path, t.line, t.status, t.description, t.anchor, t.heading, t.created); err != nil {
			return fmt.Errorf("insert task line %d: %w", t.line, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (path, hash, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash=excluded.hash, indexed_at=excluded.indexed_at`,
		path, hash, nowUTC()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return tx.Commit()
}

// Rebuild 全量扫描 vault，并清理已删除文档
// Rebuild scans the whole vault and drops documents that no longer exist
func (i *Index) Rebuild(ctx context.Context) (Stats, error) {
	paths, err := i.docs.List(ctx, "")
	if err != nil {
		return Stats{}, fmt.Errorf("list vault: %w", err)
	}
	live := make(map[string]bool, len(paths))
	for _, p := range paths {
		live[p] = true
		if err := i.IndexDocument(ctx, p); err != nil {
			return Stats{}, fmt.Errorf("index %s: %w", p, err)
		}
	}

	known, err := i.documentPaths(ctx)
	if err != nil {
		return Stats{}, err
	}
	for _, p := range known {
		if !live[p] {
			if err := i.forget(ctx, p); err != nil {
				return Stats{}, err
			}
		}
	}
	return i.Stats(ctx)
}

func (i *Index) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	row := i.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM anchors), (SELECT COUNT(*) FROM tasks)`)
	if err := row.Scan(&s.Documents, &s.Anchors, &s.Tasks); err != nil {
		return Stats{}, fmt.Errorf("count index rows: %w", err)
	}
	return s, nil
}

func (i *Index) documentPaths(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (i *Index) forget(ctx context.Context, path string) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := clearDocument(ctx, tx, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path=?`, path); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

func clearDocument(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM anchors WHERE path=?`, path); err != nil {
		return fmt.Errorf("delete anchors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE path=?`, path); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

func normalize(path string) string {
	return vault.Canonical(path)
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
