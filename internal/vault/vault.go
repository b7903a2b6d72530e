// Package vault is the filesystem document store: a directory tree of
// markdown documents addressed by vault-relative slash paths.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"taskrank/internal/blockid"
	"taskrank/internal/host"
)

// ErrPathOutsideVault 路径逃逸出 vault
// ErrPathOutsideVault reports a path escaping the vault root
var ErrPathOutsideVault = errors.New("path outside vault")

// WriteHook 每次写入成功后调用（后台索引用它接收变更通知）
// WriteHook runs after every successful write; the background index uses it
type WriteHook func(path string)

// Vault 实现 host.Documents
// Vault implements host.Documents on a directory
type Vault struct {
	root string

	mu    sync.RWMutex
	hooks []WriteHook
}

var _ host.Documents = (*Vault)(nil)

func Open(root string) (*Vault, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("vault root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs vault root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", resolved)
	}
	return &Vault{root: resolved}, nil
}

func (v *Vault) Root() string {
	return v.root
}

// OnWrite 注册写入钩子
// OnWrite registers a hook called after every successful write
func (v *Vault) OnWrite(hook WriteHook) {
	v.mu.Lock()
	v.hooks = append(v.hooks, hook)
	v.mu.Unlock()
}

// Resolve 将 vault 相对路径解析为磁盘路径，拒绝逃逸（含符号链接）
// Resolve maps a vault path to a disk path, refusing escapes through ".." or symlinks
func (v *Vault) Resolve(path string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(strings.TrimSpace(path)), string(os.PathSeparator))
	clean := filepath.Clean(filepath.Join(v.root, rel))
	resolved, err := resolveWithParentSymlink(clean)
	if err != nil {
		return "", err
	}
	back, err := filepath.Rel(v.root, resolved)
	if err != nil {
		return "", fmt.Errorf("relative path check: %w", err)
	}
	if back == ".." || strings.HasPrefix(back, ".."+string(os.PathSeparator)) {
		return "", ErrPathOutsideVault
	}
	return resolved, nil
}

// Rel 将磁盘路径（绝对或相对当前目录）转换为 vault 路径
// Rel converts a disk path, absolute or relative to the working directory, to a vault path
func (v *Vault) Rel(diskPath string) (string, error) {
	abs, err := filepath.Abs(diskPath)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", diskPath, err)
	}
	if resolved, err := resolveWithParentSymlink(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", fmt.Errorf("relative path check: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrPathOutsideVault
	}
	return filepath.ToSlash(rel), nil
}

// Target 将用户给出的活动文档转换为规范 vault 路径；绝对路径经 Rel 处理
// Target canonicalizes a user-supplied active document. Absolute paths go
// through Rel; anything else is taken as vault-relative.
func (v *Vault) Target(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	if filepath.IsAbs(p) {
		if rel, err := v.Rel(p); err == nil {
			return rel, nil
		}
	}
	rel := strings.TrimSpace(filepath.ToSlash(p))
	if cleaned := path.Clean(rel); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrPathOutsideVault
	}
	return Canonical(rel), nil
}

func (v *Vault) Read(_ context.Context, path string) (string, error) {
	disk, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(disk)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", path, host.ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Write 原子写入（临时文件 + rename）
// Write replaces the document atomically through a temp file and rename
func (v *Vault) Write(_ context.Context, path, text string) error {
	disk, err := v.Resolve(path)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(disk); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(disk), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(disk), ".taskrank-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, disk); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}

	v.mu.RLock()
	hooks := append([]WriteHook(nil), v.hooks...)
	v.mu.RUnlock()
	slashPath := Canonical(path)
	for _, hook := range hooks {
		hook(slashPath)
	}
	return nil
}

// List 递归列出目录下的 markdown 文档，跳过隐藏目录
// List walks folder recursively for markdown documents, skipping hidden directories
func (v *Vault) List(ctx context.Context, folder string) ([]string, error) {
	start, err := v.Resolve(folder)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(start); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("list %s: %w", folder, host.ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}

	var out []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != start && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), blockid.Extension) {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	sort.Strings(out)
	return out, nil
}

// Canonical 返回 vault 路径的规范形式："./a//b.md"、"/a/b.md" 均为 "a/b.md"
// Canonical returns the canonical form of a vault path; "." becomes ""
func Canonical(p string) string {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func resolveWithParentSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}
	parent := filepath.Dir(path)
	parentResolved, perr := resolveWithParentSymlink(parent)
	if perr != nil || parent == path {
		parentResolved = parent
	}
	return filepath.Join(parentResolved, filepath.Base(path)), nil
}
