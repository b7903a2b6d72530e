package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskrank/internal/blockindex"
	"taskrank/internal/blocksync"
	"taskrank/internal/collector"
	"taskrank/internal/config"
	"taskrank/internal/i18n"
	"taskrank/internal/taskindex"
	"taskrank/internal/vault"

	"github.com/google/uuid"
)

// app 一次命令调用共享的宿主环境
// app is the host environment shared by one command invocation
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	catalog *i18n.Catalog
	vault   *vault.Vault
	index   *blockindex.Index

	closers []func() error
}

type appOptions struct {
	ConfigPath string
	VaultRoot  string
	LogToFile  bool
	Verbose    bool
	// LogOutput 覆盖日志输出，测试使用
	LogOutput io.Writer
}

func currentAppOptions() appOptions {
	return appOptions{ConfigPath: configPath, VaultRoot: vaultRoot, LogToFile: logToFile, Verbose: verbose}
}

func openApp(opts appOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if root := strings.TrimSpace(opts.VaultRoot); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve vault root: %w", err)
		}
		cfg.Vault.Root = abs
	}
	a := &app{cfg: cfg, catalog: catalogFor(cfg)}

	logger, closeLog, err := newLogger(cfg, opts)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	v, err := vault.Open(cfg.Vault.Root)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}
	a.vault = v

	idx, err := blockindex.Open(cfg.Index.DBPath, v, blockindex.Options{
		Debounce: time.Duration(cfg.Index.DebounceMS) * time.Millisecond,
		Logger:   logger.With("component", "index"),
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.index = idx
	// every vault write reaches the index through the notify queue
	v.OnWrite(idx.Notify)
	// index closes before the log file
	a.closers = append([]func() error{idx.Close}, a.closers...)
	return a, nil
}

func catalogFor(cfg config.Config) *i18n.Catalog {
	return i18n.New(cfg.UI.Locale)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) syncOptions() blocksync.Options {
	return blocksync.Options{
		PollInterval: time.Duration(a.cfg.Sync.PollIntervalMS) * time.Millisecond,
		WaitTimeout:  time.Duration(a.cfg.Sync.TimeoutMS) * time.Millisecond,
		Logger:       a.logger.With("component", "sync"),
	}
}

// taskService 返回 index 策略使用的任务索引服务：外部导出文件优先，否则为内置索引
// taskService returns the service the index strategy reads: an export file when configured, else the built-in index
func (a *app) taskService() any {
	if a.cfg.Collect.TaskExport != "" {
		return taskindex.Export{Path: a.cfg.Collect.TaskExport}
	}
	return a.index
}

func (a *app) collector() (collector.Collector, error) {
	switch a.cfg.Collect.Strategy {
	case config.StrategyIndex:
		src, shape, err := taskindex.Adapt(a.taskService())
		if err != nil {
			return nil, err
		}
		a.logger.Debug("task index adapted", "shape", shape)
		return &collector.Indexed{
			Source: src,
			Docs:   a.vault,
			Index:  a.index,
			Sync:   a.syncOptions(),
			Logger: a.logger.With("component", "collector"),
		}, nil
	default:
		return &collector.Scan{
			Docs:   a.vault,
			Index:  a.index,
			Sync:   a.syncOptions(),
			Logger: a.logger.With("component", "collector"),
		}, nil
	}
}

func newLogger(cfg config.Config, opts appOptions) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	switch {
	case opts.LogOutput != nil:
		out = opts.LogOutput
	case opts.LogToFile:
		dir := filepath.Join(cfg.Storage.BaseDir, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, "taskrank.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = f.Close
		if !opts.Verbose {
			level = slog.LevelInfo
		}
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("run", uuid.NewString()), closeFn, nil
}
