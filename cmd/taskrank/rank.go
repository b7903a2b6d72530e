package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"taskrank/internal/config"
	"taskrank/internal/editor"
	"taskrank/internal/host"
	"taskrank/internal/orchestrator"
	"taskrank/internal/prompt"
	"taskrank/internal/ranking"
	"taskrank/internal/taskindex"
	"taskrank/internal/ui"
	"taskrank/internal/vault"

	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Insert the highest-priority open tasks into the active note",
	Args:  cobra.NoArgs,
	RunE:  runRankCmd,
}

var (
	rankFile string
	rankLine int
	rankCol  int
)

func init() {
	rankCmd.Flags().StringVar(&rankFile, "file", "", "Active note, relative to the vault (defaults to $TASKRANK_ACTIVE_FILE)")
	rankCmd.Flags().IntVar(&rankLine, "line", 0, "Cursor line, 1-based (0 = end of note)")
	rankCmd.Flags().IntVar(&rankCol, "col", 1, "Cursor column, 1-based")
}

// envWorkspace 宿主通过环境变量告知当前活动文档
// envWorkspace reads the host's active document from the environment
type envWorkspace struct {
	vault *vault.Vault
}

func (w envWorkspace) ActiveDocument() string {
	raw := strings.TrimSpace(os.Getenv("TASKRANK_ACTIVE_FILE"))
	target, err := w.vault.Target(raw)
	if err != nil {
		// outside the vault: the orchestrator reports no active document
		return raw
	}
	return target
}

// rankRequest 一次 rank 调用的宿主绑定
// rankRequest carries the host binding of one rank invocation
type rankRequest struct {
	File string
	// Line and Col are 1-based; Line 0 places the cursor at the end of the note.
	Line int
	Col  int

	Prompter host.Prompter
	Out      io.Writer
	// Notifier 为空时使用写入 Out 的终端提示
	// Notifier defaults to terminal notices written to Out
	Notifier host.Notifier
	// Width 预览宽度；0 时不渲染预览
	Width int
}

func runRankCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := openApp(currentAppOptions())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	prompter, closePrompt := newPrompter(a, out)
	defer closePrompt()

	req := rankRequest{File: rankFile, Line: rankLine, Col: rankCol, Prompter: prompter, Out: out, Width: 80}
	if _, err := runRank(ctx, a, req); err != nil {
		// already shown as a notice
		return reportedError{err}
	}
	return nil
}

func newPrompter(a *app, out io.Writer) (host.Prompter, func()) {
	if a.cfg.UI.Mode == config.ModeTUI {
		return &prompt.Form{Out: out, Catalog: a.catalog, Theme: ui.DarkTheme()}, func() {}
	}
	reader, err := prompt.NewReadline(os.Stdin, out)
	if err != nil {
		a.logger.Debug("readline unavailable, using plain input", "err", err)
	}
	return &prompt.Line{Reader: reader, Out: out, Catalog: a.catalog}, func() { _ = reader.Close() }
}

// runRank 组装宿主协作者并执行一次编排；所有结局与错误都以提示输出
// runRank wires the host collaborators and runs the orchestrator once; every
// outcome and error is reported as a notice
func runRank(ctx context.Context, a *app, req rankRequest) (orchestrator.Outcome, error) {
	notifier := req.Notifier
	if notifier == nil {
		notifier = ui.NewNotifier(req.Out, noticeTheme(req.Out))
	}

	// background index catches up with the vault before collection
	a.index.Start(ctx)
	if stats, err := a.index.Rebuild(ctx); err != nil {
		a.logger.Warn("index rebuild failed", "err", err)
	} else {
		a.logger.Debug("index ready", "documents", stats.Documents, "anchors", stats.Anchors, "tasks", stats.Tasks)
	}

	var ed host.Editor
	if bound, err := bindEditor(ctx, a, req); err != nil {
		return reportError(a, notifier, err)
	} else if bound != nil {
		ed = bound
	}

	coll, err := a.collector()
	if err != nil {
		return reportError(a, notifier, err)
	}

	ranker := ranking.New(ranking.Config{
		BaseURL:         a.cfg.Provider.BaseURL,
		APIKey:          a.cfg.Provider.APIKey,
		Model:           a.cfg.Provider.Model,
		SystemPrompt:    a.cfg.Provider.SystemPrompt,
		TimeoutMS:       a.cfg.Provider.TimeoutMS,
		MaxPromptTokens: a.cfg.Provider.MaxPromptTokens,
	}, a.logger.With("component", "ranking"))

	orch := orchestrator.New(orchestrator.Deps{
		Docs:      a.vault,
		Editor:    ed,
		Workspace: envWorkspace{vault: a.vault},
		Index:     a.index,
		Prompter:  req.Prompter,
		Collector: coll,
		Ranker:    ranker,
	}, orchestrator.Options{
		Folders: a.cfg.Collect.Folders,
		Heading: a.cfg.Priorities.Heading,
		Logger:  a.logger.With("component", "orchestrator"),
	})

	started := time.Now()
	outcome, err := orch.Run(ctx)
	a.logger.Info("rank finished", "outcome", outcome.Kind, "target", outcome.Target, "collected", outcome.Collected,
		"embeds", len(outcome.Embeds), "elapsed", time.Since(started))
	if outcome.Restored {
		// corrected silently; only the log records it
		a.logger.Warn("active document restored after collection", "target", outcome.Target)
	}
	if err != nil {
		return reportError(a, notifier, err)
	}
	reportOutcome(a, notifier, req, outcome)
	return outcome, nil
}

// bindEditor 将 --file 绑定为活动文档；未指定时由宿主工作区决定目标
// bindEditor binds --file as the active note; without it the host workspace decides
func bindEditor(ctx context.Context, a *app, req rankRequest) (*editor.Editor, error) {
	file, err := a.vault.Target(req.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", orchestrator.ErrNoActiveDocument, req.File, err)
	}
	if file == "" {
		return nil, nil
	}
	if req.Line <= 0 {
		ed, err := editor.AtEnd(ctx, a.vault, file)
		if err != nil {
			if errors.Is(err, host.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", orchestrator.ErrNoActiveDocument, file)
			}
			return nil, err
		}
		return ed, nil
	}
	col := req.Col - 1
	if col < 0 {
		col = 0
	}
	return editor.New(a.vault, file, host.Position{Line: req.Line - 1, Col: col}), nil
}

func reportOutcome(a *app, n host.Notifier, req rankRequest, out orchestrator.Outcome) {
	switch out.Kind {
	case orchestrator.Inserted:
		n.Success(a.catalog.T("notice.inserted", len(out.Embeds), out.Target))
		if a.cfg.UI.Preview && req.Width > 0 && req.Out != nil {
			if preview := ui.Preview(out.Target, out.Embeds, req.Width); preview != "" {
				fmt.Fprintln(req.Out, preview)
			}
		}
	case orchestrator.NoTasks:
		n.Info(a.catalog.T("notice.no_tasks"))
	case orchestrator.NoPriorities:
		n.Info(a.catalog.T("notice.no_priorities", a.cfg.Priorities.Heading))
	case orchestrator.NothingToInsert:
		n.Info(a.catalog.T("notice.nothing_to_insert"))
	case orchestrator.Cancelled:
		n.Info(a.catalog.T("notice.cancelled"))
	}
}

// reportError 将错误转为一条提示；详细信息写日志
// reportError turns err into one notice and logs the detail
func reportError(a *app, n host.Notifier, err error) (orchestrator.Outcome, error) {
	a.logger.Error("rank failed", "err", err)
	n.Error(errorNotice(a, err))
	return orchestrator.Outcome{}, err
}

func errorNotice(a *app, err error) string {
	switch {
	case errors.Is(err, ranking.ErrMissingCredential):
		return a.catalog.T("error.credential")
	case errors.Is(err, orchestrator.ErrNoActiveDocument):
		return a.catalog.T("error.no_active")
	case errors.Is(err, taskindex.ErrIncompatibleService):
		return a.catalog.T("error.incompatible")
	}
	return a.catalog.T("error.failed", err.Error())
}

// noticeTheme 终端输出使用彩色主题，其余情况不着色
// noticeTheme colors notices only when writing to a terminal
func noticeTheme(out io.Writer) ui.Theme {
	if f, ok := out.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return ui.DarkTheme()
		}
	}
	return ui.PlainTheme()
}
