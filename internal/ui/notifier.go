package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"taskrank/internal/host"
)

// Notifier 将提示逐行写入终端
// Notifier writes one styled line per notice
type Notifier struct {
	mu    sync.Mutex
	out   io.Writer
	theme Theme
	// Prefix is shown as a badge before each notice, e.g. the program name.
	Prefix string
}

var _ host.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer, theme Theme) *Notifier {
	return &Notifier{out: out, theme: theme, Prefix: "taskrank"}
}

func (n *Notifier) Info(msg string) {
	n.write(n.theme.InfoStyle, msg)
}

func (n *Notifier) Error(msg string) {
	n.write(n.theme.ErrorStyle, msg)
}

// Success 用于成功插入后的提示
// Success is used for the notice after a successful insertion
func (n *Notifier) Success(msg string) {
	n.write(n.theme.SuccessStyle, msg)
}

func (n *Notifier) write(style interface{ Render(...string) string }, msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" || n.out == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Prefix != "" {
		fmt.Fprintf(n.out, "%s %s\n", n.theme.BadgeStyle.Render(n.Prefix), style.Render(msg))
		return
	}
	fmt.Fprintln(n.out, style.Render(msg))
}
