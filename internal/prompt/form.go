package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"taskrank/internal/host"
	"taskrank/internal/i18n"
	"taskrank/internal/ui"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap 表单快捷键
// keyMap holds the form keybindings
type keyMap struct {
	Submit key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// countModel 数量输入的 Bubble Tea Model
// countModel is the Bubble Tea model behind the count form
type countModel struct {
	input        textinput.Model
	defaultCount int
	keys         keyMap
	theme        ui.Theme
	catalog      *i18n.Catalog

	value     int
	invalid   bool
	cancelled bool
	done      bool
}

func newCountModel(defaultCount int, cat *i18n.Catalog, theme ui.Theme) countModel {
	ti := textinput.New()
	ti.Placeholder = fmt.Sprint(defaultCount)
	ti.CharLimit = 6
	ti.Width = 8
	ti.Focus()
	return countModel{
		input:        ti,
		defaultCount: defaultCount,
		keys:         defaultKeyMap(),
		theme:        theme,
		catalog:      cat,
	}
}

func (m countModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m countModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			n, err := ParseCount(m.input.Value(), m.defaultCount)
			if err != nil {
				m.invalid = true
				return m, nil
			}
			m.value = n
			m.done = true
			return m, tea.Quit
		}
		m.invalid = false
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m countModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.TitleStyle.Render(strings.TrimSpace(label(m.catalog, m.defaultCount))))
	b.WriteString("\n")
	b.WriteString(m.theme.InputStyle.Render(m.input.View()))
	b.WriteString("\n")
	if m.invalid {
		b.WriteString(m.theme.ErrorStyle.Render(invalidText(m.catalog)))
		b.WriteString("\n")
	}
	hint := "enter to confirm · esc to cancel"
	if m.catalog != nil {
		hint = m.catalog.T("prompt.hint")
	}
	b.WriteString(m.theme.MutedStyle.Render(hint))
	b.WriteString("\n")
	return b.String()
}

// Form TUI 模式数量提示
// Form is the TUI-mode count prompt
type Form struct {
	In      io.Reader
	Out     io.Writer
	Catalog *i18n.Catalog
	Theme   ui.Theme
}

var _ host.Prompter = (*Form)(nil)

func (f *Form) PromptCount(ctx context.Context, defaultCount int) (int, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f.In != nil {
		opts = append(opts, tea.WithInput(f.In))
	}
	if f.Out != nil {
		opts = append(opts, tea.WithOutput(f.Out))
	}
	final, err := tea.NewProgram(newCountModel(defaultCount, f.Catalog, f.Theme), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return 0, host.ErrCancelled
		}
		return 0, fmt.Errorf("run count form: %w", err)
	}
	m, ok := final.(countModel)
	if !ok || m.cancelled || !m.done {
		return 0, host.ErrCancelled
	}
	return m.value, nil
}
