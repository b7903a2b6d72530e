// Package ui renders user-visible notices and the insertion preview.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme 定义终端配色与样式
// Theme defines terminal colors and styles
type Theme struct {
	// 基础色 / Base colors
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Danger  lipgloss.Color
	Success lipgloss.Color
	Muted   lipgloss.Color
	Text    lipgloss.Color
	Border  lipgloss.Color

	// 预构建样式 / Pre-built styles
	TitleStyle   lipgloss.Style
	InputStyle   lipgloss.Style
	ErrorStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	MutedStyle   lipgloss.Style
	BadgeStyle   lipgloss.Style
}

// DarkTheme 暗色主题（默认）
// DarkTheme is the default dark theme
func DarkTheme() Theme {
	t := Theme{
		Primary: lipgloss.Color("#7C3AED"),
		Accent:  lipgloss.Color("#F59E0B"),
		Danger:  lipgloss.Color("#EF4444"),
		Success: lipgloss.Color("#10B981"),
		Muted:   lipgloss.Color("#6B7280"),
		Text:    lipgloss.Color("#E5E7EB"),
		Border:  lipgloss.Color("#374151"),
	}

	t.TitleStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	t.InputStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Danger).
		Bold(true)

	t.SuccessStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	t.InfoStyle = lipgloss.NewStyle().
		Foreground(t.Text)

	t.MutedStyle = lipgloss.NewStyle().
		Foreground(t.Muted)

	t.BadgeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(t.Primary).
		Bold(true).
		Padding(0, 1)

	return t
}

// PlainTheme 无颜色主题，用于非终端输出
// PlainTheme renders without colors, for non-terminal output
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		TitleStyle:   plain,
		InputStyle:   plain,
		ErrorStyle:   plain,
		SuccessStyle: plain,
		InfoStyle:    plain,
		MutedStyle:   plain,
		BadgeStyle:   plain,
	}
}
