package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本；失败时返回原文
// RenderMarkdown renders markdown with Glamour, falling back to the raw text
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// PreviewMarkdown 列出插入到 target 的嵌入行
// PreviewMarkdown lists the embed lines inserted into target
func PreviewMarkdown(target string, embeds []string) string {
	if len(embeds) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", target)
	for i, e := range embeds {
		fmt.Fprintf(&b, "%d. `%s`\n", i+1, strings.TrimSpace(e))
	}
	return b.String()
}

// Preview 渲染插入预览
// Preview renders the insertion preview for a terminal of the given width
func Preview(target string, embeds []string, width int) string {
	return RenderMarkdown(PreviewMarkdown(target, embeds), width)
}
