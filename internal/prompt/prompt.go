// Package prompt asks the user how many tasks to rank, either on a plain
// input line (readline) or in a small bubbletea form.
package prompt

import (
	"errors"
	"strconv"
	"strings"

	"taskrank/internal/i18n"
)

// ErrInvalidCount 输入不是正整数
// ErrInvalidCount reports input that is not a positive whole number
var ErrInvalidCount = errors.New("count must be a positive whole number")

// ParseCount 解析数量输入；空输入使用 def（def < 1 时视为无效）
// ParseCount parses a count; blank input takes def, which must itself be positive
func ParseCount(input string, def int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		if def >= 1 {
			return def, nil
		}
		return 0, ErrInvalidCount
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return 0, ErrInvalidCount
	}
	return n, nil
}

func label(cat *i18n.Catalog, defaultCount int) string {
	text := "How many tasks should be ranked?"
	if cat != nil {
		text = cat.T("prompt.count")
	}
	if defaultCount >= 1 {
		return text + " [" + strconv.Itoa(defaultCount) + "] "
	}
	return text + " "
}

func invalidText(cat *i18n.Catalog) string {
	if cat != nil {
		return cat.T("prompt.invalid")
	}
	return ErrInvalidCount.Error()
}
