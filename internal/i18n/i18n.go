package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Catalog 按 locale 加载的提示文案
// Catalog holds the notice texts for one locale
type Catalog struct {
	locale   string
	messages map[string]string
	mu       sync.RWMutex
}

// New 创建 Catalog；locale 为空时从环境检测
// New creates a catalog; an empty locale is detected from the environment
func New(locale string) *Catalog {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	c := &Catalog{
		locale:   locale,
		messages: make(map[string]string, len(EnMessages)),
	}
	// English is the fallback for missing keys
	for k, v := range EnMessages {
		c.messages[k] = v
	}
	if locale == "zh-CN" {
		for k, v := range ZhCNMessages {
			c.messages[k] = v
		}
	}
	return c
}

// T 翻译；未知 key 原样返回
// T translates key; unknown keys are returned unchanged
func (c *Catalog) T(key string, args ...any) string {
	c.mu.RLock()
	tmpl, ok := c.messages[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (c *Catalog) Locale() string {
	return c.locale
}

// DetectLocale 从环境变量检测 locale
// DetectLocale reads the locale from the environment
func DetectLocale() string {
	for _, env := range []string{"TASKRANK_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" && v != "C" && v != "POSIX" {
			return normalizeLocale(v)
		}
	}
	return "en"
}

func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "en"
	}
	// drop encoding suffix such as .UTF-8
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	lower := strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	switch {
	case strings.HasPrefix(lower, "zh"):
		return "zh-CN"
	case strings.HasPrefix(lower, "en"):
		return "en"
	}
	return "en"
}
