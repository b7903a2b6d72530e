package ranking

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter 文本 token 计数
// Counter counts tokens of a text
type Counter interface {
	CountText(text string) int
}

// Tokenizer tiktoken 计数器，BPE 不可用时回退到启发式估算
// Tokenizer counts tokens with tiktoken and falls back to a heuristic
// when the BPE tables cannot be loaded
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.RWMutex
}

// NewTokenizer 创建 tokenizer；离线环境可能没有 BPE 缓存
// NewTokenizer creates a tokenizer; offline environments may lack the BPE cache
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// NewTokenizerForModel 根据模型名选择编码
// NewTokenizerForModel picks the encoding from the model name
func NewTokenizerForModel(model string) *Tokenizer {
	return NewTokenizer(modelToEncoding(model))
}

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback || t.encoder == nil {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise reports whether tiktoken is in use.
func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

func (t *Tokenizer) EncodingName() string {
	return t.encodingName
}

// heuristicTokenCount 估算：CJK 约 1.5 token/字，其他约 4 字符/token
// heuristicTokenCount estimates ~1.5 tokens per CJK rune and ~4 chars per token otherwise
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	cjk, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	estimate := int(float64(cjk)*1.5 + float64(other)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"):
		return "o200k_base"
	}
	return "cl100k_base"
}
