package blockid

import (
	"math/rand"
	"regexp"
	"strings"
)

// Marker 行尾锚点前缀
// Marker prefixes every anchor token written at a line end
const Marker = "^"

// Extension 文档扩展名
// Extension is the document extension embeds resolve against
const Extension = ".md"

const (
	tokenLength   = 6
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	validToken    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	trailingToken = regexp.MustCompile(`(?:^|\s)\^([A-Za-z0-9_-]+)\s*$`)
)

// Normalize 去除前导标记与空白；非法 token 返回空串
// Normalize strips surrounding whitespace and leading markers; invalid tokens yield ""
func Normalize(token string) string {
	s := strings.TrimSpace(token)
	s = strings.TrimLeft(s, "^#")
	s = strings.TrimSpace(s)
	if s == "" || !validToken.MatchString(s) {
		return ""
	}
	return s
}

// EnsureExtension 补全文档扩展名
// EnsureExtension appends the document extension when missing
func EnsureExtension(path string) string {
	if strings.HasSuffix(strings.ToLower(path), Extension) {
		return path
	}
	return path + Extension
}

// TrailingToken 返回行尾已有的锚点（不含前缀）
// TrailingToken returns the anchor token ending the line, without marker
func TrailingToken(line string) string {
	m := trailingToken.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// Existing 收集文档中所有行尾锚点
// Existing collects every line-end anchor token in a document
func Existing(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, line := range strings.Split(text, "\n") {
		if tok := TrailingToken(strings.TrimRight(line, "\r")); tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

// Generate 生成一个不在 existing 中的新 token，并登记进 existing
// Generate draws tokens until one is absent from existing, then records it there
func Generate(rng *rand.Rand, existing map[string]struct{}) string {
	for {
		tok := randomToken(rng)
		if _, taken := existing[tok]; taken {
			continue
		}
		if existing != nil {
			existing[tok] = struct{}{}
		}
		return tok
	}
}

// Append 将锚点追加到行尾（两个空格分隔）
// Append writes the anchor at the end of line, separated by two spaces
func Append(line, token string) string {
	return strings.TrimRight(line, " \t") + "  " + Marker + token
}

// Strip removes a trailing anchor token and the whitespace before it.
func Strip(line string) string {
	loc := trailingToken.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return strings.TrimRight(line[:loc[0]], " \t")
}

// Embed 构造块嵌入引用
// Embed builds the block embed reference for one anchored line
func Embed(path, id string) string {
	return "![[" + EnsureExtension(path) + "#" + Marker + id + "]]"
}

func randomToken(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(tokenLength)
	for i := 0; i < tokenLength; i++ {
		var n int
		if rng != nil {
			n = rng.Intn(len(tokenAlphabet))
		} else {
			n = rand.Intn(len(tokenAlphabet))
		}
		b.WriteByte(tokenAlphabet[n])
	}
	return b.String()
}
