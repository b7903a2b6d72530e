// Package priorities locates a heading section in a markdown document by fuzzy
// heading match and returns its body as ranking guidance.
package priorities

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	headingLine    = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)
	horizontalRule = regexp.MustCompile(`^\s{0,3}(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
	trailingParens = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	fenceLine      = regexp.MustCompile("^\\s*(```|~~~)")
	spaceRun       = regexp.MustCompile(`\s+`)
	possessive     = regexp.MustCompile(`(?i)['’]s\b`)
)

// punctuation folded to a space before comparison
var foldReplacer = strings.NewReplacer(
	"'", " ", "’", " ", "‘", " ", "`", " ", "´", " ",
	"\"", " ", "“", " ", "”", " ", "„", " ",
	"-", " ", "–", " ", "—", " ", "_", " ",
	":", " ", ";", " ", ",", " ", ".", " ", "!", " ", "?", " ",
	"/", " ", "|", " ", "&", " ",
)

// Extract returns the body of the first section whose heading matches heading,
// or "" when no heading matches.
func Extract(text, heading string) string {
	want := NormalizeHeading(heading)
	if want == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	start, depth := -1, 0
	inFence := false
	for i, line := range lines {
		if fenceLine.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		level, title, ok := parseHeading(line)
		if !ok {
			continue
		}
		if NormalizeHeading(title) == want {
			start, depth = i, level
			break
		}
	}
	if start < 0 {
		return ""
	}

	var body []string
	inFence = false
	for _, line := range lines[start+1:] {
		if fenceLine.MatchString(line) {
			inFence = !inFence
		} else if !inFence {
			if horizontalRule.MatchString(line) {
				break
			}
			if level, _, ok := parseHeading(line); ok && level <= depth {
				break
			}
		}
		if len(body) == 0 && strings.TrimSpace(line) == "" {
			continue
		}
		body = append(body, line)
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n")
}

// NormalizeHeading folds a heading into its comparison form: leading emoji and
// symbols dropped, trailing parenthetical dropped, punctuation folded to spaces,
// possessives dropped, whitespace collapsed, lowercased.
func NormalizeHeading(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || isSymbol(r)
	})
	s = trailingParens.ReplaceAllString(s, "")
	s = possessive.ReplaceAllString(s, "")
	s = foldReplacer.Replace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

func parseHeading(line string) (int, string, bool) {
	m := headingLine.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), m[2], true
}

func isSymbol(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return false
	case unicode.IsSymbol(r), unicode.IsPunct(r), unicode.Is(unicode.Mn, r), unicode.Is(unicode.Cf, r):
		// emoji, variation selectors and zero-width joiners
		return true
	}
	return r >= 0x1F000
}
