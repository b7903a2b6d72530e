package host

import "strings"

// Splice inserts text into doc at pos (clamped) and returns the new document
// and the position right after the inserted text.
func Splice(doc string, pos Position, text string) (string, Position) {
	lines := strings.Split(doc, "\n")
	line := pos.Line
	if line < 0 {
		line = 0
	}
	if line >= len(lines) {
		line = len(lines) - 1
	}
	col := pos.Col
	if col < 0 {
		col = 0
	}
	if col > len(lines[line]) {
		col = len(lines[line])
	}
	offset := col
	for i := 0; i < line; i++ {
		offset += len(lines[i]) + 1
	}
	updated := doc[:offset] + text + doc[offset:]

	inserted := strings.Split(text, "\n")
	end := Position{Line: line + len(inserted) - 1}
	if len(inserted) == 1 {
		end.Col = col + len(text)
	} else {
		end.Col = len(inserted[len(inserted)-1])
	}
	return updated, end
}
