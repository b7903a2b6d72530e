package task

// StatusOpen is the only status surfaced by collection.
const StatusOpen = "open"

// Location points at the source of a task: a vault path plus an optional
// zero-based line offset, or an opaque handle from the task index.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Handle string `json:"handle,omitempty"`
}

// HasLine reports whether the location carries a usable line offset.
func (l Location) HasLine() bool {
	return l.Path != "" && l.Line >= 0
}

// Item is one open task. Items are rebuilt on every run; the anchor id is
// their only identity.
type Item struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Text     string   `json:"text"`
	Context  string   `json:"context,omitempty"`
	Created  string   `json:"created,omitempty"`
	Status   string   `json:"status"`
	// Confirmed is false when the anchor was written but never showed up in
	// the background index before the wait deadline.
	Confirmed bool `json:"-"`
}
