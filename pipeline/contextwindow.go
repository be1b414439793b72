package pipeline

import "strings"

// ContextWindow keeps the most recent (source, translation) pairs for
// prompt assembly. It has exactly one writer, the translation stage,
// and is read only from that stage's goroutine, so no locking is
// needed; the ownership discipline is structural.
type ContextWindow struct {
	maxEntries int
	maxTokens  int

	entries []ContextEntry
	tokens  int
}

// NewContextWindow bounds the window by entry count and, when
// maxTokens > 0, by an approximate token budget.
func NewContextWindow(maxEntries, maxTokens int) *ContextWindow {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &ContextWindow{maxEntries: maxEntries, maxTokens: maxTokens}
}

// Append adds entry and evicts the oldest entries while either bound is
// exceeded. It always succeeds. The newest entry is never evicted, even
// when it alone exceeds the token budget.
func (w *ContextWindow) Append(entry ContextEntry) {
	w.entries = append(w.entries, entry)
	w.tokens += entryTokens(entry)

	for len(w.entries) > 1 &&
		(len(w.entries) > w.maxEntries || (w.maxTokens > 0 && w.tokens > w.maxTokens)) {
		w.tokens -= entryTokens(w.entries[0])
		w.entries = w.entries[1:]
	}
}

// Snapshot returns a point-in-time copy of the window, oldest first.
func (w *ContextWindow) Snapshot() []ContextEntry {
	out := make([]ContextEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *ContextWindow) Len() int { return len(w.entries) }

// Reset clears all entries, e.g. on a topic discontinuity after a long
// capture gap.
func (w *ContextWindow) Reset() {
	w.entries = nil
	w.tokens = 0
}

// ordered reports whether entries are in ascending sequence order.
// A false result means the single-writer discipline was violated.
func (w *ContextWindow) ordered() bool {
	for i := 1; i < len(w.entries); i++ {
		if w.entries[i].Sequence <= w.entries[i-1].Sequence {
			return false
		}
	}
	return true
}

// entryTokens approximates the prompt cost of an entry by word count.
func entryTokens(e ContextEntry) int {
	return len(strings.Fields(e.SourceText)) + len(strings.Fields(e.Translated))
}
