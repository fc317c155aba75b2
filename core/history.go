package core

import "sync"

// History is the ordered conversation transcript of a single run. It lives only
// as long as the run; persistence across runs is the caller's concern.
type History struct {
	mu       sync.RWMutex
	contents []Content
}

// NewHistory returns a history seeded with the given contents.
func NewHistory(seed ...Content) *History {
	h := &History{}
	h.contents = append(h.contents, seed...)
	return h
}

// Append adds contents to the end of the transcript.
func (h *History) Append(c ...Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contents = append(h.contents, c...)
}

// Contents returns a copy of the transcript.
func (h *History) Contents() []Content {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Content, len(h.contents))
	copy(out, h.contents)
	return out
}

// Len returns the number of items in the transcript.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.contents)
}
