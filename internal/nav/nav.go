// Package nav models the navigation surface the active conversation id is
// derived from: a current location with a query string, and a history stack
// with replace/push semantics so back and forward can traverse conversations.
package nav

import (
	"net/url"
	"sync"
)

// Location is a navigable position: a path plus query values.
type Location struct {
	Path  string
	Query url.Values
}

// clone returns a deep copy so stack entries never alias each other.
func (l Location) clone() Location {
	query := url.Values{}
	for key, values := range l.Query {
		query[key] = append([]string(nil), values...)
	}
	return Location{Path: l.Path, Query: query}
}

// History is a navigation stack. Replace mutates the current entry in
// place; Push appends a new entry and truncates the forward tail.
type History struct {
	mu    sync.Mutex
	stack []Location
	index int
}

// NewHistory starts a history at the given location.
func NewHistory(start Location) *History {
	return &History{stack: []Location{start.clone()}}
}

// Current returns a copy of the current location.
func (h *History) Current() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack[h.index].clone()
}

// Replace swaps the current entry without creating a new one.
func (h *History) Replace(location Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack[h.index] = location.clone()
}

// Push appends a new entry, dropping any forward entries.
func (h *History) Push(location Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack[:h.index+1], location.clone())
	h.index = len(h.stack) - 1
}

// Back moves one entry back, reporting whether it moved.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return false
	}
	h.index--
	return true
}

// Forward moves one entry forward, reporting whether it moved.
func (h *History) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.stack)-1 {
		return false
	}
	h.index++
	return true
}

// Len returns the number of entries on the stack.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}
