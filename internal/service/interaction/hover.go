// internal/service/interaction/hover.go

package interaction

import (
	"sync"

	"mapnav/internal/domain/hierarchy"
)

// Hover identifies the feature currently under the cursor.
type Hover struct {
	Level hierarchy.Level `json:"level"`
	Code  string          `json:"code"`
	Name  string          `json:"name,omitempty"`
}

// HoverState is a single-slot hover register: setting a new hover always
// clears the previous one first, so at most one feature carries the
// affordance at any time.
type HoverState struct {
	mu      sync.Mutex
	current *Hover
}

// Set replaces the current hover and returns the one it displaced, if
// any.
func (h *HoverState) Set(next Hover) (prev *Hover, changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev = h.current
	if prev != nil && *prev == next {
		return nil, false
	}
	c := next
	h.current = &c
	return prev, true
}

// Clear empties the slot and returns the hover that was active.
func (h *HoverState) Clear() (prev *Hover, changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev = h.current
	h.current = nil
	return prev, prev != nil
}

// Current returns the active hover.
func (h *HoverState) Current() (Hover, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return Hover{}, false
	}
	return *h.current, true
}
