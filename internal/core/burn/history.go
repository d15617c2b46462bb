package burn

import (
	"sync"
	"time"
)

// SanityEntry records one sanity oracle that is or was active.
type SanityEntry struct {
	Name   string
	Oracle SanityOracle
	Since  time.Time
}

// SanityHistory holds the active sanity oracle plus every retired one.
// The active entry can be swapped at runtime; retired entries are kept
// append-only so price-gate decisions remain auditable.
type SanityHistory struct {
	mu      sync.RWMutex
	active  *SanityEntry
	retired []SanityEntry
}

// NewSanityHistory creates a history with an optional initial oracle.
func NewSanityHistory(name string, oracle SanityOracle, now time.Time) *SanityHistory {
	h := &SanityHistory{}
	if oracle != nil {
		h.active = &SanityEntry{Name: name, Oracle: oracle, Since: now}
	}
	return h
}

// Swap replaces the active oracle, retiring the previous one.
func (h *SanityHistory) Swap(name string, oracle SanityOracle, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil {
		h.retired = append(h.retired, *h.active)
	}
	h.active = &SanityEntry{Name: name, Oracle: oracle, Since: now}
}

// Active returns the current sanity oracle, or nil if none is wired.
func (h *SanityHistory) Active() SanityOracle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.active == nil {
		return nil
	}
	return h.active.Oracle
}

// ActiveName returns the active entry's name, or "" if none.
func (h *SanityHistory) ActiveName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.active == nil {
		return ""
	}
	return h.active.Name
}

// Retired returns a copy of the retired entries in retirement order.
func (h *SanityHistory) Retired() []SanityEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]SanityEntry, len(h.retired))
	copy(out, h.retired)
	return out
}
