package renderset

import (
	"sync"

	"wrap-render-server/modules/render"
)

// Intent - how a merge treats a view that is already present
type Intent int

const (
	// FirstWins keeps the existing URL.
	FirstWins Intent = iota
	// Override replaces it in place. Only the quality gate merges with this.
	Override
)

// Entry - one view of a render set
type Entry struct {
	View render.ViewType `json:"type"`
	URL  string          `json:"url"`
}

// RenderSet - ordered view -> url collection of one design session.
// Safe for concurrent use.
type RenderSet struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[render.ViewType]int
}

// New returns an empty set.
func New() *RenderSet {
	return &RenderSet{index: make(map[render.ViewType]int)}
}

// FromEntries builds a set from persisted entries, dropping duplicates and blanks.
func FromEntries(entries []Entry) *RenderSet {
	rs := New()
	for _, e := range entries {
		rs.Merge(e.View, e.URL, FirstWins)
	}
	return rs
}

// Merge adds url for view. Returns true when the set changed.
func (rs *RenderSet) Merge(view render.ViewType, url string, intent Intent) bool {
	if view == "" || url == "" {
		return false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.index == nil {
		rs.index = make(map[render.ViewType]int)
	}

	if i, ok := rs.index[view]; ok {
		if intent != Override || rs.entries[i].URL == url {
			return false
		}
		rs.entries[i].URL = url
		return true
	}

	rs.index[view] = len(rs.entries)
	rs.entries = append(rs.entries, Entry{View: view, URL: url})
	return true
}

// MergeOverride replaces the url of view, appending it when absent.
func (rs *RenderSet) MergeOverride(view render.ViewType, url string) bool {
	return rs.Merge(view, url, Override)
}

// URL of view, empty when absent.
func (rs *RenderSet) URL(view render.ViewType) string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if i, ok := rs.index[view]; ok {
		return rs.entries[i].URL
	}
	return ""
}

// Has reports whether view is present.
func (rs *RenderSet) Has(view render.ViewType) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.index[view]
	return ok
}

func (rs *RenderSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.entries)
}

// Entries returns a copy in insertion order.
func (rs *RenderSet) Entries() []Entry {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Entry, len(rs.entries))
	copy(out, rs.entries)
	return out
}

// Views in insertion order.
func (rs *RenderSet) Views() []render.ViewType {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]render.ViewType, len(rs.entries))
	for i, e := range rs.entries {
		out[i] = e.View
	}
	return out
}

// Clone returns an independent copy.
func (rs *RenderSet) Clone() *RenderSet {
	return FromEntries(rs.Entries())
}

// Equal compares order and content.
func (rs *RenderSet) Equal(other *RenderSet) bool {
	a, b := rs.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Reset empties the set for a new generation.
func (rs *RenderSet) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.entries = nil
	rs.index = make(map[render.ViewType]int)
}

// Merge is the value form: it never mutates existing and returns existing
// itself when the view is already present.
func Merge(existing *RenderSet, view render.ViewType, url string) *RenderSet {
	if existing == nil {
		existing = New()
	}
	if existing.Has(view) || view == "" || url == "" {
		return existing
	}
	next := existing.Clone()
	next.Merge(view, url, FirstWins)
	return next
}
