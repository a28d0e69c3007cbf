// Package focus derives the focused terminal pane from tab and pane
// snapshots.
package focus

import "github.com/bborn/autolock/internal/pane"

// Tracker holds the active tab position and the last full pane snapshot.
type Tracker struct {
	activeTab int
	snapshot  pane.Manifest
	hasSnap   bool
}

// New returns a tracker with tab 0 active and no snapshot.
func New() *Tracker {
	return &Tracker{}
}

// ActiveTab returns the tracked tab position.
func (t *Tracker) ActiveTab() int {
	return t.activeTab
}

// SetActiveTab records a new active tab. It reports whether the position
// changed.
func (t *Tracker) SetActiveTab(position int) bool {
	if position == t.activeTab {
		return false
	}
	t.activeTab = position
	return true
}

// Store replaces the last snapshot.
func (t *Tracker) Store(m pane.Manifest) {
	t.snapshot = m
	t.hasSnap = true
}

// HasSnapshot reports whether any snapshot has been stored.
func (t *Tracker) HasSnapshot() bool {
	return t.hasSnap
}

// Resolve returns the focused, non-plugin pane of the active tab in the
// last snapshot.
func (t *Tracker) Resolve() (pane.Info, bool) {
	if !t.hasSnap {
		return pane.Info{}, false
	}
	return t.snapshot.FocusedIn(t.activeTab)
}
