// Package registry remembers the input mode chosen for each terminal pane.
package registry

import (
	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
)

// Registry maps pane ids to their remembered mode. An entry lives from the
// pane's first focus until the host reports it closed. It has a single
// owner and is not safe for concurrent use.
type Registry struct {
	modes map[pane.ID]mode.InputMode
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{modes: make(map[pane.ID]mode.InputMode)}
}

// RegisterIfAbsent records m for id unless id already has an entry.
// It reports whether an entry was created.
func (r *Registry) RegisterIfAbsent(id pane.ID, m mode.InputMode) bool {
	if _, ok := r.modes[id]; ok {
		return false
	}
	r.modes[id] = m
	return true
}

// Get returns the remembered mode for id.
func (r *Registry) Get(id pane.ID) (mode.InputMode, bool) {
	m, ok := r.modes[id]
	return m, ok
}

// Set overwrites the mode for id.
func (r *Registry) Set(id pane.ID, m mode.InputMode) {
	r.modes[id] = m
}

// Remove forgets id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id pane.ID) {
	delete(r.modes, id)
}

// Len returns the number of tracked panes.
func (r *Registry) Len() int {
	return len(r.modes)
}

// Entries returns a copy of the registry contents.
func (r *Registry) Entries() map[pane.ID]mode.InputMode {
	out := make(map[pane.ID]mode.InputMode, len(r.modes))
	for id, m := range r.modes {
		out[id] = m
	}
	return out
}
