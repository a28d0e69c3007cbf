// Package pane describes multiplexer panes as reported by the host.
package pane

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a pane. Terminal and plugin panes have separate number
// spaces, so the kind is part of the identity.
type ID struct {
	N      uint32
	Plugin bool
}

// Terminal returns the id of terminal pane n.
func Terminal(n uint32) ID { return ID{N: n} }

// Plugin returns the id of plugin pane n.
func Plugin(n uint32) ID { return ID{N: n, Plugin: true} }

// String renders the id as terminal_<n> or plugin_<n>.
func (id ID) String() string {
	if id.Plugin {
		return fmt.Sprintf("plugin_%d", id.N)
	}
	return fmt.Sprintf("terminal_%d", id.N)
}

// ParseID parses terminal_<n>, plugin_<n>, a tmux-style %<n>, or a bare
// number (terminal).
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	var id ID
	switch {
	case strings.HasPrefix(s, "terminal_"):
		s = strings.TrimPrefix(s, "terminal_")
	case strings.HasPrefix(s, "plugin_"):
		s = strings.TrimPrefix(s, "plugin_")
		id.Plugin = true
	case strings.HasPrefix(s, "%"):
		s = strings.TrimPrefix(s, "%")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("parse pane id %q: %w", s, err)
	}
	id.N = uint32(n)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalJSON accepts the string forms ParseID understands and bare JSON
// numbers, which name terminal panes.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return id.UnmarshalText([]byte(s))
	}
	var n uint32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("parse pane id %s: %w", b, err)
	}
	*id = Terminal(n)
	return nil
}

// Info is one pane descriptor from a snapshot.
type Info struct {
	ID      ID
	Focused bool
	// Command is the invocation command line, empty when the host did
	// not report one.
	Command string
}

// Tab is one entry of a tab list.
type Tab struct {
	Position int
	Active   bool
}

// Manifest is a full pane snapshot keyed by tab position.
type Manifest map[int][]Info

// FocusedIn returns the focused terminal pane of the tab at position.
func (m Manifest) FocusedIn(position int) (Info, bool) {
	for _, p := range m[position] {
		if p.Focused && !p.ID.Plugin {
			return p, true
		}
	}
	return Info{}, false
}

// IDs returns every pane id in the manifest.
func (m Manifest) IDs() map[ID]struct{} {
	ids := make(map[ID]struct{})
	for _, panes := range m {
		for _, p := range panes {
			ids[p.ID] = struct{}{}
		}
	}
	return ids
}

// Equal reports whether two manifests describe the same panes in the same
// order.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for pos, panes := range m {
		o, ok := other[pos]
		if !ok || len(o) != len(panes) {
			return false
		}
		for i := range panes {
			if panes[i] != o[i] {
				return false
			}
		}
	}
	return true
}

// ActiveTab returns the position of the first tab flagged active.
func ActiveTab(tabs []Tab) (int, bool) {
	for _, t := range tabs {
		if t.Active {
			return t.Position, true
		}
	}
	return 0, false
}
