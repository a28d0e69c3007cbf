// Package mode defines the multiplexer's global input mode.
package mode

import "strings"

// InputMode is a host input mode. Normal and Locked are the two modes this
// program acts on; every other value is carried through opaquely.
type InputMode string

// Known modes.
const (
	Normal InputMode = "normal"
	Locked InputMode = "locked"
)

// Parse normalizes a host mode name. Empty input is treated as Normal.
func Parse(s string) InputMode {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Normal
	}
	return InputMode(s)
}

// String returns the mode name.
func (m InputMode) String() string {
	return string(m)
}

// IsNormal reports whether m is the navigation mode.
func (m InputMode) IsNormal() bool {
	return m == Normal
}

// IsLocked reports whether m is the passthrough mode.
func (m InputMode) IsLocked() bool {
	return m == Locked
}

// Managed reports whether m is one of the modes this program switches
// between. While the host sits in any other mode, automatic switching is
// held back.
func (m InputMode) Managed() bool {
	return m == Normal || m == Locked
}
