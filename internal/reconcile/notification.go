package reconcile

import (
	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
)

// Kind discriminates notifications. The values double as wire names.
type Kind string

// Notification kinds.
const (
	KindPermission Kind = "permission_result"
	KindMode       Kind = "mode_update"
	KindTabs       Kind = "tab_update"
	KindPanes      Kind = "pane_update"
	KindPaneClosed Kind = "pane_closed"
	KindMessage    Kind = "message"
)

// Kinds lists every notification kind the reconciler subscribes to.
var Kinds = []Kind{KindMode, KindTabs, KindPanes, KindPaneClosed, KindPermission, KindMessage}

// ProgramUpdateChannel is the side channel carrying out-of-band command
// lines.
const ProgramUpdateChannel = "program_update"

// Notification is one inbound event from the host. The concrete types below
// are the only implementations.
type Notification interface {
	Kind() Kind
}

// PermissionResult reports the outcome of the permission request.
type PermissionResult struct {
	Granted bool
}

// ModeUpdate reports the host's current global input mode.
type ModeUpdate struct {
	Mode mode.InputMode
}

// TabUpdate carries the tab list; only the active entry matters.
type TabUpdate struct {
	Tabs []pane.Tab
}

// PaneUpdate carries a full pane snapshot.
type PaneUpdate struct {
	Panes pane.Manifest
}

// PaneClosed reports that a pane is gone.
type PaneClosed struct {
	Pane pane.ID
}

// Message is a named side-channel message.
type Message struct {
	Name    string
	Payload string
}

func (PermissionResult) Kind() Kind { return KindPermission }
func (ModeUpdate) Kind() Kind       { return KindMode }
func (TabUpdate) Kind() Kind        { return KindTabs }
func (PaneUpdate) Kind() Kind       { return KindPanes }
func (PaneClosed) Kind() Kind       { return KindPaneClosed }
func (Message) Kind() Kind          { return KindMessage }

// Permission is a capability requested from the host.
type Permission string

// Permissions needed to observe and change the global mode.
const (
	ReadApplicationState   Permission = "read_application_state"
	ChangeApplicationState Permission = "change_application_state"
)

// Host receives outbound requests. Every request is fire-and-forget; a
// switch is confirmed only by a later ModeUpdate.
type Host interface {
	RequestPermission(perms ...Permission) error
	Subscribe(kinds ...Kind) error
	SwitchMode(m mode.InputMode) error
	HideSelf() error
}
