// Package reconcile keeps the host's input mode in line with the program
// running in the focused pane, without overriding explicit user choices.
package reconcile

import (
	"os"
	"sort"

	"github.com/bborn/autolock/internal/classify"
	"github.com/bborn/autolock/internal/focus"
	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
	"github.com/bborn/autolock/internal/registry"
	"github.com/charmbracelet/log"
)

// Options configures a Reconciler.
type Options struct {
	// Hide requests the hidden state once permissions are granted.
	Hide   bool
	Logger *log.Logger
}

// Reconciler owns all per-pane mode state. Notifications must be handed to
// Handle one at a time; it is not safe for concurrent use.
type Reconciler struct {
	classifier *classify.Classifier
	host       Host
	registry   *registry.Registry
	focus      *focus.Tracker
	hide       bool
	logger     *log.Logger

	initialized bool
	current     mode.InputMode
	focused     pane.ID
	hasFocus    bool
	switches    int
}

// New creates a reconciler with empty state. The host starts in Normal
// mode until it reports otherwise.
func New(c *classify.Classifier, h Host, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Reconciler{
		classifier: c,
		host:       h,
		registry:   registry.New(),
		focus:      focus.New(),
		hide:       opts.Hide,
		logger:     logger,
		current:    mode.Normal,
	}
}

// Start requests permissions and subscribes to notifications. Call it once
// before the first Handle.
func (r *Reconciler) Start() {
	if err := r.host.RequestPermission(ReadApplicationState, ChangeApplicationState); err != nil {
		r.logger.Error("Permission request failed", "error", err)
	}
	if err := r.host.Subscribe(Kinds...); err != nil {
		r.logger.Error("Subscribe failed", "error", err)
	}
}

// Handle processes one notification to completion.
func (r *Reconciler) Handle(n Notification) {
	switch n := n.(type) {
	case PermissionResult:
		r.onPermission(n.Granted)
	case ModeUpdate:
		r.onModeUpdate(n.Mode)
	case TabUpdate:
		r.onTabUpdate(n.Tabs)
	case PaneUpdate:
		r.onPaneUpdate(n.Panes)
	case PaneClosed:
		r.onPaneClosed(n.Pane)
	case Message:
		r.onMessage(n)
	default:
		r.logger.Warn("Unknown notification", "kind", n.Kind())
	}
}

func (r *Reconciler) onPermission(granted bool) {
	if !granted {
		r.logger.Warn("Permissions denied, mode switches will be rejected by the host")
		return
	}
	r.initialized = true
	if r.hide {
		if err := r.host.HideSelf(); err != nil {
			r.logger.Error("Hide request failed", "error", err)
		}
	}
}

func (r *Reconciler) onModeUpdate(next mode.InputMode) {
	prev := r.current
	r.current = next

	if !r.hasFocus {
		return
	}
	p := r.focused

	switch {
	case next.IsLocked(), next.IsNormal() && prev.Managed():
		// the user toggled between the managed modes: remember it
		r.registry.Set(p, next)
		r.logger.Debug("Remembered mode", "pane", p, "mode", next, "previous", prev)
	case next.IsNormal():
		// leaving a third-party mode drops the host back to Normal;
		// restore what this pane had instead
		if m, ok := r.registry.Get(p); ok {
			r.logger.Debug("Restoring pane mode", "pane", p, "mode", m, "previous", prev)
			r.switchTo(m)
		}
	}
}

func (r *Reconciler) onTabUpdate(tabs []pane.Tab) {
	position, ok := pane.ActiveTab(tabs)
	if !ok {
		return
	}
	if !r.focus.SetActiveTab(position) {
		return
	}
	r.logger.Debug("Active tab changed", "position", position)
	if r.focus.HasSnapshot() {
		r.reconcileFocus()
	}
}

func (r *Reconciler) onPaneUpdate(m pane.Manifest) {
	r.focus.Store(m)
	r.reconcileFocus()
}

func (r *Reconciler) reconcileFocus() {
	p, ok := r.focus.Resolve()
	if !ok {
		return
	}

	if _, known := r.registry.Get(p.ID); !known {
		program, m := r.classifier.ModeFor(p.Command)
		r.registry.RegisterIfAbsent(p.ID, m)
		r.logger.Debug("Registered pane", "pane", p.ID, "program", program, "mode", m)
	}

	if r.hasFocus && r.focused == p.ID {
		return
	}

	r.focused = p.ID
	r.hasFocus = true

	if !r.current.Managed() {
		r.logger.Debug("Focus moved during third-party mode", "pane", p.ID, "mode", r.current)
		return
	}
	if m, ok := r.registry.Get(p.ID); ok {
		r.switchTo(m)
	}
}

func (r *Reconciler) onPaneClosed(id pane.ID) {
	r.registry.Remove(id)
	if r.hasFocus && r.focused == id {
		// a pane reusing the id must count as a focus change
		r.hasFocus = false
	}
	r.logger.Debug("Pane closed", "pane", id)
}

func (r *Reconciler) onMessage(msg Message) {
	if msg.Name != ProgramUpdateChannel {
		r.logger.Debug("Ignoring message", "name", msg.Name)
		return
	}
	program, m := r.classifier.ModeFor(msg.Payload)
	r.logger.Debug("Program update", "program", program, "mode", m)
	r.switchTo(m)
}

func (r *Reconciler) switchTo(m mode.InputMode) {
	r.switches++
	r.logger.Info("Switching mode", "mode", m, "current", r.current)
	if err := r.host.SwitchMode(m); err != nil {
		r.logger.Error("Mode switch failed", "mode", m, "error", err)
	}
}

// State is a point-in-time view of the reconciler for diagnostics.
type State struct {
	Initialized bool              `json:"initialized"`
	Mode        string            `json:"mode"`
	FocusedPane string            `json:"focused_pane,omitempty"`
	ActiveTab   int               `json:"active_tab"`
	HasSnapshot bool              `json:"has_snapshot"`
	Panes       map[string]string `json:"panes"`
	Switches    int               `json:"switches"`
	Locked      []string          `json:"locked_programs"`
}

// State returns a diagnostic snapshot.
func (r *Reconciler) State() State {
	s := State{
		Initialized: r.initialized,
		Mode:        r.current.String(),
		ActiveTab:   r.focus.ActiveTab(),
		HasSnapshot: r.focus.HasSnapshot(),
		Panes:       make(map[string]string),
		Switches:    r.switches,
		Locked:      r.classifier.Programs(),
	}
	if r.hasFocus {
		s.FocusedPane = r.focused.String()
	}
	for id, m := range r.registry.Entries() {
		s.Panes[id.String()] = m.String()
	}
	sort.Strings(s.Locked)
	return s
}

// Mode returns the last observed global mode.
func (r *Reconciler) Mode() mode.InputMode {
	return r.current
}

// Focused returns the tracked focused pane.
func (r *Reconciler) Focused() (pane.ID, bool) {
	return r.focused, r.hasFocus
}

// PaneMode returns the remembered mode for a pane.
func (r *Reconciler) PaneMode(id pane.ID) (mode.InputMode, bool) {
	return r.registry.Get(id)
}
