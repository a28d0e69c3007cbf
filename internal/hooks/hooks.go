// Package hooks runs user scripts when autolock switches the input mode.
package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
)

// EventPrefix prefixes hook script names: mode.locked, mode.normal, ...
const EventPrefix = "mode."

// Runner executes hooks for mode switches.
type Runner struct {
	hooksDir string
	logger   *log.Logger
}

// NewWithLogger creates a hook runner that logs through logger.
// hooksDir is typically ~/.config/autolock/hooks/
func NewWithLogger(hooksDir string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "hooks"})
	}
	return &Runner{hooksDir: hooksDir, logger: logger}
}

// Path returns the script path for a mode.
func (r *Runner) Path(m mode.InputMode) string {
	return filepath.Join(r.hooksDir, EventPrefix+m.String())
}

// Run executes the hook for m, if one exists, in the background.
func (r *Runner) Run(m mode.InputMode, paneID string) {
	if r.hooksDir == "" {
		return
	}

	hookPath := r.Path(m)
	if _, err := os.Stat(hookPath); os.IsNotExist(err) {
		return
	}

	env := append(os.Environ(),
		fmt.Sprintf("AUTOLOCK_MODE=%s", m),
		fmt.Sprintf("AUTOLOCK_PANE=%s", paneID),
		fmt.Sprintf("AUTOLOCK_TIMESTAMP=%s", time.Now().Format(time.RFC3339)),
	)

	// Run in background, don't block the event loop
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cmd := exec.CommandContext(ctx, hookPath)
		cmd.Env = env
		output, err := cmd.CombinedOutput()
		if err != nil {
			r.logger.Error("Hook failed", "mode", m, "error", err, "output", strings.TrimSpace(string(output)))
		} else {
			r.logger.Debug("Hook executed", "mode", m)
		}
	}()
}

// Host wraps a reconcile.Host and runs the matching hook after every
// successful switch request.
type Host struct {
	reconcile.Host
	runner  *Runner
	focused func() string
}

// Wrap decorates h. focused reports the pane the switch is made for; it may
// be nil.
func (r *Runner) Wrap(h reconcile.Host, focused func() string) *Host {
	return &Host{Host: h, runner: r, focused: focused}
}

// SwitchMode forwards the request and then fires the hook.
func (h *Host) SwitchMode(m mode.InputMode) error {
	if err := h.Host.SwitchMode(m); err != nil {
		return err
	}
	paneID := ""
	if h.focused != nil {
		paneID = h.focused()
	}
	h.runner.Run(m, paneID)
	return nil
}

// EnsureHooksDir creates the hooks directory if it doesn't exist.
func EnsureHooksDir() (string, error) {
	hooksDir := DefaultHooksDir()
	if hooksDir == "" {
		return "", fmt.Errorf("no config directory")
	}
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return "", err
	}
	return hooksDir, nil
}

// DefaultHooksDir returns the default hooks directory path.
func DefaultHooksDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "autolock", "hooks")
}
