package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
)

// waitForFile polls for a file to exist, with timeout.
func waitForFile(t *testing.T, path string, timeout time.Duration) ([]byte, error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		content, err := os.ReadFile(path)
		if err == nil && len(content) > 0 {
			return content, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, lastErr
}

type stubHost struct {
	switched []mode.InputMode
	err      error
}

func (s *stubHost) RequestPermission(...reconcile.Permission) error { return nil }
func (s *stubHost) Subscribe(...reconcile.Kind) error               { return nil }
func (s *stubHost) HideSelf() error                                 { return nil }
func (s *stubHost) SwitchMode(m mode.InputMode) error {
	s.switched = append(s.switched, m)
	return s.err
}

func silentRunner(dir string) *Runner {
	return NewWithLogger(dir, log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel}))
}

func TestRunExecutesHookWithEnvironment(t *testing.T) {
	hooksDir := t.TempDir()
	marker := filepath.Join(hooksDir, "marker")
	script := "#!/bin/sh\necho \"$AUTOLOCK_MODE:$AUTOLOCK_PANE\" > \"" + marker + "\"\n"

	r := silentRunner(hooksDir)
	if err := os.WriteFile(r.Path(mode.Locked), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	r.Run(mode.Locked, "terminal_3")

	content, err := waitForFile(t, marker, 5*time.Second)
	if err != nil {
		t.Fatalf("hook didn't run: %v", err)
	}
	if string(content) != "locked:terminal_3\n" {
		t.Errorf("unexpected hook output: %q", content)
	}
}

func TestRunWithoutHookIsNoop(t *testing.T) {
	r := silentRunner(t.TempDir())
	r.Run(mode.Normal, "")
	silentRunner("").Run(mode.Normal, "")
}

func TestWrapRunsHookAfterSwitch(t *testing.T) {
	hooksDir := t.TempDir()
	marker := filepath.Join(hooksDir, "marker")
	r := silentRunner(hooksDir)
	script := "#!/bin/sh\necho \"$AUTOLOCK_PANE\" > \"" + marker + "\"\n"
	if err := os.WriteFile(r.Path(mode.Normal), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	inner := &stubHost{}
	h := r.Wrap(inner, func() string { return "terminal_1" })
	if err := h.SwitchMode(mode.Normal); err != nil {
		t.Fatal(err)
	}
	if len(inner.switched) != 1 {
		t.Fatalf("inner host saw %v", inner.switched)
	}
	content, err := waitForFile(t, marker, 5*time.Second)
	if err != nil || string(content) != "terminal_1\n" {
		t.Errorf("hook output = %q, %v", content, err)
	}
}

func TestWrapSkipsHookOnFailure(t *testing.T) {
	hooksDir := t.TempDir()
	marker := filepath.Join(hooksDir, "marker")
	r := silentRunner(hooksDir)
	script := "#!/bin/sh\ntouch \"" + marker + "\"\n"
	os.WriteFile(r.Path(mode.Locked), []byte(script), 0755)

	h := r.Wrap(&stubHost{err: errors.New("boom")}, nil)
	if err := h.SwitchMode(mode.Locked); err == nil {
		t.Fatal("expected error from inner host")
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("hook must not run when the switch failed")
	}
}

func TestNewWithLoggerDefaultsLogger(t *testing.T) {
	r := NewWithLogger(t.TempDir(), nil)
	if r.logger == nil {
		t.Fatal("runner should fall back to a default logger")
	}
	r.Run(mode.Locked, "terminal_1")
}
