package sidechannel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bborn/autolock/internal/reconcile"
)

func receive(t *testing.T, out <-chan reconcile.Notification) reconcile.Notification {
	t.Helper()
	select {
	case n := <-out:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func startWatcher(t *testing.T, dir string) <-chan reconcile.Notification {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	out := make(chan reconcile.Notification, 8)
	go NewWatcher(dir, nil).Run(ctx, out)
	return out
}

func TestSendWritesEnvelope(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	id, err := Send(dir, reconcile.ProgramUpdateChannel, "vim notes")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, id+ext)); err != nil {
		t.Errorf("message file missing: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWatcherDeliversPendingMessages(t *testing.T) {
	dir := t.TempDir()
	if _, err := Send(dir, reconcile.ProgramUpdateChannel, "nvim"); err != nil {
		t.Fatal(err)
	}

	out := startWatcher(t, dir)
	n := receive(t, out)
	want := reconcile.Message{Name: reconcile.ProgramUpdateChannel, Payload: "nvim"}
	if n != want {
		t.Errorf("got %#v, want %#v", n, want)
	}
}

func TestWatcherDeliversNewMessages(t *testing.T) {
	dir := t.TempDir()
	out := startWatcher(t, dir)

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	if _, err := Send(dir, reconcile.ProgramUpdateChannel, "sudo vim /etc/hosts"); err != nil {
		t.Fatal(err)
	}

	msg := receive(t, out).(reconcile.Message)
	if msg.Payload != "sudo vim /etc/hosts" {
		t.Errorf("payload = %q", msg.Payload)
	}

	// file is consumed
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		files, _ := filepath.Glob(filepath.Join(dir, "*"+ext))
		if len(files) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("message file was not removed")
}

func TestWatcherDropsMalformedMessages(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad"+ext), []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Send(dir, "other", "x"); err != nil {
		t.Fatal(err)
	}

	out := startWatcher(t, dir)
	if msg := receive(t, out).(reconcile.Message); msg.Name != "other" {
		t.Errorf("got %#v", msg)
	}
}

func TestDefaultDirUsesRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := DefaultDir(); got != "/run/user/1000/autolock" {
		t.Errorf("got %q", got)
	}
}
