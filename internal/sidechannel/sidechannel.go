// Package sidechannel delivers named out-of-band messages to the daemon
// through a spool directory.
package sidechannel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const ext = ".msg"

// Envelope is the on-disk form of a message.
type Envelope struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

// Send drops a message into dir. The file appears atomically, so a watcher
// never reads a partial message.
func Send(dir, name, payload string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	env := Envelope{ID: uuid.NewString(), Name: name, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write message: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close message: %w", err)
	}
	final := filepath.Join(dir, env.ID+ext)
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publish message: %w", err)
	}
	return env.ID, nil
}

// Watcher turns spooled messages into notifications.
type Watcher struct {
	dir    string
	logger *log.Logger
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Watcher{dir: dir, logger: logger}
}

// Run delivers messages already waiting in the spool, then every new one,
// until ctx is done. Each file is removed once read.
func (w *Watcher) Run(ctx context.Context, out chan<- reconcile.Notification) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Debug("Watching spool", "dir", w.dir)

	// anything written before the watch was added
	pending, err := filepath.Glob(filepath.Join(w.dir, "*"+ext))
	if err != nil {
		return err
	}
	for _, path := range pending {
		if err := w.deliver(ctx, path, out); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !strings.HasSuffix(event.Name, ext) {
				continue
			}
			if err := w.deliver(ctx, event.Name, out); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Spool watch error", "error", err)
		}
	}
}

// deliver reads and removes one message file. Only context cancellation is
// returned as an error.
func (w *Watcher) deliver(ctx context.Context, path string, out chan<- reconcile.Notification) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Reading message failed", "path", path, "error", err)
			os.Remove(path)
		}
		return nil
	}
	os.Remove(path)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Name == "" {
		w.logger.Warn("Dropping malformed message", "path", path, "error", err)
		return nil
	}
	w.logger.Debug("Message received", "id", env.ID, "name", env.Name)

	select {
	case out <- reconcile.Message{Name: env.Name, Payload: env.Payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultDir returns the per-user spool directory.
func DefaultDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "autolock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("autolock-%d", os.Getuid()))
}
