// Package daemon runs the reconciler's event loop.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
)

// Source produces notifications until ctx is done or it runs dry.
type Source interface {
	Run(ctx context.Context, out chan<- reconcile.Notification) error
}

// Handler consumes notifications one at a time.
type Handler interface {
	Start()
	Handle(n reconcile.Notification)
	State() reconcile.State
}

// Loop feeds every source into a single handler.
type Loop struct {
	handler        Handler
	sources        []Source
	logger         *log.Logger
	debugStatePath string
}

// Options configures a Loop.
type Options struct {
	Logger *log.Logger
	// DebugStatePath, when set, receives the handler state as JSON after
	// every notification.
	DebugStatePath string
}

// New creates a loop.
func New(h Handler, sources []Source, opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Loop{
		handler:        h,
		sources:        sources,
		logger:         logger,
		debugStatePath: opts.DebugStatePath,
	}
}

// Run starts the handler and all sources, then handles notifications in
// arrival order. The loop ends when ctx is done or any source returns; the
// first source error other than cancellation is returned.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifications := make(chan reconcile.Notification, 64)
	errCh := make(chan error, len(l.sources))

	for _, src := range l.sources {
		go func(src Source) {
			defer cancel()
			if err := src.Run(ctx, notifications); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(src)
	}

	l.handler.Start()
	l.writeState()

	for {
		select {
		case n := <-notifications:
			l.handle(n)
		case <-ctx.Done():
			// handle what the sources queued before stopping
			for {
				select {
				case n := <-notifications:
					l.handle(n)
				default:
					return firstErr(errCh)
				}
			}
		}
	}
}

func (l *Loop) handle(n reconcile.Notification) {
	l.logger.Debug("Notification", "kind", n.Kind())
	l.handler.Handle(n)
	l.writeState()
}

func firstErr(errCh chan error) error {
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (l *Loop) writeState() {
	if l.debugStatePath == "" {
		return
	}
	data, err := json.MarshalIndent(l.handler.State(), "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(l.debugStatePath, data, 0644); err != nil {
		l.logger.Warn("Writing debug state failed", "path", l.debugStatePath, "error", err)
	}
}
