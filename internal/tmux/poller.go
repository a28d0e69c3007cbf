package tmux

import (
	"context"
	"time"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
	"github.com/bborn/autolock/internal/reconcile"
)

// poller diffs consecutive tmux observations into notifications.
type poller struct {
	c *Client

	mode      mode.InputMode
	haveMode  bool
	activeTab int
	haveTab   bool
	panes     pane.Manifest
	havePanes bool
}

// Run reports a permission grant, then polls tmux every interval until ctx
// is done. tmux errors are logged and the next tick retries.
func (c *Client) Run(ctx context.Context, out chan<- reconcile.Notification) error {
	p := &poller{c: c}
	if err := emit(ctx, out, reconcile.PermissionResult{Granted: true}); err != nil {
		return err
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		for _, n := range p.poll(ctx) {
			if err := emit(ctx, out, n); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func emit(ctx context.Context, out chan<- reconcile.Notification, n reconcile.Notification) error {
	select {
	case out <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poll observes tmux once. The tab change goes out before the new snapshot
// so focus is first resolved against the panes already known for that
// window.
func (p *poller) poll(ctx context.Context) []reconcile.Notification {
	var out []reconcile.Notification

	m, ok, err := p.c.Mode(ctx)
	if err != nil {
		p.c.logger.Warn("Reading key table failed", "error", err)
	} else if ok && (!p.haveMode || m != p.mode) {
		p.mode, p.haveMode = m, true
		out = append(out, reconcile.ModeUpdate{Mode: m})
	}

	manifest, tabs, err := p.c.Panes(ctx)
	if err != nil {
		p.c.logger.Warn("Listing panes failed", "error", err)
		return out
	}

	if active, ok := pane.ActiveTab(tabs); ok && (!p.haveTab || active != p.activeTab) {
		p.activeTab, p.haveTab = active, true
		out = append(out, reconcile.TabUpdate{Tabs: tabs})
	}

	if p.havePanes {
		current := manifest.IDs()
		for id := range p.panes.IDs() {
			if _, ok := current[id]; !ok {
				out = append(out, reconcile.PaneClosed{Pane: id})
			}
		}
	}

	if !p.havePanes || !manifest.Equal(p.panes) {
		p.panes, p.havePanes = manifest, true
		out = append(out, reconcile.PaneUpdate{Panes: manifest})
	}
	return out
}
