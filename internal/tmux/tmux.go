package tmux

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
)

const cmdTimeout = 5 * time.Second

const paneFormat = "#{window_index}\t#{window_active}\t#{pane_id}\t#{pane_active}\t#{pane_current_command}\t#{pane_start_command}"

const clientFormat = "#{client_name}\t#{client_key_table}"

// Options configures a Client.
type Options struct {
	// Session limits polling to one session. Empty means tmux's current
	// session.
	Session     string
	NormalTable string
	LockedTable string
	Interval    time.Duration
	Runner      Runner
	Logger      *log.Logger
}

// Client is a tmux-backed host. It implements reconcile.Host and, through
// Run, produces the notifications the reconciler consumes.
type Client struct {
	session     string
	normalTable string
	lockedTable string
	interval    time.Duration
	runner      Runner
	logger      *log.Logger
}

// New creates a tmux client, filling unset options with defaults.
func New(opts Options) *Client {
	c := &Client{
		session:     opts.Session,
		normalTable: opts.NormalTable,
		lockedTable: opts.LockedTable,
		interval:    opts.Interval,
		runner:      opts.Runner,
		logger:      opts.Logger,
	}
	if c.normalTable == "" {
		c.normalTable = "root"
	}
	if c.lockedTable == "" {
		c.lockedTable = "locked"
	}
	if c.interval <= 0 {
		c.interval = 250 * time.Millisecond
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.logger == nil {
		c.logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return c
}

func (c *Client) tmux(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()
	return c.runner.Run(ctx, "tmux", args...)
}

// target builds a tmux command line with -t <session> right after the
// command name when a session is configured.
func (c *Client) target(command string, args ...string) []string {
	out := []string{command}
	if c.session != "" {
		out = append(out, "-t", c.session)
	}
	return append(out, args...)
}

// Panes returns the current pane snapshot and window list.
func (c *Client) Panes(ctx context.Context) (pane.Manifest, []pane.Tab, error) {
	out, err := c.tmux(ctx, c.target("list-panes", "-s", "-F", paneFormat)...)
	if err != nil {
		return nil, nil, fmt.Errorf("list panes: %w", err)
	}

	manifest := make(pane.Manifest)
	var tabs []pane.Tab
	seen := make(map[int]bool)
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 6)
		if len(fields) < 5 {
			c.logger.Debug("Skipping pane line", "line", line)
			continue
		}
		window, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		id, err := pane.ParseID(fields[2])
		if err != nil {
			continue
		}
		command := ""
		if len(fields) == 6 {
			command = unquote(fields[5])
		}
		if command == "" {
			command = fields[4]
		}

		manifest[window] = append(manifest[window], pane.Info{
			ID:      id,
			Focused: fields[3] == "1",
			Command: command,
		})
		if !seen[window] {
			seen[window] = true
			tabs = append(tabs, pane.Tab{Position: window, Active: fields[1] == "1"})
		}
	}
	return manifest, tabs, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}

type clientInfo struct {
	name  string
	table string
}

func (c *Client) clients(ctx context.Context) ([]clientInfo, error) {
	out, err := c.tmux(ctx, c.target("list-clients", "-F", clientFormat)...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var clients []clientInfo
	for _, line := range strings.Split(out, "\n") {
		name, table, ok := strings.Cut(line, "\t")
		if !ok || name == "" {
			continue
		}
		clients = append(clients, clientInfo{name: name, table: table})
	}
	return clients, nil
}

// Mode returns the mode of the first attached client. ok is false when no
// client is attached.
func (c *Client) Mode(ctx context.Context) (m mode.InputMode, ok bool, err error) {
	clients, err := c.clients(ctx)
	if err != nil || len(clients) == 0 {
		return "", false, err
	}
	return c.tableMode(clients[0].table), true, nil
}

func (c *Client) tableMode(table string) mode.InputMode {
	switch table {
	case c.normalTable, "":
		return mode.Normal
	case c.lockedTable:
		return mode.Locked
	default:
		return mode.InputMode(table)
	}
}

func (c *Client) modeTable(m mode.InputMode) string {
	switch m {
	case mode.Normal:
		return c.normalTable
	case mode.Locked:
		return c.lockedTable
	default:
		return m.String()
	}
}

// SwitchMode makes table the session's key table and moves every attached
// client into it.
func (c *Client) SwitchMode(m mode.InputMode) error {
	ctx := context.Background()
	table := c.modeTable(m)

	if _, err := c.tmux(ctx, c.target("set-option", "key-table", table)...); err != nil {
		return fmt.Errorf("set key table %s: %w", table, err)
	}
	clients, err := c.clients(ctx)
	if err != nil {
		return err
	}
	for _, cl := range clients {
		if _, err := c.tmux(ctx, "switch-client", "-c", cl.name, "-T", table); err != nil {
			return fmt.Errorf("switch client %s to %s: %w", cl.name, table, err)
		}
	}
	c.logger.Debug("Switched key table", "table", table, "clients", len(clients))
	return nil
}

// RequestPermission implements reconcile.Host. tmux has no permission
// model; Run reports a grant on start.
func (c *Client) RequestPermission(perms ...reconcile.Permission) error {
	return nil
}

// Subscribe implements reconcile.Host. Run always reports every kind.
func (c *Client) Subscribe(kinds ...reconcile.Kind) error {
	return nil
}

// HideSelf implements reconcile.Host. The daemon has no pane to hide.
func (c *Client) HideSelf() error {
	c.logger.Debug("Hide requested, nothing to hide under tmux")
	return nil
}
