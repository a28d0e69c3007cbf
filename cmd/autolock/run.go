package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bborn/autolock/internal/bridge"
	"github.com/bborn/autolock/internal/config"
	"github.com/bborn/autolock/internal/daemon"
	"github.com/bborn/autolock/internal/hooks"
	"github.com/bborn/autolock/internal/host"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/bborn/autolock/internal/sidechannel"
	"github.com/bborn/autolock/internal/tmux"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Host kinds accepted by run --host.
const (
	hostStdio = "stdio"
	hostTmux  = "tmux"
	hostWS    = "ws"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mode reconciler",
		Long: `Run the mode reconciler against a host.

  stdio  JSON notifications on stdin, requests on stdout (plugin shim)
  ws     a plugin shim connects over websocket
  tmux   drive tmux key tables directly`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("host")
			debug, _ := cmd.Flags().GetBool("debug")
			debugStatePath, _ := cmd.Flags().GetString("debug-state-file")

			logger := log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				Prefix:          "autolock",
				Level:           cfg.Level(),
			})
			if debug {
				logger.SetLevel(log.DebugLevel)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg, kind, os.Stdin, os.Stdout, logger, debugStatePath)
		},
	}
	runCmd.Flags().String("host", hostStdio, "Host to drive: stdio, ws or tmux")
	runCmd.Flags().Bool("debug", false, "Log at debug level")
	runCmd.Flags().String("debug-state-file", "", "Path to write debug state JSON on update")
	return runCmd
}

// buildHost returns the host for kind and the sources that feed it.
func buildHost(cfg *config.Config, kind string, in io.Reader, out io.Writer, logger *log.Logger) (reconcile.Host, []daemon.Source, error) {
	switch kind {
	case hostStdio:
		return host.New(host.NewWriterSender(out)),
			[]daemon.Source{host.NewReader(in, logger.WithPrefix("stdio"))}, nil
	case hostWS:
		srv := bridge.New(cfg.Bridge.Listen, logger.WithPrefix("bridge"))
		return host.New(srv), []daemon.Source{srv}, nil
	case hostTmux:
		client := tmux.New(tmux.Options{
			Session:     cfg.Tmux.Session,
			NormalTable: cfg.Tmux.NormalKeyTable,
			LockedTable: cfg.Tmux.LockedKeyTable,
			Interval:    cfg.Tmux.PollInterval,
			Logger:      logger.WithPrefix("tmux"),
		})
		return client, []daemon.Source{client}, nil
	default:
		return nil, nil, fmt.Errorf("unknown host %q (want %s, %s or %s)", kind, hostStdio, hostWS, hostTmux)
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, kind string, in io.Reader, out io.Writer, logger *log.Logger, debugStatePath string) error {
	h, sources, err := buildHost(cfg, kind, in, out, logger)
	if err != nil {
		return err
	}

	var r *reconcile.Reconciler
	focused := func() string {
		if id, ok := r.Focused(); ok {
			return id.String()
		}
		return ""
	}
	wrapped := hooks.NewWithLogger(cfg.HooksDir, logger.WithPrefix("hooks")).Wrap(h, focused)

	r = reconcile.New(cfg.Classifier(), wrapped, reconcile.Options{
		Hide:   cfg.Hide,
		Logger: logger.WithPrefix("reconcile"),
	})

	if cfg.SpoolDir != "" {
		sources = append(sources, sidechannel.NewWatcher(cfg.SpoolDir, logger.WithPrefix("spool")))
	}

	logger.Info("Starting autolock",
		"host", kind,
		"locked_programs", len(cfg.LockedPrograms()),
		"spool", cfg.SpoolDir)

	loop := daemon.New(r, sources, daemon.Options{
		Logger:         logger.WithPrefix("loop"),
		DebugStatePath: debugStatePath,
	})
	if err := loop.Run(ctx); err != nil {
		return err
	}
	logger.Info("Stopped")
	return nil
}
