// autolock switches the terminal input mode to match the program running in
// the focused pane.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bborn/autolock/internal/config"
	"github.com/bborn/autolock/internal/hooks"
	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/bborn/autolock/internal/sidechannel"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version = "dev"

	// Styles for CLI output
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	lockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "autolock",
		Short:         "Lock terminal input for full-screen programs",
		Long:          "autolock watches the focused pane and switches to locked mode while programs like vim or htop run there.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ~/.config/autolock/config.yaml)")
	rootCmd.PersistentFlags().StringArray("set", nil, "Override a setting as key=value (repeatable)")

	rootCmd.AddCommand(newRunCmd())

	// notify
	notifyCmd := &cobra.Command{
		Use:   "notify <command line...>",
		Short: "Tell a running autolock which program just started",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			channel, _ := cmd.Flags().GetString("channel")
			id, err := sidechannel.Send(cfg.SpoolDir, channel, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Println(dimStyle.Render("queued " + id + " in " + cfg.SpoolDir))
			}
			return nil
		},
	}
	notifyCmd.Flags().String("channel", reconcile.ProgramUpdateChannel, "Message name")
	notifyCmd.Flags().BoolP("verbose", "v", false, "Print the queued message id")
	rootCmd.AddCommand(notifyCmd)

	// classify
	classifyCmd := &cobra.Command{
		Use:   "classify <command line...>",
		Short: "Show which program and mode a command line maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			program, m := cfg.Classifier().ModeFor(strings.Join(args, " "))
			fmt.Println(formatClassification(program, m, term.IsTerminal(int(os.Stdout.Fd()))))
			return nil
		},
	}
	rootCmd.AddCommand(classifyCmd)

	// config
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := writeDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Wrote " + path))
			if dir, err := hooks.EnsureHooksDir(); err == nil {
				fmt.Println(dimStyle.Render("Hook scripts go in " + dir + " (mode.locked, mode.normal)"))
			}
			return nil
		},
	}
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config and applies --set
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	if len(sets) == 0 {
		return cfg, nil
	}
	pairs, err := config.ParsePairs(sets)
	if err != nil {
		return nil, err
	}
	unknown, err := cfg.ApplyPairs(pairs)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		fmt.Fprintln(os.Stderr, dimStyle.Render("ignoring unknown setting "+key))
	}
	return cfg, nil
}

func writeDefaultConfig(path string, force bool) error {
	if path == "" {
		return fmt.Errorf("no config directory")
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(config.GenerateDefaultYAML()), 0644)
}

func formatClassification(program string, m mode.InputMode, styled bool) string {
	if !styled {
		return program + "\t" + m.String()
	}
	modeText := successStyle.Render(m.String())
	if m.IsLocked() {
		modeText = lockedStyle.Render(m.String())
	}
	return boldStyle.Render(program) + " " + dimStyle.Render("→") + " " + modeText
}
