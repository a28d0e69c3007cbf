// Package config provides autolock configuration from a YAML file and host
// key/value pairs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bborn/autolock/internal/classify"
	"github.com/bborn/autolock/internal/hooks"
	"github.com/bborn/autolock/internal/sidechannel"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Setting keys, shared by the YAML file and host key/value pairs.
const (
	KeyLockedModePrograms   = "locked_mode_programs"
	KeyProgramsInLockedMode = "programs_in_locked_mode"
	KeyHide                 = "hide"
	KeyDefaultShell         = "default_shell"
	KeyLogLevel             = "log_level"
	KeySpoolDir             = "spool_dir"
	KeyHooksDir             = "hooks_dir"
	KeyTmuxSession          = "tmux.session"
	KeyTmuxPollInterval     = "tmux.poll_interval"
	KeyTmuxLockedKeyTable   = "tmux.locked_key_table"
	KeyTmuxNormalKeyTable   = "tmux.normal_key_table"
	KeyBridgeListen         = "bridge.listen"
)

const defaultPollInterval = 250 * time.Millisecond

// Config holds autolock settings.
type Config struct {
	// LockedModePrograms is a comma-separated list of programs that start
	// in locked mode.
	LockedModePrograms string `yaml:"locked_mode_programs"`
	// ProgramsInLockedMode is an alias of LockedModePrograms; both lists
	// are merged.
	ProgramsInLockedMode string       `yaml:"programs_in_locked_mode,omitempty"`
	Hide                 bool         `yaml:"hide"`
	DefaultShell         string       `yaml:"default_shell"`
	LogLevel             string       `yaml:"log_level"`
	SpoolDir             string       `yaml:"spool_dir"`
	HooksDir             string       `yaml:"hooks_dir"`
	Tmux                 TmuxConfig   `yaml:"tmux"`
	Bridge               BridgeConfig `yaml:"bridge"`
}

// TmuxConfig configures the tmux host.
type TmuxConfig struct {
	Session        string        `yaml:"session"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	LockedKeyTable string        `yaml:"locked_key_table"`
	NormalKeyTable string        `yaml:"normal_key_table"`
}

// BridgeConfig configures the websocket bridge.
type BridgeConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	shell := "bash"
	if s := os.Getenv("SHELL"); s != "" {
		shell = filepath.Base(s)
	}
	return &Config{
		DefaultShell: shell,
		LogLevel:     "info",
		SpoolDir:     sidechannel.DefaultDir(),
		HooksDir:     hooks.DefaultHooksDir(),
		Tmux: TmuxConfig{
			PollInterval:   defaultPollInterval,
			LockedKeyTable: "locked",
			NormalKeyTable: "root",
		},
		Bridge: BridgeConfig{Listen: "127.0.0.1:7878"},
	}
}

// DefaultPath returns the default path for the config file.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "autolock", "config.yaml")
}

// Load reads the config at path over the defaults. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills invalid values with defaults and rejects unusable ones.
func (c *Config) Validate() error {
	if c.Tmux.PollInterval <= 0 {
		c.Tmux.PollInterval = defaultPollInterval
	}
	if c.Tmux.LockedKeyTable == "" {
		c.Tmux.LockedKeyTable = "locked"
	}
	if c.Tmux.NormalKeyTable == "" {
		c.Tmux.NormalKeyTable = "root"
	}
	if c.Tmux.LockedKeyTable == c.Tmux.NormalKeyTable {
		return fmt.Errorf("tmux locked and normal key tables are both %q", c.Tmux.LockedKeyTable)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// ApplyPairs applies host key/value settings. Keys it does not know are
// returned, sorted, so the caller can report them.
func (c *Config) ApplyPairs(pairs map[string]string) ([]string, error) {
	var unknown []string
	for key, value := range pairs {
		value = strings.TrimSpace(value)
		switch key {
		case KeyLockedModePrograms:
			c.LockedModePrograms = value
		case KeyProgramsInLockedMode:
			c.ProgramsInLockedMode = value
		case KeyHide:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			c.Hide = b
		case KeyDefaultShell:
			c.DefaultShell = value
		case KeyLogLevel:
			c.LogLevel = value
		case KeySpoolDir:
			c.SpoolDir = value
		case KeyHooksDir:
			c.HooksDir = value
		case KeyTmuxSession:
			c.Tmux.Session = value
		case KeyTmuxPollInterval:
			d, err := time.ParseDuration(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			c.Tmux.PollInterval = d
		case KeyTmuxLockedKeyTable:
			c.Tmux.LockedKeyTable = value
		case KeyTmuxNormalKeyTable:
			c.Tmux.NormalKeyTable = value
		case KeyBridgeListen:
			c.Bridge.Listen = value
		default:
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, c.Validate()
}

// ParsePairs splits key=value arguments.
func ParsePairs(args []string) (map[string]string, error) {
	pairs := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		pairs[key] = value
	}
	return pairs, nil
}

// LockedPrograms merges both program list keys.
func (c *Config) LockedPrograms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range append(classify.ParseList(c.LockedModePrograms), classify.ParseList(c.ProgramsInLockedMode)...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Classifier builds the program classifier for this config.
func (c *Config) Classifier() *classify.Classifier {
	return classify.New(c.LockedPrograms(), c.DefaultShell)
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// YAML renders the config.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateDefaultYAML returns a commented example config file.
func GenerateDefaultYAML() string {
	return `# autolock configuration
#
# Programs that start in locked mode, comma-separated. Matching uses the
# program name only, with sudo/doas unwrapped.
locked_mode_programs: "vim,nvim,hx,helix,emacs,nano,htop,btop,lazygit,tig"

# Hide the plugin pane once permissions are granted.
hide: true

# Program assumed when a pane reports no command.
# default_shell: zsh

log_level: info

# Directory watched for out-of-band messages (autolock notify).
# spool_dir: /run/user/1000/autolock

# Scripts named mode.locked / mode.normal run after each switch.
# hooks_dir: ~/.config/autolock/hooks

tmux:
  # session: main
  poll_interval: 250ms
  locked_key_table: locked
  normal_key_table: root

bridge:
  listen: 127.0.0.1:7878
`
}
