// Package classify maps command lines to program names and default modes.
package classify

import (
	"path"
	"strings"

	"github.com/bborn/autolock/internal/mode"
)

// Wrappers that run another program with elevated privileges. The program
// they wrap decides the mode. Each maps to the options that consume the
// following token as their value.
var wrappers = map[string]map[string]bool{
	"sudo": {
		"-u": true, "-g": true, "-C": true, "-h": true, "-p": true,
		"-D": true, "-R": true, "-T": true, "-U": true,
		"--user": true, "--group": true, "--close-from": true, "--host": true,
		"--prompt": true, "--chdir": true, "--chroot": true,
		"--command-timeout": true, "--other-user": true,
	},
	"doas": {"-u": true, "-C": true},
}

// Classifier resolves command lines against a fixed set of programs that
// start in locked mode.
type Classifier struct {
	locked       map[string]struct{}
	defaultShell string
}

// New creates a classifier. defaultShell names the program assumed for an
// empty command line.
func New(lockedPrograms []string, defaultShell string) *Classifier {
	c := &Classifier{
		locked:       make(map[string]struct{}, len(lockedPrograms)),
		defaultShell: path.Base(strings.TrimSpace(defaultShell)),
	}
	for _, p := range lockedPrograms {
		if p = strings.TrimSpace(p); p != "" {
			c.locked[p] = struct{}{}
		}
	}
	if c.defaultShell == "" || c.defaultShell == "." || c.defaultShell == "/" {
		c.defaultShell = "bash"
	}
	return c
}

// ParseList splits a comma-separated program list, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Classify returns the program a command line runs. sudo and doas are
// unwrapped along with their options; an empty command line is the default
// shell.
func (c *Classifier) Classify(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return c.defaultShell
	}
	for i := 0; i < len(fields); i++ {
		prog := path.Base(fields[i])
		takesValue, ok := wrappers[prog]
		if !ok {
			return prog
		}
		next := skipOptions(fields, i+1, takesValue)
		if next >= len(fields) {
			return prog
		}
		i = next - 1
	}
	return c.defaultShell
}

// skipOptions returns the index of the first operand at or after start.
// Option values are skipped and "--" ends the options.
func skipOptions(fields []string, start int, takesValue map[string]bool) int {
	i := start
	for i < len(fields) {
		f := fields[i]
		switch {
		case f == "--":
			return i + 1
		case !strings.HasPrefix(f, "-") || f == "-":
			return i
		case takesValue[f]:
			i += 2
		default:
			i++
		}
	}
	return i
}

// DefaultMode returns Locked for programs in the locked set, Normal
// otherwise.
func (c *Classifier) DefaultMode(program string) mode.InputMode {
	if _, ok := c.locked[program]; ok {
		return mode.Locked
	}
	return mode.Normal
}

// ModeFor classifies a command line and returns its default mode.
func (c *Classifier) ModeFor(cmdline string) (string, mode.InputMode) {
	program := c.Classify(cmdline)
	return program, c.DefaultMode(program)
}

// DefaultShell returns the program assumed for empty command lines.
func (c *Classifier) DefaultShell() string {
	return c.defaultShell
}

// Programs returns the locked program set.
func (c *Classifier) Programs() []string {
	out := make([]string, 0, len(c.locked))
	for p := range c.locked {
		out = append(out, p)
	}
	return out
}
