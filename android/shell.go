// Package android implements a partsd host backend for Android using the
// platform shell tools (settings, dumpsys, service, tinyplay). It can run on
// the device itself, or on a computer with Shell.Prefix set to something like
// "adb -s serial shell".
package android

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout is the default timeout for short-lived shell commands.
const DefaultTimeout = 5 * time.Second

// Runner runs shell commands.
type Runner interface {
	// Run runs cmd to completion and returns its trimmed stdout.
	Run(ctx context.Context, cmd string) (string, error)

	// Command prepares a long-running command. It is killed when ctx is
	// canceled.
	Command(ctx context.Context, cmd string) *exec.Cmd
}

// Shell runs commands with sh, or with Prefix followed by the command as a
// single argument.
type Shell struct {
	Prefix  []string
	Timeout time.Duration // DefaultTimeout if zero
}

var _ Runner = Shell{}

func (s Shell) Command(ctx context.Context, cmd string) *exec.Cmd {
	var c *exec.Cmd
	if len(s.Prefix) == 0 {
		c = exec.CommandContext(ctx, "sh", "-c", cmd)
	} else {
		args := append(s.Prefix[1:len(s.Prefix):len(s.Prefix)], cmd)
		c = exec.CommandContext(ctx, s.Prefix[0], args...)
	}
	c.WaitDelay = time.Second // children may hold the pipes open after a kill
	return c
}

func (s Shell) Run(ctx context.Context, cmd string) (string, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.Command(ctx, cmd).Output()
	if err != nil {
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			if msg := strings.TrimSpace(string(xerr.Stderr)); msg != "" {
				return "", fmt.Errorf("run %q: %w (stderr: %s)", cmd, err, msg)
			}
		}
		return "", fmt.Errorf("run %q: %w", cmd, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// quote quotes s as a single POSIX shell word.
func quote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-.,:=/+@%") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
