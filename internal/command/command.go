// Package command runs external programs (VCS clients, editor commands)
// with a timeout and structured errors.
package command

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"moe/internal/errors"
	"moe/internal/slogutil"
)

// waitDelay bounds how long Run waits for output pipes after the process
// is killed.
const waitDelay = 2 * time.Second

// Runner executes commands.
type Runner struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// Env is appended to the process environment.
	Env []string
}

// Run executes name with args in dir and returns its standard output.
// A deadline overrun is a TIMEOUT error; a failed exit carries stderr in
// the error details.
func (r Runner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	logger := slogutil.OrDiscard(r.Logger)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	commandLine := shellquote.Join(append([]string{name}, args...)...)
	logger.Debug("Executing command", "command", commandLine, "dir", dir, "timeout", r.Timeout.String())

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewMoeError(errors.Timeout, "command timed out: "+commandLine, err, nil)
		}
		return "", errors.NewMoeError(errors.InternalError, "command failed: "+commandLine, err, nil).
			WithDetails(map[string]interface{}{
				"command": commandLine,
				"stderr":  strings.TrimSpace(stderr.String()),
			})
	}
	return stdout.String(), nil
}

// RunShell splits commandLine with shell quoting rules and runs it.
func (r Runner) RunShell(ctx context.Context, dir, commandLine string) (string, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return "", errors.Wrapf(err, errors.ParseError, "cannot split command %q", commandLine)
	}
	if len(argv) == 0 {
		return "", errors.Newf(errors.ParseError, "empty command")
	}
	return r.Run(ctx, dir, argv[0], argv[1:]...)
}

// Lines splits command output into trimmed, non-empty lines.
func Lines(output string) []string {
	lines := strings.Split(output, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
