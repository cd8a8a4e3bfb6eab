// Package exec runs external tools for the release jobs.
package exec

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/input-output-hk/catalyst-forge-libs/executor"

	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// maxStderrInError bounds the stderr tail carried by CommandError.
const maxStderrInError = 2048

// CommandError reports a command that exited non-zero or could not start.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner implements ports.CommandRunner on the forge executor.
type Runner struct {
	logger log.Logger
	// Stream copies process output to these writers in addition to capturing it.
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput streams process output to the given writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner creates a Runner.
func NewRunner(logger log.Logger, opts ...Option) *Runner {
	r := &Runner{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and captures its output.
func (r *Runner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	opts := []executor.Option{executor.WithCapture(true, true, false)}
	if cmd.Dir != "" {
		opts = append(opts, executor.WithWorkingDir(cmd.Dir))
	}
	if len(cmd.Env) > 0 {
		opts = append(opts, executor.WithEnv(cmd.Env))
	}
	if r.stdout != nil {
		opts = append(opts, executor.WithStdoutWriter(r.stdout))
	}
	if r.stderr != nil {
		opts = append(opts, executor.WithStderrWriter(r.stderr))
	}

	r.logger.Debug("exec",
		log.String("cmd", cmd.Name),
		log.Strings("args", cmd.Args),
		log.String("dir", cmd.Dir),
		log.Strings("env", envKeys(cmd.Env)),
	)

	start := time.Now()
	out, err := executor.New(cmd.Name, cmd.Args...).ExecuteWithInput(ctx, cmd.Stdin, opts...)
	var res ports.CommandResult
	if out != nil {
		res = ports.CommandResult{
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: out.ExitCode,
		}
	}

	if err != nil {
		if out == nil {
			res.ExitCode = -1
		} else if out.Err != nil {
			err = out.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return res, &CommandError{
			Name:     cmd.Name,
			Args:     cmd.Args,
			ExitCode: res.ExitCode,
			Stderr:   tail(strings.TrimSpace(res.Stderr), maxStderrInError),
			Err:      err,
		}
	}

	r.logger.Debug("exec done",
		log.String("cmd", cmd.Name),
		log.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// envKeys returns the sorted keys only; values may hold credentials.
func envKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tail keeps the last n bytes of s, moved forward to a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
