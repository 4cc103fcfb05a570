// pattern: Imperative Shell

package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default limits for a single invocation. Callers override per call; sync
// workflows pass much longer timeouts than local metadata reads.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxBuffer = 10 * 1024 * 1024
)

// Result holds the captured output of a completed command.
type Result struct {
	Stdout string
	Stderr string
}

// Options control a single invocation.
type Options struct {
	// Timeout bounds the command's runtime. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxBuffer caps the bytes retained per output stream. Zero means
	// DefaultMaxBuffer. Output beyond the cap is discarded, not fatal.
	MaxBuffer int64
	// Env entries are appended to the parent environment as KEY=VALUE pairs.
	Env []string
}

// ExecFunc is the low-level process launcher, injectable for tests.
type ExecFunc func(ctx context.Context, dir string, opts Options, name string, args ...string) (Result, error)

// Runner executes external commands for one project. For a project inside a
// WSL distribution every command line is rewritten to run in that
// distribution; callers always issue native command lines and never see the
// rewrite.
type Runner struct {
	distro string
	exec   ExecFunc
}

// NewRunner returns a runner for host-native projects.
func NewRunner() *Runner {
	return &Runner{exec: defaultExec}
}

// NewWSLRunner returns a runner whose commands execute inside the named WSL
// distribution.
func NewWSLRunner(distro string) *Runner {
	return &Runner{distro: distro, exec: defaultExec}
}

// NewRunnerWithExec returns a runner using a custom launcher for testing. A
// non-empty distro applies the same WSL rewrite as NewWSLRunner.
func NewRunnerWithExec(distro string, fn ExecFunc) *Runner {
	return &Runner{distro: distro, exec: fn}
}

// Run executes name with args in dir and returns the captured output. A
// non-zero exit, timeout, or launch failure comes back as a *CommandError
// carrying the exact command line, the working directory, and both output
// streams.
func (r *Runner) Run(ctx context.Context, dir string, opts Options, name string, args ...string) (Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBuffer <= 0 {
		opts.MaxBuffer = DefaultMaxBuffer
	}

	argv := append([]string{name}, args...)
	execDir := dir
	if r.distro != "" {
		argv = WSLArgv(r.distro, dir, argv)
		execDir = "" // wsl.exe changes directory itself via --cd
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	res, err := r.exec(ctx, execDir, opts, argv[0], argv[1:]...)
	if err != nil {
		cmdErr := &CommandError{
			Argv:   argv,
			Dir:    dir,
			Stdout: res.Stdout,
			Stderr: res.Stderr,
			Err:    err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cmdErr.Err = context.DeadlineExceeded
		}
		return res, cmdErr
	}
	return res, nil
}

// defaultExec launches processes with os/exec, capping captured output.
func defaultExec(ctx context.Context, dir string, opts Options, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdout := &cappedBuffer{max: opts.MaxBuffer}
	stderr := &cappedBuffer{max: opts.MaxBuffer}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// WSLArgv rewrites a native command line to execute inside a WSL
// distribution. --cd sets the working directory (the POSIX stored form is
// accepted as-is) and -e execs the command without an intermediate shell.
func WSLArgv(distro, dir string, argv []string) []string {
	wrapped := []string{"wsl.exe", "-d", distro}
	if dir != "" {
		wrapped = append(wrapped, "--cd", dir)
	}
	wrapped = append(wrapped, "-e")
	return append(wrapped, argv...)
}

// cappedBuffer retains at most max bytes and discards the rest, so a runaway
// command cannot exhaust memory.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.max - int64(b.buf.Len()); remaining > 0 {
		if int64(len(p)) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

// CommandError describes a failed invocation. It always carries the exact
// command line, the working directory, and whatever both streams produced
// before the failure.
type CommandError struct {
	Argv     []string
	Dir      string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := e.Command()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Command renders the command line as a single string.
func (e *CommandError) Command() string {
	return strings.Join(e.Argv, " ")
}

// TimedOut reports whether the command was killed by its timeout.
func (e *CommandError) TimedOut() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
