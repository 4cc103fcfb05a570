// pattern: Imperative Shell

// Package runner launches and supervises long-lived commands inside
// worktrees: dev servers, watchers, test loops. Output is captured line by
// line into the scoped log so it shows up in the daemon's log tail, and a
// restart policy keeps flaky processes alive without babysitting.
package runner

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"grove/internal/logging"
	"grove/internal/shell"
)

// RestartPolicy controls when a run is restarted after its process exits.
type RestartPolicy int

const (
	Never     RestartPolicy = iota // Never restart
	OnFailure                      // Restart only on non-zero exit
	Always                         // Always restart (unless Stop is called)
)

// stopGrace is how long Stop waits after SIGTERM before sending SIGKILL.
const stopGrace = 5 * time.Second

// Spec describes a command to run inside a worktree.
type Spec struct {
	Project    string   // project root path, for listing and events
	Worktree   string   // worktree name the run belongs to
	Dir        string   // working directory (the worktree path)
	Distro     string   // WSL distribution; empty runs natively
	Command    []string // argv, Command[0] is the binary
	Env        []string // extra KEY=VALUE pairs appended to the environment
	Restart    RestartPolicy
	MaxRetries int
	RetryDelay time.Duration
}

// Supervisor manages the lifecycle of one run's child process.
type Supervisor struct {
	spec Spec
	log  *logging.ScopedLogger

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	stopped bool
	done    chan struct{}
}

// NewSupervisor creates a supervisor for the given spec. The caller is
// expected to have validated that Spec.Command is non-empty.
func NewSupervisor(spec Spec, log *logging.ScopedLogger) *Supervisor {
	return &Supervisor{
		spec: spec,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start launches the child process in a goroutine. Non-blocking.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("runner: already running")
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop sends SIGTERM and waits up to stopGrace, then SIGKILL.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.stopped = true
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		// Not running or already exited
		<-s.done
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may already be gone
		<-s.done
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(stopGrace):
	}

	s.mu.Lock()
	cmd = s.cmd
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}

	<-s.done
	return nil
}

// Running returns whether the child process is currently running.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel that is closed when the supervisor exits
// (either the process exited without restart or Stop was called).
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	retries := 0
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		exitCode := s.runOnce(ctx)

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shouldRestart := false
		switch s.spec.Restart {
		case Always:
			shouldRestart = true
		case OnFailure:
			shouldRestart = exitCode != 0
		case Never:
			shouldRestart = false
		}

		if !shouldRestart {
			return
		}

		retries++
		if s.spec.MaxRetries > 0 && retries > s.spec.MaxRetries {
			s.log.Error("max retries exceeded", "retries", retries-1, "worktree", s.spec.Worktree)
			return
		}

		delay := s.spec.RetryDelay
		if delay == 0 {
			delay = time.Second
		}

		s.log.Info("restarting run", "worktree", s.spec.Worktree, "attempt", retries, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) int {
	argv := s.spec.Command
	dir := s.spec.Dir
	if s.spec.Distro != "" {
		argv = shell.WSLArgv(s.spec.Distro, dir, argv)
		dir = "" // wsl.exe changes directory itself via --cd
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(s.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), s.spec.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.log.Error("failed to create stdout pipe", "error", err, "worktree", s.spec.Worktree)
		return -1
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.log.Error("failed to create stderr pipe", "error", err, "worktree", s.spec.Worktree)
		return -1
	}

	s.log.Info("starting run", "worktree", s.spec.Worktree, "cmd", strings.Join(s.spec.Command, " "))

	if err := cmd.Start(); err != nil {
		s.log.Error("failed to start run", "error", err, "worktree", s.spec.Worktree)
		return -1
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	// Capture stdout and stderr into the log
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			s.log.Info(scanner.Text(), "stream", "stdout", "worktree", s.spec.Worktree)
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.Info(scanner.Text(), "stream", "stderr", "worktree", s.spec.Worktree)
		}
	}()

	wg.Wait()
	err = cmd.Wait()

	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			s.log.Warn("run exited", "worktree", s.spec.Worktree, "exit_code", code)
			return code
		}
		// Context cancellation or other error
		s.log.Info("run stopped", "worktree", s.spec.Worktree, "error", err)
		return -1
	}

	s.log.Info("run exited cleanly", "worktree", s.spec.Worktree)
	return 0
}
