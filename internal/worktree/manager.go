// pattern: Imperative Shell

package worktree

import (
	"context"
	"strings"
	"time"

	"grove/internal/locks"
	"grove/internal/logging"
	"grove/internal/paths"
	"grove/internal/shell"
)

// Timeouts bounds each class of git invocation. Local metadata reads stay
// short; anything that can touch the network or replay history gets more
// room.
type Timeouts struct {
	Query   time.Duration
	Network time.Duration
	Sync    time.Duration
}

// DefaultTimeouts returns the bounds used when configuration does not
// override them.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Query:   10 * time.Second,
		Network: 60 * time.Second,
		Sync:    2 * time.Minute,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Query <= 0 {
		t.Query = d.Query
	}
	if t.Network <= 0 {
		t.Network = d.Network
	}
	if t.Sync <= 0 {
		t.Sync = d.Sync
	}
	return t
}

// Runner abstracts command execution so tests can script git's behavior.
// *shell.Runner is the production implementation.
type Runner interface {
	Run(ctx context.Context, dir string, opts shell.Options, name string, args ...string) (shell.Result, error)
}

// Manager implements the worktree lifecycle and the synchronization
// workflows between worktrees and a project's main branch. Mutating
// operations are serialized per (project, worktree) through the lock
// registry; operations on different worktrees proceed concurrently, and
// read-only queries never take a lock.
type Manager struct {
	registry  *locks.Registry
	log       *logging.ScopedLogger
	attr      Attribution
	timeouts  Timeouts
	runnerFor func(p Project) Runner
}

// NewManager returns a manager executing real git commands, inside the
// project's WSL distribution when it has one.
func NewManager(registry *locks.Registry, log *logging.ScopedLogger, attr Attribution) *Manager {
	return &Manager{
		registry: registry,
		log:      log,
		attr:     attr,
		timeouts: DefaultTimeouts(),
		runnerFor: func(p Project) Runner {
			if p.Env == paths.EnvWSL {
				return shell.NewWSLRunner(p.Distro)
			}
			return shell.NewRunner()
		},
	}
}

// SetTimeouts overrides the per-class command timeouts; zero fields keep
// their defaults.
func (m *Manager) SetTimeouts(t Timeouts) {
	m.timeouts = t.withDefaults()
}

// NewManagerWithRunner returns a manager routing every command through r,
// for tests.
func NewManagerWithRunner(registry *locks.Registry, log *logging.ScopedLogger, attr Attribution, r Runner) *Manager {
	m := NewManager(registry, log, attr)
	m.runnerFor = func(Project) Runner { return r }
	return m
}

// WorktreesBase returns the directory worktrees are created in, in stored
// form.
func (m *Manager) WorktreesBase(p Project) string {
	r := p.Resolver()
	dir := p.WorktreesDir
	if dir == "" {
		dir = DefaultWorktreesDir
	}
	if r.IsAbs(dir) {
		return dir
	}
	return r.Join(p.Path, dir)
}

// WorktreePath returns where the named worktree lives, in stored form.
func (m *Manager) WorktreePath(p Project, name string) string {
	return p.Resolver().Join(m.WorktreesBase(p), name)
}

// git runs one git command in dir and returns stdout with the trailing
// newline removed. Failures come back as *GitError carrying the command,
// both output streams, and the directory.
func (m *Manager) git(ctx context.Context, p Project, dir string, timeout time.Duration, args ...string) (string, error) {
	return m.gitEnv(ctx, p, dir, timeout, nil, args...)
}

// gitEnv is git with extra environment variables, used for attributed
// commits.
func (m *Manager) gitEnv(ctx context.Context, p Project, dir string, timeout time.Duration, env []string, args ...string) (string, error) {
	res, err := m.runnerFor(p).Run(ctx, dir, shell.Options{Timeout: timeout, Env: env}, "git", args...)
	if err != nil {
		return "", wrapRun(err, dir, args)
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// bestEffort runs an auxiliary step whose failure must not fail the caller,
// such as the remote refresh before a branch listing. The error is logged at
// debug and discarded.
func (m *Manager) bestEffort(step string, fn func() error) {
	if err := fn(); err != nil {
		m.log.Debug("best-effort step failed", "step", step, "error", err)
	}
}

// lockKey is the serialization domain for one worktree of one project.
func lockKey(p Project, name string) string {
	return locks.Key(p.Path, name)
}

// currentBranch returns the short symbolic name of HEAD in dir; the literal
// string "HEAD" means a detached checkout.
func (m *Manager) currentBranch(ctx context.Context, p Project, dir string) (string, error) {
	return m.git(ctx, p, dir, m.timeouts.Query, "rev-parse", "--abbrev-ref", "HEAD")
}

// revParse resolves ref to a commit hash.
func (m *Manager) revParse(ctx context.Context, p Project, ref string) (string, error) {
	out, err := m.git(ctx, p, p.Path, m.timeouts.Query, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// branchExists reports whether a local branch named branch exists.
func (m *Manager) branchExists(ctx context.Context, p Project, branch string) bool {
	_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// isRemoteBranch reports whether ref names a remote-tracking branch.
func (m *Manager) isRemoteBranch(ctx context.Context, p Project, ref string) bool {
	_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "show-ref", "--verify", "--quiet", "refs/remotes/"+ref)
	return err == nil
}

// refExists reports whether ref resolves to a commit at all.
func (m *Manager) refExists(ctx context.Context, p Project, ref string) bool {
	_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// aheadBehind counts the commits unique to each side of ref...HEAD in dir:
// left = only on ref, right = only on HEAD.
func (m *Manager) aheadBehind(ctx context.Context, p Project, dir, ref string) (left, right int, err error) {
	out, err := m.git(ctx, p, dir, m.timeouts.Query, "rev-list", "--left-right", "--count", ref+"...HEAD")
	if err != nil {
		return 0, 0, err
	}
	left, right, perr := parseAheadBehind(out)
	if perr != nil {
		return 0, 0, &GitError{Kind: KindGit, Message: perr.Error(), Dir: dir}
	}
	return left, right, nil
}
