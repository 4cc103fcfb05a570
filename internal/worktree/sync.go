// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HasChangesToRebase reports whether mainBranch has commits the worktree's
// branch does not. Read-only, no lock.
func (m *Manager) HasChangesToRebase(ctx context.Context, p Project, name, mainBranch string) (bool, error) {
	behind, _, err := m.aheadBehind(ctx, p, m.WorktreePath(p, name), mainBranch)
	if err != nil {
		return false, err
	}
	return behind > 0, nil
}

// RebaseOntoMain replays the worktree's commits onto the current tip of
// mainBranch. On conflict the repository is left in its in-progress state
// for manual resolution; AbortRebase backs out.
func (m *Manager) RebaseOntoMain(ctx context.Context, p Project, name, mainBranch string) error {
	return m.registry.WithLock(ctx, lockKey(p, name), func(ctx context.Context) error {
		wtPath := m.WorktreePath(p, name)
		if _, err := m.git(ctx, p, wtPath, m.timeouts.Sync, "rebase", mainBranch); err != nil {
			return classifyRebase(err)
		}
		m.log.Info("rebased worktree", "project", p.Path, "name", name, "onto", mainBranch)
		return nil
	})
}

// AbortRebase aborts an in-progress rebase in the worktree. No rebase in
// progress is success.
func (m *Manager) AbortRebase(ctx context.Context, p Project, name string) error {
	return m.registry.WithLock(ctx, lockKey(p, name), func(ctx context.Context) error {
		_, err := m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Query, "rebase", "--abort")
		if err != nil && !outputContains(err, "no rebase in progress") {
			return err
		}
		return nil
	})
}

// SquashMergeToMain integrates the worktree into mainBranch as a single
// commit carrying message.
//
// The protocol is rebase, then squash, then fast-forward-only merge: the
// worktree is rebased onto main first so conflicts surface in the disposable
// copy, everything since the common ancestor is collapsed into one commit,
// and the project root fast-forwards main to it. Main's history is only ever
// advanced, never rewritten, no matter how messy the worktree branch is.
func (m *Manager) SquashMergeToMain(ctx context.Context, p Project, name, mainBranch, message string) error {
	if strings.TrimSpace(message) == "" {
		return transport("squash commit message cannot be empty")
	}
	return m.registry.WithLock(ctx, lockKey(p, name), func(ctx context.Context) error {
		return m.integrate(ctx, p, name, mainBranch, message, true)
	})
}

// MergeToMain integrates the worktree into mainBranch keeping its commits
// individually, under the same rebase-then-fast-forward protocol as
// SquashMergeToMain.
func (m *Manager) MergeToMain(ctx context.Context, p Project, name, mainBranch string) error {
	return m.registry.WithLock(ctx, lockKey(p, name), func(ctx context.Context) error {
		return m.integrate(ctx, p, name, mainBranch, "", false)
	})
}

func (m *Manager) integrate(ctx context.Context, p Project, name, mainBranch, message string, squash bool) error {
	wtPath := m.WorktreePath(p, name)

	// Each failure carries the whole command sequence executed so far, not
	// just the step that broke.
	var executed []string
	run := func(dir string, timeout time.Duration, env []string, args ...string) (string, error) {
		out, err := m.gitEnv(ctx, p, dir, timeout, env, args...)
		if err != nil {
			if ge, ok := AsGitError(err); ok {
				return out, ge.WithCommands(executed...)
			}
			return out, err
		}
		executed = append(executed, gitCommand(args))
		return out, nil
	}

	countOut, err := run(wtPath, m.timeouts.Query, nil, "rev-list", "--count", mainBranch+"..HEAD")
	if err != nil {
		return err
	}
	ahead, convErr := strconv.Atoi(strings.TrimSpace(countOut))
	if convErr != nil {
		return &GitError{Kind: KindGit, Message: fmt.Sprintf("unexpected rev-list output %q", countOut), Dir: wtPath}
	}
	if ahead == 0 {
		return precondition(ErrNothingToMerge, "worktree %s has no commits beyond %s", name, mainBranch)
	}

	// Phase A: rebase inside the worktree. On failure the half-done rebase
	// is backed out and main is untouched.
	if _, err := run(wtPath, m.timeouts.Sync, nil, "rebase", mainBranch); err != nil {
		m.bestEffort("abort failed rebase", func() error {
			_, aerr := m.git(ctx, p, wtPath, m.timeouts.Query, "rebase", "--abort")
			return aerr
		})
		return classifyRebase(err)
	}

	branch, err := m.currentBranch(ctx, p, wtPath)
	if err != nil {
		return err
	}

	if squash {
		baseOut, err := run(wtPath, m.timeouts.Query, nil, "merge-base", mainBranch, "HEAD")
		if err != nil {
			return err
		}
		if _, err := run(wtPath, m.timeouts.Query, nil, "reset", "--soft", strings.TrimSpace(baseOut)); err != nil {
			return err
		}
		msg := message
		if m.attr.Trailer != "" {
			msg += "\n\n" + m.attr.Trailer
		}
		if _, err := run(wtPath, m.timeouts.Query, m.attr.env(false), "commit", "-m", msg); err != nil {
			return err
		}
	}

	// Phase B: advance main from the project root. Fast-forward only: if
	// main moved since Phase A, fail closed instead of minting a merge
	// commit.
	if _, err := run(p.Path, m.timeouts.Query, nil, "checkout", mainBranch); err != nil {
		return err
	}
	if _, err := run(p.Path, m.timeouts.Sync, nil, "merge", "--ff-only", branch); err != nil {
		if ge, ok := AsGitError(err); ok && outputContains(err, "not possible to fast-forward", "diverg") {
			ge.Kind = KindConflict
			ge.Message = fmt.Sprintf("cannot fast-forward %s to %s: %s changed during the merge; rebase again and retry",
				mainBranch, branch, mainBranch)
			return ge.markSentinel(ErrNotFastForward)
		}
		return err
	}

	m.log.Info("merged worktree into main",
		"project", p.Path, "name", name, "branch", branch, "main", mainBranch, "squash", squash)
	return nil
}

// classifyRebase upgrades a rebase failure whose output shows merge trouble
// to KindConflict; timeouts and launcher failures keep their kind.
func classifyRebase(err error) error {
	if ge, ok := AsGitError(err); ok && ge.Kind == KindGit && outputContains(err, "conflict", "could not apply") {
		return ge.retag(KindConflict)
	}
	return err
}
