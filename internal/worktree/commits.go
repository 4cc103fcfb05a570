// pattern: Imperative Shell

package worktree

import (
	"context"
	"strconv"
	"strings"

	"grove/internal/locks"
)

// Stash saves the worktree's uncommitted changes, untracked files included.
func (m *Manager) Stash(ctx context.Context, p Project, name string) (string, error) {
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (string, error) {
		return m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Query, "stash", "push", "--include-untracked")
	})
}

// StashPop restores the most recently stashed changes in the worktree.
func (m *Manager) StashPop(ctx context.Context, p Project, name string) (string, error) {
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (string, error) {
		return m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Query, "stash", "pop")
	})
}

// CommitAll stages everything in the worktree and commits it with message,
// under the user's own identity.
func (m *Manager) CommitAll(ctx context.Context, p Project, name, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", transport("commit message cannot be empty")
	}
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (string, error) {
		wtPath := m.WorktreePath(p, name)
		if _, err := m.git(ctx, p, wtPath, m.timeouts.Query, "add", "-A"); err != nil {
			return "", err
		}
		out, err := m.git(ctx, p, wtPath, m.timeouts.Query, "commit", "-m", message)
		if err != nil {
			if outputContains(err, "nothing to commit") {
				if ge, ok := AsGitError(err); ok {
					return "", ge.retag(KindPrecondition).markSentinel(ErrNothingToCommit)
				}
			}
			if ge, ok := AsGitError(err); ok {
				return "", ge.WithCommands(gitCommand([]string{"add", "-A"}))
			}
			return "", err
		}
		m.log.Info("committed changes", "project", p.Path, "name", name)
		return out, nil
	})
}

// Log returns the worktree's most recent commits with per-commit change
// stats. limit <= 0 means the default of 20.
func (m *Manager) Log(ctx context.Context, p Project, name string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Query,
		"log", "-n", strconv.Itoa(limit), "--date=iso", "--pretty=format:%H|%s|%ad|%an", "--shortstat")
	if err != nil {
		if outputContains(err, "does not have any commits") {
			return []Commit{}, nil
		}
		return nil, err
	}
	return parseLog(out), nil
}
