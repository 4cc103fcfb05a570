// pattern: Imperative Shell

package worktree

import (
	"context"
	"strings"

	"grove/internal/locks"
)

// Pull runs git pull in the worktree.
func (m *Manager) Pull(ctx context.Context, p Project, name string) (string, error) {
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (string, error) {
		return m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Network, "pull")
	})
}

// Push pushes the worktree's branch. On the first push, when no upstream is
// configured yet, the branch is pushed with --set-upstream to origin.
func (m *Manager) Push(ctx context.Context, p Project, name string) (string, error) {
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (string, error) {
		wtPath := m.WorktreePath(p, name)
		up, err := m.upstream(ctx, p, wtPath)
		if err != nil {
			return "", err
		}
		if up == nil {
			branch, err := m.currentBranch(ctx, p, wtPath)
			if err != nil {
				return "", err
			}
			return m.git(ctx, p, wtPath, m.timeouts.Network, "push", "--set-upstream", "origin", branch)
		}
		return m.git(ctx, p, wtPath, m.timeouts.Network, "push")
	})
}

// Fetch refreshes remote refs from the worktree.
func (m *Manager) Fetch(ctx context.Context, p Project, name string) (string, error) {
	return m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Network, "fetch", "--prune")
}

// SetUpstream points the worktree's branch at a remote tracking branch such
// as origin/feature-a.
func (m *Manager) SetUpstream(ctx context.Context, p Project, name, remoteBranch string) error {
	if strings.TrimSpace(remoteBranch) == "" {
		return transport("upstream branch cannot be empty")
	}
	_, err := m.git(ctx, p, m.WorktreePath(p, name), m.timeouts.Query, "branch", "--set-upstream-to", remoteBranch)
	return err
}

// Upstream returns the tracking branch of the worktree's branch, or nil when
// none is configured.
func (m *Manager) Upstream(ctx context.Context, p Project, name string) (*Upstream, error) {
	return m.upstream(ctx, p, m.WorktreePath(p, name))
}

func (m *Manager) upstream(ctx context.Context, p Project, dir string) (*Upstream, error) {
	out, err := m.git(ctx, p, dir, m.timeouts.Query, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		if outputContains(err, "no upstream") {
			return nil, nil
		}
		return nil, err
	}
	up := parseUpstream(strings.TrimSpace(out))
	return &up, nil
}

// RemoteBranches lists remote branch names, without the symbolic HEAD
// pointer.
func (m *Manager) RemoteBranches(ctx context.Context, p Project) ([]string, error) {
	out, err := m.git(ctx, p, p.Path, m.timeouts.Query, "for-each-ref", "--format=%(refname:short)", "refs/remotes")
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, line := range parseLines(out) {
		if strings.HasSuffix(line, "/HEAD") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// OriginBranch returns origin's default branch. When the local symref is not
// set, one best-effort query to the remote fills it in before giving up.
func (m *Manager) OriginBranch(ctx context.Context, p Project) (string, error) {
	ref, err := m.git(ctx, p, p.Path, m.timeouts.Query, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		m.bestEffort("resolve origin HEAD", func() error {
			_, serr := m.git(ctx, p, p.Path, m.timeouts.Network, "remote", "set-head", "origin", "--auto")
			return serr
		})
		ref, err = m.git(ctx, p, p.Path, m.timeouts.Query, "symbolic-ref", "refs/remotes/origin/HEAD")
		if err != nil {
			return "", err
		}
	}
	return strings.TrimPrefix(strings.TrimSpace(ref), "refs/remotes/origin/"), nil
}
