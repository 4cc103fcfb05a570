// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grove/internal/locks"
	"grove/internal/paths"
)

// Create makes a worktree named name for the project. branch defaults to
// name. When the branch already exists the worktree attaches to it;
// otherwise the branch is created from baseBranch, or from the project
// root's HEAD when baseBranch is empty. The recorded base commit is resolved
// before the worktree is added so provenance cannot be skewed by a
// concurrent move of the base ref.
//
// Create is idempotent in effect: a stale registration at the target path is
// force-removed and pruned first, so retrying a half-failed create succeeds.
func (m *Manager) Create(ctx context.Context, p Project, name, branch, baseBranch string) (Worktree, error) {
	if err := ValidateName(name); err != nil {
		return Worktree{}, err
	}
	return locks.Locked(ctx, m.registry, lockKey(p, name), func(ctx context.Context) (Worktree, error) {
		return m.create(ctx, p, name, branch, baseBranch)
	})
}

func (m *Manager) create(ctx context.Context, p Project, name, branch, baseBranch string) (Worktree, error) {
	r := p.Resolver()
	base := m.WorktreesBase(p)
	wtPath := r.Join(base, name)
	if !r.IsWithin(base, wtPath) {
		return Worktree{}, transport("worktree name %q escapes the worktrees directory", name)
	}

	if err := m.ensureRepository(ctx, p); err != nil {
		return Worktree{}, err
	}
	if err := m.ensureInitialCommit(ctx, p); err != nil {
		return Worktree{}, err
	}

	if branch == "" {
		branch = name
	}

	// A leftover registration at the target path would make worktree add
	// fail; clearing it is best-effort because absence is the common case.
	m.bestEffort("remove stale worktree", func() error {
		_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "worktree", "remove", "--force", wtPath)
		return err
	})
	m.bestEffort("prune worktrees", func() error {
		_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "worktree", "prune")
		return err
	})

	// The base directory is the one place the manager touches the
	// filesystem directly, so it needs the host-addressable form.
	if err := os.MkdirAll(r.ToFileSystem(base), 0o755); err != nil {
		return Worktree{}, &GitError{
			Kind:    KindEnvironment,
			Message: fmt.Sprintf("creating worktrees directory: %v", err),
			Dir:     p.Path,
			err:     err,
		}
	}

	if m.branchExists(ctx, p, branch) {
		baseCommit, err := m.revParse(ctx, p, branch)
		if err != nil {
			return Worktree{}, err
		}
		if _, err := m.git(ctx, p, p.Path, m.timeouts.Sync, "worktree", "add", wtPath, branch); err != nil {
			return Worktree{}, err
		}
		wt := Worktree{Name: name, Path: wtPath, Branch: branch, BaseCommit: baseCommit, BaseBranch: branch}
		m.log.Info("created worktree", "project", p.Path, "name", name, "branch", branch, "base", branch)
		return wt, nil
	}

	baseRef := baseBranch
	resolvedBase := baseBranch
	if baseRef == "" {
		baseRef = "HEAD"
		if cur, err := m.currentBranch(ctx, p, p.Path); err == nil {
			resolvedBase = cur
		} else {
			resolvedBase = "HEAD"
		}
	} else if !m.refExists(ctx, p, baseRef) {
		return Worktree{}, precondition(ErrBaseBranchNotFound, "base branch %q not found", baseBranch)
	}

	baseCommit, err := m.revParse(ctx, p, baseRef)
	if err != nil {
		return Worktree{}, err
	}

	args := []string{"worktree", "add"}
	if baseBranch != "" && m.isRemoteBranch(ctx, p, baseRef) {
		// Branching off a remote-tracking ref configures upstream tracking
		// on the new branch.
		args = append(args, "--track")
	}
	args = append(args, "-b", branch, wtPath, baseRef)
	if _, err := m.git(ctx, p, p.Path, m.timeouts.Sync, args...); err != nil {
		return Worktree{}, err
	}

	wt := Worktree{Name: name, Path: wtPath, Branch: branch, BaseCommit: baseCommit, BaseBranch: resolvedBase}
	m.log.Info("created worktree", "project", p.Path, "name", name, "branch", branch, "base", resolvedBase)
	return wt, nil
}

// ensureRepository initializes the project path as a git repository when it
// is not one yet.
func (m *Manager) ensureRepository(ctx context.Context, p Project) error {
	if _, err := m.git(ctx, p, p.Path, m.timeouts.Query, "rev-parse", "--git-dir"); err == nil {
		return nil
	}
	if _, err := m.git(ctx, p, p.Path, m.timeouts.Query, "init"); err != nil {
		return err
	}
	m.log.Info("initialized repository", "project", p.Path)
	return nil
}

// ensureInitialCommit guarantees at least one commit exists, creating an
// empty attributed commit on a fresh history. Worktrees cannot be added to a
// repository with no commits.
func (m *Manager) ensureInitialCommit(ctx context.Context, p Project) error {
	if _, err := m.git(ctx, p, p.Path, m.timeouts.Query, "rev-parse", "--verify", "--quiet", "HEAD"); err == nil {
		return nil
	}
	if _, err := m.gitEnv(ctx, p, p.Path, m.timeouts.Query, m.attr.env(true), "commit", "--allow-empty", "-m", "Initial commit"); err != nil {
		return err
	}
	m.log.Info("created initial commit", "project", p.Path)
	return nil
}

// Remove force-removes the named worktree. A worktree that is already gone
// counts as success; any other failure propagates with full context.
func (m *Manager) Remove(ctx context.Context, p Project, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return m.registry.WithLock(ctx, lockKey(p, name), func(ctx context.Context) error {
		wtPath := m.WorktreePath(p, name)
		_, err := m.git(ctx, p, p.Path, m.timeouts.Query, "worktree", "remove", "--force", wtPath)
		if err != nil {
			if absentOK(err) {
				return nil
			}
			return err
		}
		m.log.Info("removed worktree", "project", p.Path, "name", name)
		return nil
	})
}

// absentOK matches git's already-gone diagnostics: removing what does not
// exist is success.
func absentOK(err error) bool {
	return outputContains(err, "is not a working tree", "no such file", "does not exist")
}

// List returns the project's linked worktrees as parsed from git. The
// project root's own entry is not a managed worktree and is skipped; base
// commit provenance is not reconstructible from git and is left to the
// store.
func (m *Manager) List(ctx context.Context, p Project) ([]Worktree, error) {
	out, err := m.git(ctx, p, p.Path, m.timeouts.Query, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	base := m.WorktreesBase(p)
	root := paths.Canonical(p.Path)
	list := []Worktree{}
	for _, e := range parseWorktreeList(out) {
		if e.Bare || paths.Canonical(e.Path) == root {
			continue
		}
		list = append(list, Worktree{
			Name:   m.worktreeName(p, base, e.Path),
			Path:   e.Path,
			Branch: e.Branch,
		})
	}
	return list, nil
}

// worktreeName derives a worktree's name from its path, preferring the
// base-relative form so nested names like feature/auth survive.
func (m *Manager) worktreeName(p Project, base, wtPath string) string {
	r := p.Resolver()
	if rel, err := r.Relative(base, wtPath); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return r.Base(wtPath)
}

// Branches lists local and remote branches with checkout and worktree state.
// The remote refresh beforehand is best-effort: offline is not an error.
func (m *Manager) Branches(ctx context.Context, p Project) ([]Branch, error) {
	m.bestEffort("refresh remotes", func() error {
		_, err := m.git(ctx, p, p.Path, m.timeouts.Network, "fetch", "--all", "--prune")
		return err
	})

	localOut, err := m.git(ctx, p, p.Path, m.timeouts.Query, "for-each-ref", "--format=%(refname:short)|%(HEAD)", "refs/heads")
	if err != nil {
		return nil, err
	}
	remoteOut, err := m.git(ctx, p, p.Path, m.timeouts.Query, "for-each-ref", "--format=%(refname:short)", "refs/remotes")
	if err != nil {
		return nil, err
	}

	worktrees, err := m.List(ctx, p)
	if err != nil {
		return nil, err
	}
	withWorktree := make(map[string]bool, len(worktrees))
	for _, wt := range worktrees {
		if wt.Branch != "" {
			withWorktree[wt.Branch] = true
		}
	}

	branches := []Branch{}
	for _, ref := range parseRefLines(localOut) {
		branches = append(branches, Branch{
			Name:        ref.Name,
			CheckedOut:  ref.Head,
			HasWorktree: withWorktree[ref.Name],
		})
	}
	for _, line := range parseLines(remoteOut) {
		// origin/HEAD is a symref, not a branch.
		if strings.HasSuffix(line, "/HEAD") {
			continue
		}
		branches = append(branches, Branch{Name: line, IsRemote: true})
	}

	sortBranches(branches)
	return branches, nil
}

// MainBranch returns the integration target: whatever branch the project
// root has checked out. A detached root is an explicit error; the tool never
// guesses a main branch name.
func (m *Manager) MainBranch(ctx context.Context, p Project) (string, error) {
	name, err := m.currentBranch(ctx, p, p.Path)
	if err != nil {
		return "", err
	}
	if name == "HEAD" {
		return "", precondition(ErrDetachedHead,
			"project %s has a detached HEAD; check out a branch to define the main branch", p.Path)
	}
	return name, nil
}
