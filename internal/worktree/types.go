// pattern: Functional Core

package worktree

import (
	"regexp"
	"strings"

	"grove/internal/paths"
)

// DefaultWorktreesDir is where worktrees live when a project does not
// configure its own folder, relative to the project root.
const DefaultWorktreesDir = ".worktrees"

// Project is the root working copy that worktrees belong to. The manager
// reads these fields and never mutates them; registration and persistence
// are the caller's concern.
type Project struct {
	// Path is the project root in stored form: POSIX-separated when the
	// project lives inside a WSL distribution, native otherwise.
	Path string
	// WorktreesDir overrides where worktrees are created. Relative values
	// are joined to Path; empty means DefaultWorktreesDir.
	WorktreesDir string
	// Env classifies the project's filesystem environment.
	Env paths.Env
	// Distro names the WSL distribution when Env is paths.EnvWSL.
	Distro string
}

// Resolver returns the path resolver for the project's environment.
func (p Project) Resolver() *paths.Resolver {
	return paths.NewResolver(p.Env, p.Distro)
}

// Worktree describes one linked working copy.
type Worktree struct {
	Name   string
	Path   string
	Branch string
	// BaseCommit and BaseBranch record where the worktree started, captured
	// at creation. List cannot reconstruct them from git alone.
	BaseCommit string
	BaseBranch string
}

// Branch is one local or remote branch with its checkout state.
type Branch struct {
	Name        string
	IsRemote    bool
	CheckedOut  bool
	HasWorktree bool
}

// Commit is one parsed log record with its change stats.
type Commit struct {
	Hash         string
	Subject      string
	Date         string
	Author       string
	FilesChanged int
	Insertions   int
	Deletions    int
}

// ConflictReport is the result of a rebase dry run. It is recomputed on
// every call and never persisted.
type ConflictReport struct {
	HasConflicts     bool
	CanAutoMerge     bool
	ConflictingFiles []string
	WorktreeCommits  []string
	MainCommits      []string
}

// Upstream identifies the remote tracking branch of a local branch.
type Upstream struct {
	Remote string
	Branch string
}

// Attribution is the committer identity for commits the tool creates itself
// (the synthetic initial commit, squash commits), kept distinct from the
// user's configured identity so automated commits are recognizable in
// history. Trailer, when set, is appended to squash commit messages.
type Attribution struct {
	Name    string
	Email   string
	Trailer string
}

// env renders the identity as environment overrides for one git commit. The
// committer is always replaced; the author only for commits the tool owns
// outright, so squashed user work keeps the user as author.
func (a Attribution) env(includeAuthor bool) []string {
	if a.Name == "" && a.Email == "" {
		return nil
	}
	env := []string{
		"GIT_COMMITTER_NAME=" + a.Name,
		"GIT_COMMITTER_EMAIL=" + a.Email,
	}
	if includeAuthor {
		env = append(env,
			"GIT_AUTHOR_NAME="+a.Name,
			"GIT_AUTHOR_EMAIL="+a.Email,
		)
	}
	return env
}

// validNameRe matches valid worktree names: alphanumeric start, then
// alphanumeric, dots, hyphens, underscores, slashes.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidateName checks whether name is usable as a worktree name. Names
// become directory names under the worktrees folder, so traversal sequences
// are rejected outright.
func ValidateName(name string) error {
	if name == "" {
		return transport("worktree name cannot be empty")
	}
	if len(name) > 100 {
		return transport("worktree name too long (max 100 characters)")
	}
	if !validNameRe.MatchString(name) {
		return transport("invalid worktree name %q: must start with alphanumeric, may contain a-z A-Z 0-9 . _ / -", name)
	}
	if strings.Contains(name, "..") {
		return transport("worktree name cannot contain '..'")
	}
	return nil
}
