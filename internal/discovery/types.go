// pattern: Functional Core

package discovery

// Worktree is a linked worktree already attached to a discovered repository.
type Worktree struct {
	Name   string // Worktree directory name
	Path   string // Absolute path to the worktree directory
	Branch string // Checked-out branch
}

// Project is a git repository found during a scan of the configured roots.
type Project struct {
	Name      string     // Directory name (used as display name)
	Path      string     // Canonical path to the project root (main worktree)
	Branch    string     // Branch checked out in the project root
	Worktrees []Worktree // Linked worktrees already attached (empty if none)
}
