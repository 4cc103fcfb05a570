// pattern: Imperative Shell

package discovery

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Scanner discovers git repositories in configured scan paths.
type Scanner struct{}

// NewScanner creates a new project scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// ScanAll scans all provided paths for git repositories.
// Each path is walked one level deep. A directory counts as a repository
// when its .git entry is a directory; a .git *file* marks a linked worktree
// belonging to some other repository, so those are never offered as projects.
func (s *Scanner) ScanAll(paths []string) []Project {
	var projects []Project
	seen := make(map[string]bool)

	for _, scanPath := range paths {
		entries, err := os.ReadDir(scanPath)
		if err != nil {
			continue // Skip inaccessible directories
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			projectPath := filepath.Join(scanPath, entry.Name())

			// Resolve symlinks to get canonical path
			resolved, err := filepath.EvalSymlinks(projectPath)
			if err != nil {
				resolved = projectPath
			}
			if seen[resolved] {
				continue
			}
			seen[resolved] = true

			if !isRepository(resolved) {
				continue
			}

			branch, worktrees := inspect(resolved)
			projects = append(projects, Project{
				Name:      entry.Name(),
				Path:      resolved,
				Branch:    branch,
				Worktrees: worktrees,
			})
		}
	}

	return projects
}

// isRepository checks whether path is the main working copy of a git
// repository. Linked worktrees carry a .git file instead of a directory.
func isRepository(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// inspect runs `git worktree list --porcelain` at the repository root and
// returns the root's checked-out branch plus any linked worktrees.
// Best-effort: returns zero values if git is unavailable.
func inspect(projectPath string) (string, []Worktree) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil {
		return "", nil
	}

	entries := parseWorktreeList(string(output))
	if len(entries) == 0 {
		return "", nil
	}
	// The first entry is always the main working copy itself.
	return entries[0].Branch, entries[1:]
}

// parseWorktreeList parses the porcelain output of `git worktree list`.
// Format:
//
//	worktree /path/to/worktree
//	HEAD abc123
//	branch refs/heads/branch-name
//	<blank line>
//
// Returns every entry in order, main working copy first. Detached entries
// have an empty Branch.
func parseWorktreeList(output string) []Worktree {
	var entries []Worktree
	var current *Worktree
	flush := func() {
		if current != nil {
			entries = append(entries, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			current = &Worktree{Path: value, Name: filepath.Base(value)}
		case "branch":
			if current != nil {
				current.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		}
	}
	flush()

	return entries
}
