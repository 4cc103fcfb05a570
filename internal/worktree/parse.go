// pattern: Functional Core

package worktree

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// worktreeEntry is one block of `git worktree list --porcelain` output.
type worktreeEntry struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
}

// parseWorktreeList parses porcelain worktree output. Blocks are separated
// by blank lines; unknown attributes are ignored and a trailing block
// without a terminator is still kept.
func parseWorktreeList(output string) []worktreeEntry {
	var entries []worktreeEntry
	var cur *worktreeEntry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			cur = &worktreeEntry{Path: value}
		case "HEAD":
			if cur != nil {
				cur.Head = value
			}
		case "branch":
			if cur != nil {
				cur.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "bare":
			if cur != nil {
				cur.Bare = true
			}
		case "detached":
			if cur != nil {
				cur.Detached = true
			}
		}
	}
	flush()
	return entries
}

// parseAheadBehind parses `rev-list --left-right --count A...B` output: two
// tab-separated counts, left then right.
func parseAheadBehind(output string) (left, right int, err error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", output)
	}
	if left, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list count %q", fields[0])
	}
	if right, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list count %q", fields[1])
	}
	return left, right, nil
}

// refLine is one `for-each-ref --format=%(refname:short)|%(HEAD)` line.
type refLine struct {
	Name string
	Head bool
}

func parseRefLines(output string) []refLine {
	var refs []refLine
	for _, line := range parseLines(output) {
		name, mark, _ := strings.Cut(line, "|")
		if name == "" {
			continue
		}
		refs = append(refs, refLine{Name: name, Head: mark == "*"})
	}
	return refs
}

// parseUpstream splits "origin/feature-a" into remote and branch. Branch
// names may themselves contain slashes, so only the first segment is the
// remote.
func parseUpstream(ref string) Upstream {
	remote, branch, found := strings.Cut(ref, "/")
	if !found {
		return Upstream{Branch: ref}
	}
	return Upstream{Remote: remote, Branch: branch}
}

// parseLines splits output into trimmed, non-empty lines.
func parseLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// intersect returns the sorted intersection of two file lists.
func intersect(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, f := range a {
		seen[f] = struct{}{}
	}
	out := []string{}
	for _, f := range b {
		if _, ok := seen[f]; ok {
			out = append(out, f)
			delete(seen, f)
		}
	}
	sort.Strings(out)
	return out
}

// hasConflictMarkers reports whether three-way merge output contains
// conflict markers. Informational "changed in both" sections without markers
// mean the sides still merge cleanly.
func hasConflictMarkers(output string) bool {
	return strings.Contains(output, "<<<<<<<")
}

var shortstatRe = regexp.MustCompile(`(\d+) files? changed(?:, (\d+) insertions?\(\+\))?(?:, (\d+) deletions?\(-\))?`)

// parseLog pairs each hash|subject|date|author header line with the
// shortstat line that follows it. Commits with no file changes (such as the
// synthetic initial commit) have no shortstat line at all.
func parseLog(output string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, "|") {
			m := shortstatRe.FindStringSubmatch(line)
			if m == nil || len(commits) == 0 {
				continue
			}
			c := &commits[len(commits)-1]
			c.FilesChanged = atoiOrZero(m[1])
			c.Insertions = atoiOrZero(m[2])
			c.Deletions = atoiOrZero(m[3])
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Subject: parts[1],
			Date:    parts[2],
			Author:  parts[3],
		})
	}
	return commits
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// sortBranches orders branches for selection lists: remote branches first,
// then local branches that already have a worktree, then the rest, each
// group alphabetical.
func sortBranches(branches []Branch) {
	sort.SliceStable(branches, func(i, j int) bool {
		gi, gj := branchGroup(branches[i]), branchGroup(branches[j])
		if gi != gj {
			return gi < gj
		}
		return branches[i].Name < branches[j].Name
	})
}

func branchGroup(b Branch) int {
	switch {
	case b.IsRemote:
		return 0
	case b.HasWorktree:
		return 1
	default:
		return 2
	}
}
