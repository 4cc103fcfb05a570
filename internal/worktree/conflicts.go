// pattern: Imperative Shell

package worktree

import (
	"context"
	"strings"
)

// CheckRebaseConflicts is a non-mutating dry run of rebasing the worktree
// onto mainBranch: it never touches the working copy, the index, or HEAD,
// so it can be called any number of times before a real rebase. When git's
// tree-merge engine is unusable the check degrades to intersecting the
// files changed on each side since the common ancestor, which
// overestimates: touching the same file does not always conflict.
func (m *Manager) CheckRebaseConflicts(ctx context.Context, p Project, name, mainBranch string) (ConflictReport, error) {
	wtPath := m.WorktreePath(p, name)

	behind, _, err := m.aheadBehind(ctx, p, wtPath, mainBranch)
	if err != nil {
		return ConflictReport{}, err
	}
	if behind == 0 {
		return ConflictReport{CanAutoMerge: true, ConflictingFiles: []string{}}, nil
	}

	baseOut, err := m.git(ctx, p, wtPath, m.timeouts.Query, "merge-base", "HEAD", mainBranch)
	if err != nil {
		return ConflictReport{}, err
	}
	mergeBase := strings.TrimSpace(baseOut)

	ours, err := m.changedFiles(ctx, p, wtPath, mergeBase, "HEAD")
	if err != nil {
		return ConflictReport{}, err
	}
	theirs, err := m.changedFiles(ctx, p, wtPath, mergeBase, mainBranch)
	if err != nil {
		return ConflictReport{}, err
	}
	overlap := intersect(ours, theirs)

	conflicted, engineOK := m.tryMergeTree(ctx, p, wtPath, mergeBase, mainBranch)
	if !engineOK {
		conflicted = len(overlap) > 0
	}

	report := ConflictReport{
		HasConflicts:     conflicted,
		CanAutoMerge:     !conflicted,
		ConflictingFiles: []string{},
	}
	if conflicted {
		report.ConflictingFiles = overlap
		report.WorktreeCommits = m.commitSummaries(ctx, p, wtPath, mainBranch+"..HEAD")
		report.MainCommits = m.commitSummaries(ctx, p, wtPath, "HEAD.."+mainBranch)
	}
	return report, nil
}

// tryMergeTree runs the trivial three-way tree merge, which writes nothing.
// ok=false means the engine was unusable (missing subcommand, incompatible
// arguments on an old git) and the caller should fall back to file
// intersection.
func (m *Manager) tryMergeTree(ctx context.Context, p Project, dir, mergeBase, mainBranch string) (conflicted, ok bool) {
	out, err := m.git(ctx, p, dir, m.timeouts.Query, "merge-tree", mergeBase, "HEAD", mainBranch)
	if err == nil {
		return hasConflictMarkers(out), true
	}
	// Some git versions exit non-zero on a conflicted merge while still
	// printing the merged tree; marker output is a usable verdict.
	if ge, isGit := AsGitError(err); isGit && hasConflictMarkers(ge.Stdout) {
		return true, true
	}
	return false, false
}

// changedFiles lists the files changed between base and ref.
func (m *Manager) changedFiles(ctx context.Context, p Project, dir, base, ref string) ([]string, error) {
	out, err := m.git(ctx, p, dir, m.timeouts.Query, "diff", "--name-only", base, ref)
	if err != nil {
		return nil, err
	}
	return parseLines(out), nil
}

// commitSummaries returns one-line summaries for a revision span,
// best-effort: diagnostics only, an error just means an empty list.
func (m *Manager) commitSummaries(ctx context.Context, p Project, dir, span string) []string {
	out, err := m.git(ctx, p, dir, m.timeouts.Query, "log", "--oneline", span)
	if err != nil {
		return nil
	}
	return parseLines(out)
}
