package worktree

import (
	"context"
	"reflect"
	"testing"
)

const conflictedTree = `changed in both
  base   100644 1111111 file.txt
  our    100644 2222222 file.txt
  their  100644 3333333 file.txt
@@ -1,1 +1,5 @@
+<<<<<<< .our
 ours
+=======
+theirs
+>>>>>>> .their
`

func TestCheckRebaseConflictsUpToDate(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "0\t3")

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if !report.CanAutoMerge || report.HasConflicts {
		t.Errorf("report = %+v, want auto-mergeable", report)
	}
	if len(fake.commands()) != 1 {
		t.Errorf("nothing to rebase must stop after the count; calls: %v", fake.commands())
	}
}

// Worktree has two commits touching file.txt, main one commit touching the
// same file since the ancestor: the dry run must flag it without mutating
// anything.
func TestCheckRebaseConflictsBothSidesTouchFile(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "1\t2")
	fake.on("merge-base HEAD main", "deadbeef")
	fake.on("diff --name-only deadbeef HEAD", "file.txt\nlib.go")
	fake.on("diff --name-only deadbeef main", "file.txt")
	fake.on("merge-tree", conflictedTree)
	fake.on("log --oneline main..HEAD", "2222222 second change\n1111111 first change")
	fake.on("log --oneline HEAD..main", "3333333 main change")

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if !report.HasConflicts || report.CanAutoMerge {
		t.Fatalf("report = %+v, want a conflict", report)
	}
	if !reflect.DeepEqual(report.ConflictingFiles, []string{"file.txt"}) {
		t.Errorf("ConflictingFiles = %v, want [file.txt]", report.ConflictingFiles)
	}
	if len(report.WorktreeCommits) != 2 || len(report.MainCommits) != 1 {
		t.Errorf("commit summaries = %+v", report)
	}

	// Strictly read-only: no command that can move HEAD or the index.
	for _, forbidden := range []string{"rebase", "checkout", "reset", "merge --ff-only", "stash"} {
		if fake.find(forbidden) != -1 {
			t.Errorf("dry run executed %q; calls: %v", forbidden, fake.commands())
		}
	}
}

func TestCheckRebaseConflictsCleanEngineVerdictWins(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "1\t1")
	fake.on("merge-base HEAD main", "deadbeef")
	// Both sides touched file.txt, but in different hunks: the tree merge is
	// clean, and its verdict beats the file intersection.
	fake.on("diff --name-only deadbeef HEAD", "file.txt")
	fake.on("diff --name-only deadbeef main", "file.txt")
	fake.on("merge-tree", "changed in both\n  base   100644 1111111 file.txt\n+merged cleanly\n")

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if report.HasConflicts || !report.CanAutoMerge {
		t.Errorf("report = %+v, want auto-mergeable despite the shared file", report)
	}
}

func TestCheckRebaseConflictsFallbackIntersection(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "1\t1")
	fake.on("merge-base HEAD main", "deadbeef")
	fake.on("diff --name-only deadbeef HEAD", "file.txt\nlib.go")
	fake.on("diff --name-only deadbeef main", "docs.md\nfile.txt")
	fake.fail("merge-tree", "git: 'merge-tree' is not a git command. See 'git --help'.", 1)

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if !report.HasConflicts {
		t.Errorf("fallback must flag overlapping files: %+v", report)
	}
	if !reflect.DeepEqual(report.ConflictingFiles, []string{"file.txt"}) {
		t.Errorf("ConflictingFiles = %v", report.ConflictingFiles)
	}
}

func TestCheckRebaseConflictsFallbackNoOverlap(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "2\t1")
	fake.on("merge-base HEAD main", "deadbeef")
	fake.on("diff --name-only deadbeef HEAD", "lib.go")
	fake.on("diff --name-only deadbeef main", "docs.md")
	fake.fail("merge-tree", "usage: git merge-tree <base-tree> <branch1> <branch2>", 129)

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if report.HasConflicts || !report.CanAutoMerge {
		t.Errorf("report = %+v, want auto-mergeable with disjoint files", report)
	}
}

func TestCheckRebaseConflictsNonZeroEngineWithMarkers(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "1\t1")
	fake.on("merge-base HEAD main", "deadbeef")
	fake.on("diff --name-only deadbeef HEAD", "file.txt")
	fake.on("diff --name-only deadbeef main", "file.txt")
	fake.failOut("merge-tree", conflictedTree, 1)

	report, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("CheckRebaseConflicts: %v", err)
	}
	if !report.HasConflicts {
		t.Errorf("marker output on a non-zero exit is still a conflict verdict: %+v", report)
	}
}

func TestCheckRebaseConflictsRepeatable(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("rev-list --left-right --count main...HEAD", "1\t2")
	fake.on("merge-base HEAD main", "deadbeef")
	fake.on("diff --name-only deadbeef HEAD", "file.txt")
	fake.on("diff --name-only deadbeef main", "file.txt")
	fake.on("merge-tree", conflictedTree)
	fake.on("log --oneline main..HEAD", "2222222 change")
	fake.on("log --oneline HEAD..main", "3333333 other change")

	first, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := m.CheckRebaseConflicts(context.Background(), p, "feature-a", "main")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated dry runs diverged: %+v vs %+v", first, second)
	}
}
