package worktree

import (
	"reflect"
	"testing"
)

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /home/dev/app
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /home/dev/app/.worktrees/feature-a
HEAD 2222222222222222222222222222222222222222
branch refs/heads/feature-a

worktree /home/dev/app/.worktrees/detached-wt
HEAD 3333333333333333333333333333333333333333
detached
`
	entries := parseWorktreeList(output)
	if len(entries) != 3 {
		t.Fatalf("parsed %d entries, want 3", len(entries))
	}
	if entries[0].Path != "/home/dev/app" || entries[0].Branch != "main" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Branch != "feature-a" {
		t.Errorf("entry 1 branch = %q, want feature-a", entries[1].Branch)
	}
	if !entries[2].Detached || entries[2].Branch != "" {
		t.Errorf("entry 2 = %+v, want detached with no branch", entries[2])
	}
}

func TestParseWorktreeListTolerant(t *testing.T) {
	// Missing trailing blank line and an unknown attribute must not break
	// parsing.
	output := "worktree /p/.worktrees/x\nHEAD 4444444444444444444444444444444444444444\nlocked reason\nbranch refs/heads/x"
	entries := parseWorktreeList(output)
	if len(entries) != 1 {
		t.Fatalf("parsed %d entries, want 1", len(entries))
	}
	if entries[0].Path != "/p/.worktrees/x" || entries[0].Branch != "x" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestParseWorktreeListBare(t *testing.T) {
	entries := parseWorktreeList("worktree /srv/repo.git\nbare\n")
	if len(entries) != 1 || !entries[0].Bare {
		t.Fatalf("entries = %+v, want one bare entry", entries)
	}
}

func TestParseAheadBehind(t *testing.T) {
	tests := []struct {
		output  string
		left    int
		right   int
		wantErr bool
	}{
		{"2\t3", 2, 3, false},
		{"0\t0\n", 0, 0, false},
		{"  5\t1  ", 5, 1, false},
		{"", 0, 0, true},
		{"junk", 0, 0, true},
		{"1\t2\t3", 0, 0, true},
	}
	for _, tt := range tests {
		left, right, err := parseAheadBehind(tt.output)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAheadBehind(%q) error = %v, wantErr %v", tt.output, err, tt.wantErr)
			continue
		}
		if err == nil && (left != tt.left || right != tt.right) {
			t.Errorf("parseAheadBehind(%q) = (%d, %d), want (%d, %d)", tt.output, left, right, tt.left, tt.right)
		}
	}
}

func TestParseRefLines(t *testing.T) {
	refs := parseRefLines("main|*\nfeature-a|\nfeature-b|\n")
	if len(refs) != 3 {
		t.Fatalf("parsed %d refs, want 3", len(refs))
	}
	if !refs[0].Head || refs[0].Name != "main" {
		t.Errorf("refs[0] = %+v, want main marked as HEAD", refs[0])
	}
	if refs[1].Head {
		t.Errorf("feature-a must not be marked as HEAD")
	}
}

func TestParseUpstream(t *testing.T) {
	tests := []struct {
		ref  string
		want Upstream
	}{
		{"origin/feature-a", Upstream{Remote: "origin", Branch: "feature-a"}},
		{"origin/feature/auth", Upstream{Remote: "origin", Branch: "feature/auth"}},
		{"main", Upstream{Branch: "main"}},
	}
	for _, tt := range tests {
		if got := parseUpstream(tt.ref); got != tt.want {
			t.Errorf("parseUpstream(%q) = %+v, want %+v", tt.ref, got, tt.want)
		}
	}
}

func TestIntersect(t *testing.T) {
	got := intersect(
		[]string{"b.txt", "a.txt", "c.txt"},
		[]string{"c.txt", "d.txt", "a.txt"},
	)
	want := []string{"a.txt", "c.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("intersect = %v, want %v", got, want)
	}

	if got := intersect(nil, []string{"a"}); len(got) != 0 {
		t.Errorf("intersect with empty side = %v, want empty", got)
	}
}

func TestHasConflictMarkers(t *testing.T) {
	conflicted := "changed in both\n  base   100644 1111 file.txt\n+<<<<<<< .our\n+ours\n+=======\n+theirs\n+>>>>>>> .their\n"
	if !hasConflictMarkers(conflicted) {
		t.Errorf("marker output must report a conflict")
	}
	// "changed in both" alone means git merged the hunks cleanly.
	clean := "changed in both\n  base   100644 1111 file.txt\n+merged line\n"
	if hasConflictMarkers(clean) {
		t.Errorf("clean both-sides change must not report a conflict")
	}
}

func TestParseLog(t *testing.T) {
	output := `1111111|Add login form|2026-08-20 10:00:00 +0000|Ada
 2 files changed, 40 insertions(+), 3 deletions(-)
2222222|Fix typo|2026-08-19 09:00:00 +0000|Grace
 1 file changed, 1 insertion(+), 1 deletion(-)
3333333|Initial commit|2026-08-18 08:00:00 +0000|Grove`
	commits := parseLog(output)
	if len(commits) != 3 {
		t.Fatalf("parsed %d commits, want 3", len(commits))
	}
	first := commits[0]
	if first.Hash != "1111111" || first.Subject != "Add login form" || first.Author != "Ada" {
		t.Errorf("first commit = %+v", first)
	}
	if first.FilesChanged != 2 || first.Insertions != 40 || first.Deletions != 3 {
		t.Errorf("first commit stats = %+v", first)
	}
	if commits[1].Insertions != 1 || commits[1].Deletions != 1 {
		t.Errorf("second commit stats = %+v", commits[1])
	}
	// The empty initial commit has no shortstat line.
	last := commits[2]
	if last.FilesChanged != 0 || last.Insertions != 0 || last.Deletions != 0 {
		t.Errorf("commit with no stats = %+v", last)
	}
}

func TestParseLogInsertionsOnly(t *testing.T) {
	commits := parseLog("abc1234|Add file|2026-08-21 12:00:00 +0000|Ada\n 1 file changed, 10 insertions(+)")
	if len(commits) != 1 {
		t.Fatalf("parsed %d commits, want 1", len(commits))
	}
	if commits[0].Insertions != 10 || commits[0].Deletions != 0 {
		t.Errorf("stats = %+v", commits[0])
	}
}

func TestSortBranches(t *testing.T) {
	branches := []Branch{
		{Name: "zeta"},
		{Name: "alpha", HasWorktree: true},
		{Name: "origin/main", IsRemote: true},
		{Name: "beta"},
		{Name: "origin/dev", IsRemote: true},
		{Name: "delta", HasWorktree: true},
	}
	sortBranches(branches)
	wantOrder := []string{"origin/dev", "origin/main", "alpha", "delta", "beta", "zeta"}
	for i, want := range wantOrder {
		if branches[i].Name != want {
			t.Fatalf("position %d = %q, want %q (full order: %+v)", i, branches[i].Name, want, branches)
		}
	}
}
