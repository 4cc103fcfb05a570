package worktree

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStash(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("stash push", "Saved working directory and index state WIP on feature-a")

	out, err := m.Stash(context.Background(), p, "feature-a")
	if err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if !strings.Contains(out, "Saved working directory") {
		t.Errorf("Stash output = %q", out)
	}
	idx := fake.find("stash push --include-untracked")
	if idx == -1 {
		t.Fatalf("stash must include untracked files; calls: %v", fake.commands())
	}
	if fake.call(idx).Dir != m.WorktreePath(p, "feature-a") {
		t.Errorf("stash ran in %q", fake.call(idx).Dir)
	}
}

func TestStashPop(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if _, err := m.StashPop(context.Background(), p, "feature-a"); err != nil {
		t.Fatalf("StashPop: %v", err)
	}
	if fake.find("stash pop") == -1 {
		t.Errorf("stash pop missing; calls: %v", fake.commands())
	}
}

func TestCommitAll(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("commit -m", "[feature-a 1234567] Add parser")

	out, err := m.CommitAll(context.Background(), p, "feature-a", "Add parser")
	if err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	if !strings.Contains(out, "1234567") {
		t.Errorf("CommitAll output = %q", out)
	}
	add := fake.find("add -A")
	commit := fake.find("commit -m")
	if add == -1 || commit == -1 || add > commit {
		t.Errorf("staging must precede the commit; calls: %v", fake.commands())
	}
	// The user's own identity commits the user's work.
	if env := fake.call(commit).Env; len(env) != 0 {
		t.Errorf("CommitAll must not override identity, env = %v", env)
	}
}

func TestCommitAllNothingToCommit(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("commit -m", "nothing to commit, working tree clean", 1)

	_, err := m.CommitAll(context.Background(), p, "feature-a", "msg")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("error = %v, want ErrNothingToCommit", err)
	}
	if !IsKind(err, KindPrecondition) {
		t.Errorf("clean tree must be a precondition failure")
	}
}

func TestCommitAllFailureCarriesStageCommand(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("commit -m", "fatal: unable to write new index file", 128)

	_, err := m.CommitAll(context.Background(), p, "feature-a", "msg")
	ge, ok := AsGitError(err)
	if !ok {
		t.Fatalf("error = %v, want GitError", err)
	}
	if len(ge.Commands) != 2 || ge.Commands[0] != "git add -A" {
		t.Errorf("Commands = %v, want the staging step included", ge.Commands)
	}
}

func TestCommitAllEmptyMessage(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if _, err := m.CommitAll(context.Background(), p, "feature-a", "\t "); !IsKind(err, KindTransport) {
		t.Fatalf("error = %v, want transport kind", err)
	}
	if len(fake.commands()) != 0 {
		t.Errorf("no git command may run for an empty message")
	}
}

func TestLog(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("log -n 20", "1111111|Add parser|2026-08-20 10:00:00 +0200|Ada\n 2 files changed, 12 insertions(+), 1 deletion(-)\n2222222|Initial commit|2026-08-19 09:00:00 +0200|Grove Agent")

	commits, err := m.Log(context.Background(), p, "feature-a", 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("Log = %+v", commits)
	}
	if commits[0].Subject != "Add parser" || commits[0].FilesChanged != 2 {
		t.Errorf("commits[0] = %+v", commits[0])
	}
}

func TestLogCustomLimit(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if _, err := m.Log(context.Background(), p, "feature-a", 5); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if fake.find("log -n 5") == -1 {
		t.Errorf("limit not honored; calls: %v", fake.commands())
	}
}

func TestLogEmptyRepository(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("log -n", "fatal: your current branch 'main' does not have any commits yet", 128)

	commits, err := m.Log(context.Background(), p, "feature-a", 0)
	if err != nil {
		t.Fatalf("an empty history is not an error, got %v", err)
	}
	if commits == nil || len(commits) != 0 {
		t.Errorf("Log = %#v, want empty non-nil slice", commits)
	}
}
