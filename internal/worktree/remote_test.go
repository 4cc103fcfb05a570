package worktree

import (
	"context"
	"strings"
	"testing"
)

func TestPushFirstPushSetsUpstream(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("@{u}", "fatal: no upstream configured for branch 'feature-a'", 128)
	fake.on("rev-parse --abbrev-ref HEAD", "feature-a")

	if _, err := m.Push(context.Background(), p, "feature-a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if fake.find("push --set-upstream origin feature-a") == -1 {
		t.Errorf("first push must set the upstream; calls: %v", fake.commands())
	}
}

func TestPushWithUpstream(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("@{u}", "origin/feature-a")

	if _, err := m.Push(context.Background(), p, "feature-a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	for _, args := range fake.commands() {
		if args == "push" {
			return
		}
	}
	t.Errorf("plain push missing; calls: %v", fake.commands())
}

func TestPull(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("pull", "Already up to date.")

	out, err := m.Pull(context.Background(), p, "feature-a")
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if !strings.Contains(out, "Already up to date") {
		t.Errorf("Pull output = %q", out)
	}
	if fake.call(fake.find("pull")).Dir != m.WorktreePath(p, "feature-a") {
		t.Errorf("pull must run in the worktree")
	}
}

func TestFetch(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if _, err := m.Fetch(context.Background(), p, "feature-a"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	idx := fake.find("fetch --prune")
	if idx == -1 {
		t.Fatalf("fetch never ran")
	}
	if fake.call(idx).Dir != m.WorktreePath(p, "feature-a") {
		t.Errorf("fetch ran in %q", fake.call(idx).Dir)
	}
}

func TestUpstream(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("@{u}", "origin/feature-a")

	up, err := m.Upstream(context.Background(), p, "feature-a")
	if err != nil {
		t.Fatalf("Upstream: %v", err)
	}
	if up == nil || up.Remote != "origin" || up.Branch != "feature-a" {
		t.Errorf("Upstream = %+v", up)
	}
}

func TestUpstreamNoneConfigured(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("@{u}", "fatal: no upstream configured for branch 'feature-a'", 128)

	up, err := m.Upstream(context.Background(), p, "feature-a")
	if err != nil {
		t.Fatalf("no upstream must not be an error, got %v", err)
	}
	if up != nil {
		t.Errorf("Upstream = %+v, want nil", up)
	}
}

func TestSetUpstream(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if err := m.SetUpstream(context.Background(), p, "feature-a", "origin/feature-a"); err != nil {
		t.Fatalf("SetUpstream: %v", err)
	}
	if fake.find("branch --set-upstream-to origin/feature-a") == -1 {
		t.Errorf("set-upstream-to missing; calls: %v", fake.commands())
	}
}

func TestSetUpstreamEmptyBranch(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)

	if err := m.SetUpstream(context.Background(), p, "feature-a", " "); !IsKind(err, KindTransport) {
		t.Fatalf("error = %v, want transport kind", err)
	}
	if len(fake.commands()) != 0 {
		t.Errorf("no git command may run for an empty upstream")
	}
}

func TestRemoteBranches(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("refs/remotes", "origin/HEAD\norigin/main\norigin/feature-a\n")

	names, err := m.RemoteBranches(context.Background(), p)
	if err != nil {
		t.Fatalf("RemoteBranches: %v", err)
	}
	if len(names) != 2 || names[0] != "origin/main" || names[1] != "origin/feature-a" {
		t.Errorf("RemoteBranches = %v, want the symbolic HEAD filtered out", names)
	}
}

func TestOriginBranch(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.on("symbolic-ref refs/remotes/origin/HEAD", "refs/remotes/origin/main")

	got, err := m.OriginBranch(context.Background(), p)
	if err != nil {
		t.Fatalf("OriginBranch: %v", err)
	}
	if got != "main" {
		t.Errorf("OriginBranch = %q, want main", got)
	}
	if fake.find("remote set-head") != -1 {
		t.Errorf("no remote round trip needed when the symref is set")
	}
}

func TestOriginBranchResolvesOnDemand(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.failOnce("symbolic-ref", "fatal: ref refs/remotes/origin/HEAD is not a symbolic ref", 128)
	fake.on("symbolic-ref refs/remotes/origin/HEAD", "refs/remotes/origin/trunk")

	got, err := m.OriginBranch(context.Background(), p)
	if err != nil {
		t.Fatalf("OriginBranch: %v", err)
	}
	if got != "trunk" {
		t.Errorf("OriginBranch = %q, want trunk", got)
	}
	if fake.find("remote set-head origin --auto") == -1 {
		t.Errorf("missing the one-time remote resolution; calls: %v", fake.commands())
	}
}

func TestOriginBranchUnavailable(t *testing.T) {
	m, fake := newTestManager(t)
	p := testProject(t)
	fake.fail("symbolic-ref", "fatal: ref refs/remotes/origin/HEAD is not a symbolic ref", 128)
	fake.fail("remote set-head", "fatal: could not read from remote repository", 128)

	if _, err := m.OriginBranch(context.Background(), p); err == nil {
		t.Fatalf("want an error when origin's default branch cannot be resolved")
	}
}
