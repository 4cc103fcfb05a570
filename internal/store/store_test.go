package store

import (
	"os"
	"path/filepath"
	"testing"

	"grove/internal/paths"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "grove.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("DB file not created: %v", err)
	}
}

func TestAddAndListProjects(t *testing.T) {
	s := tempStore(t)

	if err := s.AddProject(Project{Path: "/home/dev/zebra"}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if err := s.AddProject(Project{
		Path:         "/home/dev/app",
		WorktreesDir: "wt",
		Env:          paths.EnvWSL,
		Distro:       "Ubuntu",
	}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	projects, err := s.Projects()
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	// Ordered by path
	if projects[0].Path != "/home/dev/app" {
		t.Errorf("projects[0].Path = %q, want /home/dev/app", projects[0].Path)
	}
	p := projects[0]
	if p.WorktreesDir != "wt" {
		t.Errorf("WorktreesDir = %q, want %q", p.WorktreesDir, "wt")
	}
	if p.Env != paths.EnvWSL {
		t.Errorf("Env = %v, want EnvWSL", p.Env)
	}
	if p.Distro != "Ubuntu" {
		t.Errorf("Distro = %q, want %q", p.Distro, "Ubuntu")
	}
	if p.AddedAt.IsZero() {
		t.Error("AddedAt should be populated")
	}
}

func TestAddProjectTwiceUpdatesSettings(t *testing.T) {
	s := tempStore(t)

	if err := s.AddProject(Project{Path: "/home/dev/app"}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if err := s.AddProject(Project{Path: "/home/dev/app", WorktreesDir: "trees"}); err != nil {
		t.Fatalf("AddProject again: %v", err)
	}

	projects, err := s.Projects()
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project after re-add, got %d", len(projects))
	}
	if projects[0].WorktreesDir != "trees" {
		t.Errorf("WorktreesDir = %q, want updated value", projects[0].WorktreesDir)
	}
}

func TestProjectLookup(t *testing.T) {
	s := tempStore(t)

	if err := s.AddProject(Project{Path: "/home/dev/app"}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	p, ok, err := s.Project("/home/dev/app")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !ok {
		t.Fatal("expected project to be found")
	}
	if p.Path != "/home/dev/app" {
		t.Errorf("Path = %q", p.Path)
	}

	_, ok, err = s.Project("/home/dev/ghost")
	if err != nil {
		t.Fatalf("Project (missing): %v", err)
	}
	if ok {
		t.Error("expected missing project to report not found")
	}
}

func TestRemoveProjectDropsWorktreeRows(t *testing.T) {
	s := tempStore(t)

	if err := s.AddProject(Project{Path: "/home/dev/app"}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if err := s.SaveWorktree(Worktree{
		ProjectPath: "/home/dev/app",
		Name:        "feature-a",
		Branch:      "feature-a",
	}); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}

	if err := s.RemoveProject("/home/dev/app"); err != nil {
		t.Fatalf("RemoveProject: %v", err)
	}

	projects, err := s.Projects()
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects, got %d", len(projects))
	}
	wts, err := s.Worktrees("/home/dev/app")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 0 {
		t.Errorf("expected worktree rows to be dropped with the project, got %d", len(wts))
	}
}

func TestRemoveUnknownProjectIsNoop(t *testing.T) {
	s := tempStore(t)
	if err := s.RemoveProject("/nope"); err != nil {
		t.Fatalf("RemoveProject on unknown path: %v", err)
	}
}

func TestSaveWorktreeProvenance(t *testing.T) {
	s := tempStore(t)

	if err := s.SaveWorktree(Worktree{
		ProjectPath: "/home/dev/app",
		Name:        "feature-a",
		Branch:      "feature-a",
		BaseBranch:  "main",
		BaseCommit:  "abc1234",
	}); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}

	wts, err := s.Worktrees("/home/dev/app")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 1 {
		t.Fatalf("expected 1 worktree, got %d", len(wts))
	}
	w := wts[0]
	if w.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q, want %q", w.BaseBranch, "main")
	}
	if w.BaseCommit != "abc1234" {
		t.Errorf("BaseCommit = %q, want %q", w.BaseCommit, "abc1234")
	}
	if w.CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}
}

func TestSaveWorktreeUpsert(t *testing.T) {
	s := tempStore(t)

	base := Worktree{ProjectPath: "/p", Name: "wt", Branch: "old"}
	if err := s.SaveWorktree(base); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}
	base.Branch = "new"
	if err := s.SaveWorktree(base); err != nil {
		t.Fatalf("SaveWorktree (update): %v", err)
	}

	wts, err := s.Worktrees("/p")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(wts))
	}
	if wts[0].Branch != "new" {
		t.Errorf("Branch = %q, want %q", wts[0].Branch, "new")
	}
}

func TestDeleteWorktree(t *testing.T) {
	s := tempStore(t)

	if err := s.SaveWorktree(Worktree{ProjectPath: "/p", Name: "wt", Branch: "b"}); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}
	if err := s.DeleteWorktree("/p", "wt"); err != nil {
		t.Fatalf("DeleteWorktree: %v", err)
	}
	// Deleting again is fine
	if err := s.DeleteWorktree("/p", "wt"); err != nil {
		t.Fatalf("DeleteWorktree (absent): %v", err)
	}

	wts, err := s.Worktrees("/p")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 0 {
		t.Errorf("expected no rows, got %d", len(wts))
	}
}

func TestPruneWorktrees(t *testing.T) {
	s := tempStore(t)

	for _, name := range []string{"alive", "stale-1", "stale-2"} {
		if err := s.SaveWorktree(Worktree{ProjectPath: "/p", Name: name, Branch: name}); err != nil {
			t.Fatalf("SaveWorktree(%s): %v", name, err)
		}
	}

	removed, err := s.PruneWorktrees("/p", []string{"alive"})
	if err != nil {
		t.Fatalf("PruneWorktrees: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	wts, err := s.Worktrees("/p")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 1 || wts[0].Name != "alive" {
		t.Errorf("surviving rows = %+v, want just alive", wts)
	}
}

func TestPruneWorktreesScopedToProject(t *testing.T) {
	s := tempStore(t)

	if err := s.SaveWorktree(Worktree{ProjectPath: "/p1", Name: "wt", Branch: "b"}); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}
	if err := s.SaveWorktree(Worktree{ProjectPath: "/p2", Name: "wt", Branch: "b"}); err != nil {
		t.Fatalf("SaveWorktree: %v", err)
	}

	// Pruning p1 with nothing live must not touch p2's rows.
	if _, err := s.PruneWorktrees("/p1", nil); err != nil {
		t.Fatalf("PruneWorktrees: %v", err)
	}

	wts, err := s.Worktrees("/p2")
	if err != nil {
		t.Fatalf("Worktrees: %v", err)
	}
	if len(wts) != 1 {
		t.Errorf("p2 rows = %d, want 1", len(wts))
	}
}
