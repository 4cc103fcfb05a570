// pattern: Imperative Shell

// Package store persists the project and worktree registry between daemon
// runs. The git tree stays the source of truth: rows record what grove
// created and why (base branch, base commit), and stale rows are pruned
// against the live worktree list at load.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"grove/internal/paths"
)

// Project is one registered repository.
type Project struct {
	Path         string // stored form
	WorktreesDir string // empty means the default
	Env          paths.Env
	Distro       string
	AddedAt      time.Time
}

// Worktree is the provenance record for one managed worktree.
type Worktree struct {
	ProjectPath string
	Name        string
	Branch      string
	BaseBranch  string
	BaseCommit  string
	CreatedAt   time.Time
}

// Store is the SQLite-backed registry.
type Store struct {
	db *sql.DB
}

// Open opens or creates the registry at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		path TEXT PRIMARY KEY,
		worktrees_dir TEXT NOT NULL DEFAULT '',
		env TEXT NOT NULL DEFAULT 'posix',
		distro TEXT NOT NULL DEFAULT '',
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS worktrees (
		project_path TEXT NOT NULL,
		name TEXT NOT NULL,
		branch TEXT NOT NULL,
		base_branch TEXT NOT NULL DEFAULT '',
		base_commit TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (project_path, name)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AddProject registers a project, updating its settings if it already exists.
func (s *Store) AddProject(p Project) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (path, worktrees_dir, env, distro) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET worktrees_dir = excluded.worktrees_dir,
		   env = excluded.env, distro = excluded.distro`,
		p.Path, p.WorktreesDir, p.Env.String(), p.Distro,
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// RemoveProject unregisters a project and drops its worktree rows. Removing
// an unknown project is not an error.
func (s *Store) RemoveProject(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning removal: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM worktrees WHERE project_path = ?`, path); err != nil {
		return fmt.Errorf("deleting worktree rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM projects WHERE path = ?`, path); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return tx.Commit()
}

// Projects returns all registered projects ordered by path.
func (s *Store) Projects() ([]Project, error) {
	rows, err := s.db.Query(
		`SELECT path, worktrees_dir, env, distro, added_at FROM projects ORDER BY path`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var env string
		if err := rows.Scan(&p.Path, &p.WorktreesDir, &env, &p.Distro, &p.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Env = paths.ParseEnv(env)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Project returns one registered project by path.
func (s *Store) Project(path string) (Project, bool, error) {
	var p Project
	var env string
	err := s.db.QueryRow(
		`SELECT path, worktrees_dir, env, distro, added_at FROM projects WHERE path = ?`,
		path,
	).Scan(&p.Path, &p.WorktreesDir, &env, &p.Distro, &p.AddedAt)
	if err == sql.ErrNoRows {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, fmt.Errorf("querying project: %w", err)
	}
	p.Env = paths.ParseEnv(env)
	return p, true, nil
}

// SaveWorktree records a worktree's provenance, replacing any previous row
// for the same (project, name).
func (s *Store) SaveWorktree(w Worktree) error {
	_, err := s.db.Exec(
		`INSERT INTO worktrees (project_path, name, branch, base_branch, base_commit)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_path, name) DO UPDATE SET branch = excluded.branch,
		   base_branch = excluded.base_branch, base_commit = excluded.base_commit`,
		w.ProjectPath, w.Name, w.Branch, w.BaseBranch, w.BaseCommit,
	)
	if err != nil {
		return fmt.Errorf("inserting worktree: %w", err)
	}
	return nil
}

// DeleteWorktree drops the row for one worktree. Deleting an unknown row is
// not an error.
func (s *Store) DeleteWorktree(projectPath, name string) error {
	if _, err := s.db.Exec(
		`DELETE FROM worktrees WHERE project_path = ? AND name = ?`,
		projectPath, name,
	); err != nil {
		return fmt.Errorf("deleting worktree: %w", err)
	}
	return nil
}

// Worktrees returns the recorded worktrees of one project ordered by name.
func (s *Store) Worktrees(projectPath string) ([]Worktree, error) {
	rows, err := s.db.Query(
		`SELECT project_path, name, branch, base_branch, base_commit, created_at
		 FROM worktrees WHERE project_path = ? ORDER BY name`,
		projectPath,
	)
	if err != nil {
		return nil, fmt.Errorf("querying worktrees: %w", err)
	}
	defer rows.Close()

	var worktrees []Worktree
	for rows.Next() {
		var w Worktree
		if err := rows.Scan(&w.ProjectPath, &w.Name, &w.Branch, &w.BaseBranch,
			&w.BaseCommit, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning worktree: %w", err)
		}
		worktrees = append(worktrees, w)
	}
	return worktrees, rows.Err()
}

// PruneWorktrees deletes rows for worktrees git no longer knows about and
// returns how many were removed. live is the current name list from the
// worktree manager.
func (s *Store) PruneWorktrees(projectPath string, live []string) (int, error) {
	keep := make(map[string]bool, len(live))
	for _, name := range live {
		keep[name] = true
	}

	recorded, err := s.Worktrees(projectPath)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, w := range recorded {
		if keep[w.Name] {
			continue
		}
		if err := s.DeleteWorktree(projectPath, w.Name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
