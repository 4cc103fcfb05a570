// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"grove/internal/events"
	"grove/internal/logging"
	"grove/internal/paths"
	"grove/internal/runner"
	"grove/internal/store"
	"grove/internal/worktree"
)

// ProjectSummary is the JSON representation of a registered project.
type ProjectSummary struct {
	Path         string    `json:"path"`
	EncodedPath  string    `json:"encoded_path"`
	WorktreesDir string    `json:"worktrees_dir,omitempty"`
	Env          string    `json:"env"`
	Distro       string    `json:"distro,omitempty"`
	AddedAt      time.Time `json:"added_at"`
	Worktrees    int       `json:"worktrees"`
}

// ProjectDetail is the live view of one project: registry row plus what git
// reports right now.
type ProjectDetail struct {
	Path         string             `json:"path"`
	EncodedPath  string             `json:"encoded_path"`
	WorktreesDir string             `json:"worktrees_dir,omitempty"`
	Env          string             `json:"env"`
	Distro       string             `json:"distro,omitempty"`
	AddedAt      time.Time          `json:"added_at"`
	MainBranch   string             `json:"main_branch,omitempty"`
	Branches     []BranchResponse   `json:"branches"`
	Worktrees    []WorktreeResponse `json:"worktrees"`
}

// BranchResponse is the JSON representation of one branch.
type BranchResponse struct {
	Name        string `json:"name"`
	IsRemote    bool   `json:"is_remote"`
	CheckedOut  bool   `json:"checked_out"`
	HasWorktree bool   `json:"has_worktree"`
}

// WorktreeResponse is the JSON representation of a managed worktree. Base
// fields come from the registry; they are empty for worktrees grove did not
// create.
type WorktreeResponse struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Branch     string     `json:"branch"`
	BaseBranch string     `json:"base_branch,omitempty"`
	BaseCommit string     `json:"base_commit,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// WorktreeDetail adds upstream and rebase state to a worktree.
type WorktreeDetail struct {
	WorktreeResponse
	Upstream    *UpstreamResponse `json:"upstream,omitempty"`
	NeedsRebase *bool             `json:"needs_rebase,omitempty"`
}

// UpstreamResponse identifies a branch's remote tracking branch.
type UpstreamResponse struct {
	Remote string `json:"remote"`
	Branch string `json:"branch"`
}

// CommitResponse is one log entry with its change stats.
type CommitResponse struct {
	Hash         string `json:"hash"`
	Subject      string `json:"subject"`
	Date         string `json:"date"`
	Author       string `json:"author"`
	FilesChanged int    `json:"files_changed"`
	Insertions   int    `json:"insertions"`
	Deletions    int    `json:"deletions"`
}

// ConflictResponse is the result of a rebase dry run.
type ConflictResponse struct {
	HasConflicts     bool     `json:"has_conflicts"`
	CanAutoMerge     bool     `json:"can_auto_merge"`
	ConflictingFiles []string `json:"conflicting_files"`
	WorktreeCommits  []string `json:"worktree_commits"`
	MainCommits      []string `json:"main_commits"`
}

// DiscoveredResponse is one unregistered repository found by the scanner.
type DiscoveredResponse struct {
	Name      string             `json:"name"`
	Path      string             `json:"path"`
	Branch    string             `json:"branch,omitempty"`
	Worktrees []WorktreeResponse `json:"worktrees"`
}

// gitErrorResponse is the full diagnostic payload for a failed git
// operation. Clients get the command transcript, not just a message.
type gitErrorResponse struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	Commands []string `json:"commands,omitempty"`
	Stdout   string   `json:"stdout,omitempty"`
	Stderr   string   `json:"stderr,omitempty"`
	Dir      string   `json:"dir,omitempty"`
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// gitErrorStatus maps error categories to HTTP status codes: transport
// errors are the caller's fault, preconditions and conflicts are state the
// caller must resolve, environment failures are the host's.
func gitErrorStatus(kind worktree.ErrorKind) int {
	switch kind {
	case worktree.KindTransport:
		return http.StatusBadRequest
	case worktree.KindPrecondition, worktree.KindConflict:
		return http.StatusConflict
	case worktree.KindEnvironment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeGitError renders a git failure with its full command transcript.
// Errors that are not GitErrors fall back to a plain 500.
func (s *Server) writeGitError(w http.ResponseWriter, err error) {
	ge, ok := worktree.AsGitError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Warn("git operation failed", "kind", ge.Kind.String(), "error", ge.Error())
	writeJSON(w, gitErrorStatus(ge.Kind), gitErrorResponse{
		Error:    ge.Error(),
		Kind:     ge.Kind.String(),
		Commands: ge.Commands,
		Stdout:   ge.Stdout,
		Stderr:   ge.Stderr,
		Dir:      ge.Dir,
	})
}

// decodeProjectPath decodes a base64-URL-encoded project path from the URL.
func decodeProjectPath(encoded string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid path encoding: %w", err)
	}
	return string(decoded), nil
}

func encodeProjectPath(path string) string {
	return base64.URLEncoding.EncodeToString([]byte(path))
}

// managerProject converts a registry row into the form the worktree manager
// operates on.
func managerProject(row store.Project) worktree.Project {
	return worktree.Project{
		Path:         row.Path,
		WorktreesDir: row.WorktreesDir,
		Env:          row.Env,
		Distro:       row.Distro,
	}
}

// resolveProject decodes the path segment and loads the registry row.
// Writes the error response itself; callers return on !ok.
func (s *Server) resolveProject(w http.ResponseWriter, r *http.Request) (store.Project, worktree.Project, bool) {
	raw, err := decodeProjectPath(r.PathValue("encodedPath"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project path encoding")
		return store.Project{}, worktree.Project{}, false
	}
	row, ok, err := s.store.Project(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registry lookup failed: "+err.Error())
		return store.Project{}, worktree.Project{}, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "project not registered: "+raw)
		return store.Project{}, worktree.Project{}, false
	}
	return row, managerProject(row), true
}

func (s *Server) publish(typ events.Type, project, name string) {
	s.broker.Publish(events.Event{Type: typ, Project: project, Name: name})
}

// mergeProvenance fills registry-recorded base fields into the live worktree
// list. Worktrees created outside grove simply have no provenance.
func (s *Server) mergeProvenance(projectPath string, live []worktree.Worktree) []WorktreeResponse {
	byName := make(map[string]store.Worktree)
	if rows, err := s.store.Worktrees(projectPath); err == nil {
		for _, row := range rows {
			byName[row.Name] = row
		}
	}

	out := make([]WorktreeResponse, 0, len(live))
	for _, wt := range live {
		resp := WorktreeResponse{
			Name:       wt.Name,
			Path:       wt.Path,
			Branch:     wt.Branch,
			BaseBranch: wt.BaseBranch,
			BaseCommit: wt.BaseCommit,
		}
		if row, ok := byName[wt.Name]; ok {
			if resp.BaseBranch == "" {
				resp.BaseBranch = row.BaseBranch
			}
			if resp.BaseCommit == "" {
				resp.BaseCommit = row.BaseCommit
			}
			if !row.CreatedAt.IsZero() {
				created := row.CreatedAt
				resp.CreatedAt = &created
			}
		}
		out = append(out, resp)
	}
	return out
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"version":        s.version,
		"started_at":     s.startedAt,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	}
	if rows, err := s.store.Projects(); err == nil {
		resp["projects"] = len(rows)
	}
	if s.runs != nil {
		resp["runs"] = len(s.runs.List(""))
	}
	if s.registry != nil {
		resp["active_locks"] = s.registry.Active()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogs handles GET /api/logs?n=100.
// Reads recent entries back off the daemon's own log file.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	entries := []logging.LogEntry{}
	if s.logPath != "" {
		read, err := logging.ReadRecent(s.logPath, n)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read log: "+err.Error())
			return
		}
		entries = read
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleDiscovered handles GET /api/discovered.
// Returns scan results minus already-registered projects.
func (s *Server) handleDiscovered(w http.ResponseWriter, r *http.Request) {
	result := []DiscoveredResponse{}
	if s.scanner == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	registered := make(map[string]bool)
	if rows, err := s.store.Projects(); err == nil {
		for _, row := range rows {
			registered[row.Path] = true
		}
	}

	for _, proj := range s.scanner(r.Context()) {
		if registered[proj.Path] {
			continue
		}
		resp := DiscoveredResponse{
			Name:      proj.Name,
			Path:      proj.Path,
			Branch:    proj.Branch,
			Worktrees: []WorktreeResponse{},
		}
		for _, wt := range proj.Worktrees {
			resp.Worktrees = append(resp.Worktrees, WorktreeResponse{
				Name:   wt.Name,
				Path:   wt.Path,
				Branch: wt.Branch,
			})
		}
		result = append(result, resp)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListProjects handles GET /api/projects.
// Served from the registry alone; no git calls, so it is always fast.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Projects()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registry query failed: "+err.Error())
		return
	}

	result := make([]ProjectSummary, 0, len(rows))
	for _, row := range rows {
		summary := ProjectSummary{
			Path:         row.Path,
			EncodedPath:  encodeProjectPath(row.Path),
			WorktreesDir: row.WorktreesDir,
			Env:          row.Env.String(),
			Distro:       row.Distro,
			AddedAt:      row.AddedAt,
		}
		if wts, err := s.store.Worktrees(row.Path); err == nil {
			summary.Worktrees = len(wts)
		}
		result = append(result, summary)
	}
	writeJSON(w, http.StatusOK, result)
}

// AddProjectRequest is the JSON body for registering a project.
type AddProjectRequest struct {
	Path         string `json:"path"`
	WorktreesDir string `json:"worktrees_dir"`
	Env          string `json:"env"`
	Distro       string `json:"distro"`
}

// handleAddProject handles POST /api/projects.
// The path must point at an existing git repository; registration never
// creates one.
func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var req AddProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	env := paths.ParseEnv(req.Env)
	if env == paths.EnvWSL && req.Distro == "" {
		writeError(w, http.StatusBadRequest, "distro is required for wsl projects")
		return
	}

	row := store.Project{
		Path:         req.Path,
		WorktreesDir: req.WorktreesDir,
		Env:          env,
		Distro:       req.Distro,
	}
	if env != paths.EnvWSL {
		row.Path = paths.Canonical(req.Path)
	}

	fsPath := managerProject(row).Resolver().ToFileSystem(row.Path)
	if _, err := os.Stat(fsPath); err != nil {
		writeError(w, http.StatusBadRequest, "project path does not exist: "+fsPath)
		return
	}
	if _, err := os.Stat(filepath.Join(fsPath, ".git")); err != nil {
		writeError(w, http.StatusBadRequest, "not a git repository: "+fsPath)
		return
	}

	if err := s.store.AddProject(row); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register project: "+err.Error())
		return
	}

	// Watch any worktrees that already exist so fs activity shows up
	// without waiting for the next create.
	saved, _, err := s.store.Project(row.Path)
	if err == nil {
		s.watchExisting(r.Context(), saved)
	} else {
		saved = row
	}

	s.publish(events.ProjectAdded, row.Path, "")
	s.logger.Info("project registered", "path", row.Path, "env", env.String())
	writeJSON(w, http.StatusCreated, ProjectSummary{
		Path:         saved.Path,
		EncodedPath:  encodeProjectPath(saved.Path),
		WorktreesDir: saved.WorktreesDir,
		Env:          saved.Env.String(),
		Distro:       saved.Distro,
		AddedAt:      saved.AddedAt,
	})
}

// watchExisting registers filesystem watches for a project's current
// worktrees. Best-effort: a project with no worktrees or a broken repo just
// gets no watches.
func (s *Server) watchExisting(ctx context.Context, row store.Project) {
	if s.monitor == nil {
		return
	}
	p := managerProject(row)
	live, err := s.ops.List(ctx, p)
	if err != nil {
		return
	}
	for _, wt := range live {
		if err := s.monitor.Watch(row.Path, wt.Name, p.Resolver().ToFileSystem(wt.Path)); err != nil {
			s.logger.Warn("watch failed", "worktree", wt.Name, "error", err)
		}
	}
}

// handleGetProject handles GET /api/projects/{encodedPath}.
// Live detail: branches and worktrees come from git, not the registry.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}

	live, err := s.ops.List(r.Context(), p)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	branches, err := s.ops.Branches(r.Context(), p)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	// Detached HEAD leaves main empty rather than failing the whole view.
	mainBranch, _ := s.ops.MainBranch(r.Context(), p)

	detail := ProjectDetail{
		Path:         row.Path,
		EncodedPath:  encodeProjectPath(row.Path),
		WorktreesDir: row.WorktreesDir,
		Env:          row.Env.String(),
		Distro:       row.Distro,
		AddedAt:      row.AddedAt,
		MainBranch:   mainBranch,
		Branches:     make([]BranchResponse, 0, len(branches)),
		Worktrees:    s.mergeProvenance(row.Path, live),
	}
	for _, b := range branches {
		detail.Branches = append(detail.Branches, BranchResponse{
			Name:        b.Name,
			IsRemote:    b.IsRemote,
			CheckedOut:  b.CheckedOut,
			HasWorktree: b.HasWorktree,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleRemoveProject handles DELETE /api/projects/{encodedPath}.
// Unregisters only; worktrees and the repository stay on disk.
func (s *Server) handleRemoveProject(w http.ResponseWriter, r *http.Request) {
	row, _, ok := s.resolveProject(w, r)
	if !ok {
		return
	}

	if s.monitor != nil {
		if rows, err := s.store.Worktrees(row.Path); err == nil {
			for _, wt := range rows {
				s.monitor.Unwatch(row.Path, wt.Name)
			}
		}
	}

	if err := s.store.RemoveProject(row.Path); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unregister project: "+err.Error())
		return
	}

	s.publish(events.ProjectRemoved, row.Path, "")
	s.logger.Info("project unregistered", "path", row.Path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleBranches handles GET /api/projects/{encodedPath}/branches.
func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}

	branches, err := s.ops.Branches(r.Context(), p)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	result := make([]BranchResponse, 0, len(branches))
	for _, b := range branches {
		result = append(result, BranchResponse{
			Name:        b.Name,
			IsRemote:    b.IsRemote,
			CheckedOut:  b.CheckedOut,
			HasWorktree: b.HasWorktree,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListWorktrees handles GET /api/projects/{encodedPath}/worktrees.
func (s *Server) handleListWorktrees(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}

	live, err := s.ops.List(r.Context(), p)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mergeProvenance(row.Path, live))
}

// CreateWorktreeRequest is the JSON body for creating a worktree.
type CreateWorktreeRequest struct {
	Name       string `json:"name"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
}

// handleCreateWorktree handles POST /api/projects/{encodedPath}/worktrees.
func (s *Server) handleCreateWorktree(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}

	var req CreateWorktreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	wt, err := s.ops.Create(r.Context(), p, req.Name, req.Branch, req.BaseBranch)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	if err := s.store.SaveWorktree(store.Worktree{
		ProjectPath: row.Path,
		Name:        wt.Name,
		Branch:      wt.Branch,
		BaseBranch:  wt.BaseBranch,
		BaseCommit:  wt.BaseCommit,
	}); err != nil {
		s.logger.Warn("failed to record worktree provenance", "worktree", wt.Name, "error", err)
	}

	if s.monitor != nil {
		if err := s.monitor.Watch(row.Path, wt.Name, p.Resolver().ToFileSystem(wt.Path)); err != nil {
			s.logger.Warn("watch failed", "worktree", wt.Name, "error", err)
		}
	}

	s.publish(events.WorktreeCreated, row.Path, wt.Name)
	s.logger.Info("worktree created", "project", row.Path, "name", wt.Name, "branch", wt.Branch)
	writeJSON(w, http.StatusCreated, WorktreeResponse{
		Name:       wt.Name,
		Path:       wt.Path,
		Branch:     wt.Branch,
		BaseBranch: wt.BaseBranch,
		BaseCommit: wt.BaseCommit,
	})
}

// handleGetWorktree handles GET /api/projects/{encodedPath}/worktrees/{name}.
func (s *Server) handleGetWorktree(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	live, err := s.ops.List(r.Context(), p)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	var found *worktree.Worktree
	for i := range live {
		if live[i].Name == name {
			found = &live[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "worktree not found: "+name)
		return
	}

	merged := s.mergeProvenance(row.Path, []worktree.Worktree{*found})
	detail := WorktreeDetail{WorktreeResponse: merged[0]}

	if up, err := s.ops.Upstream(r.Context(), p, name); err == nil && up != nil {
		detail.Upstream = &UpstreamResponse{Remote: up.Remote, Branch: up.Branch}
	}
	if mainBranch, err := s.ops.MainBranch(r.Context(), p); err == nil {
		if behind, err := s.ops.HasChangesToRebase(r.Context(), p, name, mainBranch); err == nil {
			detail.NeedsRebase = &behind
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

// handleRemoveWorktree handles DELETE /api/projects/{encodedPath}/worktrees/{name}.
func (s *Server) handleRemoveWorktree(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	if err := s.ops.Remove(r.Context(), p, name); err != nil {
		s.writeGitError(w, err)
		return
	}

	if err := s.store.DeleteWorktree(row.Path, name); err != nil {
		s.logger.Warn("failed to drop worktree row", "worktree", name, "error", err)
	}
	if s.monitor != nil {
		s.monitor.Unwatch(row.Path, name)
	}

	s.publish(events.WorktreeRemoved, row.Path, name)
	s.logger.Info("worktree removed", "project", row.Path, "name", name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// StartRunRequest is the JSON body for starting a supervised run.
type StartRunRequest struct {
	Project    string   `json:"project"`
	Worktree   string   `json:"worktree"`
	Command    []string `json:"command"`
	Env        []string `json:"env"`
	Restart    string   `json:"restart"`
	MaxRetries int      `json:"max_retries"`
}

// handleListRuns handles GET /api/runs?project=PATH.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []runner.Run{})
		return
	}
	writeJSON(w, http.StatusOK, s.runs.List(r.URL.Query().Get("project")))
}

// handleStartRun handles POST /api/runs.
// An empty worktree runs the command at the project root.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run supervision is disabled")
		return
	}

	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Project == "" || len(req.Command) == 0 {
		writeError(w, http.StatusBadRequest, "project and command are required")
		return
	}

	restart := runner.Never
	switch req.Restart {
	case "", "never":
	case "on-failure":
		restart = runner.OnFailure
	case "always":
		restart = runner.Always
	default:
		writeError(w, http.StatusBadRequest, "restart must be one of never, on-failure, always")
		return
	}

	row, ok, err := s.store.Project(req.Project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registry lookup failed: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "project not registered: "+req.Project)
		return
	}

	p := managerProject(row)
	dir := row.Path
	if req.Worktree != "" {
		dir = s.ops.WorktreePath(p, req.Worktree)
		if _, err := os.Stat(p.Resolver().ToFileSystem(dir)); err != nil {
			writeError(w, http.StatusNotFound, "worktree not found: "+req.Worktree)
			return
		}
	}
	if row.Distro == "" {
		dir = p.Resolver().ToFileSystem(dir)
	}

	// Runs outlive the request; StopAll reaps them at daemon shutdown.
	run, err := s.runs.Start(context.Background(), runner.Spec{
		Project:    row.Path,
		Worktree:   req.Worktree,
		Dir:        dir,
		Distro:     row.Distro,
		Command:    req.Command,
		Env:        req.Env,
		Restart:    restart,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start run: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// handleStopRun handles DELETE /api/runs/{id}.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run supervision is disabled")
		return
	}
	if err := s.runs.Stop(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
