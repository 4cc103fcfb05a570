// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"grove/internal/events"
	"grove/internal/worktree"
)

// syncRequest is the optional body shared by the sync endpoints. A missing
// or empty main means "detect from the project root".
type syncRequest struct {
	Main string `json:"main"`
}

// squashRequest extends syncRequest with the squash commit message.
type squashRequest struct {
	Main    string `json:"main"`
	Message string `json:"message"`
}

// decodeOptional decodes an optional JSON body into v. An empty body leaves
// v at its zero value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// mainFor resolves the integration branch for a sync operation: an explicit
// request value wins, otherwise the project root's checked-out branch.
func (s *Server) mainFor(ctx context.Context, p worktree.Project, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return s.ops.MainBranch(ctx, p)
}

// handleConflicts handles GET /api/projects/{encodedPath}/worktrees/{name}/conflicts?main=BRANCH.
// A dry run: nothing in the repository changes.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	mainBranch, err := s.mainFor(r.Context(), p, r.URL.Query().Get("main"))
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	report, err := s.ops.CheckRebaseConflicts(r.Context(), p, name, mainBranch)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	resp := ConflictResponse{
		HasConflicts:     report.HasConflicts,
		CanAutoMerge:     report.CanAutoMerge,
		ConflictingFiles: report.ConflictingFiles,
		WorktreeCommits:  report.WorktreeCommits,
		MainCommits:      report.MainCommits,
	}
	if resp.ConflictingFiles == nil {
		resp.ConflictingFiles = []string{}
	}
	if resp.WorktreeCommits == nil {
		resp.WorktreeCommits = []string{}
	}
	if resp.MainCommits == nil {
		resp.MainCommits = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRebase handles POST /api/projects/{encodedPath}/worktrees/{name}/rebase.
func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req syncRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mainBranch, err := s.mainFor(r.Context(), p, req.Main)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	if err := s.ops.RebaseOntoMain(r.Context(), p, name, mainBranch); err != nil {
		s.writeGitError(w, err)
		return
	}

	s.publish(events.WorktreeSynced, row.Path, name)
	s.logger.Info("worktree rebased", "project", row.Path, "name", name, "main", mainBranch)
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebased", "main": mainBranch})
}

// handleAbortRebase handles POST /api/projects/{encodedPath}/worktrees/{name}/rebase/abort.
func (s *Server) handleAbortRebase(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	if err := s.ops.AbortRebase(r.Context(), p, name); err != nil {
		s.writeGitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

// handleSquash handles POST /api/projects/{encodedPath}/worktrees/{name}/squash.
// Rebase, squash the branch to one commit, fast-forward main.
func (s *Server) handleSquash(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req squashRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	mainBranch, err := s.mainFor(r.Context(), p, req.Main)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	if err := s.ops.SquashMergeToMain(r.Context(), p, name, mainBranch, req.Message); err != nil {
		s.writeGitError(w, err)
		return
	}

	s.publish(events.WorktreeSynced, row.Path, name)
	s.logger.Info("worktree squash-merged", "project", row.Path, "name", name, "main", mainBranch)
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged", "mode": "squash", "main": mainBranch})
}

// handleMerge handles POST /api/projects/{encodedPath}/worktrees/{name}/merge.
// Rebase then fast-forward main, keeping individual commits.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req syncRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mainBranch, err := s.mainFor(r.Context(), p, req.Main)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	if err := s.ops.MergeToMain(r.Context(), p, name, mainBranch); err != nil {
		s.writeGitError(w, err)
		return
	}

	s.publish(events.WorktreeSynced, row.Path, name)
	s.logger.Info("worktree merged", "project", row.Path, "name", name, "main", mainBranch)
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged", "mode": "merge", "main": mainBranch})
}

// outputHandler adapts the manager operations that return raw git output.
func (s *Server) outputHandler(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, p worktree.Project, name string) (string, error)) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	output, err := op(r.Context(), p, name)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

// handlePush handles POST /api/projects/{encodedPath}/worktrees/{name}/push.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.outputHandler(w, r, s.ops.Push)
}

// handlePull handles POST /api/projects/{encodedPath}/worktrees/{name}/pull.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	s.outputHandler(w, r, s.ops.Pull)
}

// handleFetch handles POST /api/projects/{encodedPath}/worktrees/{name}/fetch.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.outputHandler(w, r, s.ops.Fetch)
}

// handleStash handles POST /api/projects/{encodedPath}/worktrees/{name}/stash.
func (s *Server) handleStash(w http.ResponseWriter, r *http.Request) {
	s.outputHandler(w, r, s.ops.Stash)
}

// handleStashPop handles POST /api/projects/{encodedPath}/worktrees/{name}/stash/pop.
func (s *Server) handleStashPop(w http.ResponseWriter, r *http.Request) {
	s.outputHandler(w, r, s.ops.StashPop)
}

// CommitRequest is the JSON body for committing worktree changes.
type CommitRequest struct {
	Message string `json:"message"`
}

// handleCommit handles POST /api/projects/{encodedPath}/worktrees/{name}/commit.
// Stages everything, then commits.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	output, err := s.ops.CommitAll(r.Context(), p, name, req.Message)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

// handleLog handles GET /api/projects/{encodedPath}/worktrees/{name}/log?n=20.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	limit := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		limit = parsed
	}

	commits, err := s.ops.Log(r.Context(), p, name, limit)
	if err != nil {
		s.writeGitError(w, err)
		return
	}

	result := make([]CommitResponse, 0, len(commits))
	for _, c := range commits {
		result = append(result, CommitResponse{
			Hash:         c.Hash,
			Subject:      c.Subject,
			Date:         c.Date,
			Author:       c.Author,
			FilesChanged: c.FilesChanged,
			Insertions:   c.Insertions,
			Deletions:    c.Deletions,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetUpstream handles GET /api/projects/{encodedPath}/worktrees/{name}/upstream.
// Returns null when the branch tracks nothing.
func (s *Server) handleGetUpstream(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	up, err := s.ops.Upstream(r.Context(), p, name)
	if err != nil {
		s.writeGitError(w, err)
		return
	}
	if up == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, UpstreamResponse{Remote: up.Remote, Branch: up.Branch})
}

// SetUpstreamRequest is the JSON body for setting a tracking branch.
type SetUpstreamRequest struct {
	Branch string `json:"branch"`
}

// handleSetUpstream handles POST /api/projects/{encodedPath}/worktrees/{name}/upstream.
func (s *Server) handleSetUpstream(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	var req SetUpstreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Branch == "" {
		writeError(w, http.StatusBadRequest, "branch is required")
		return
	}

	if err := s.ops.SetUpstream(r.Context(), p, name, req.Branch); err != nil {
		s.writeGitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "set", "branch": req.Branch})
}
