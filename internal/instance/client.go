// pattern: Imperative Shell
package instance

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a thin HTTP client for communicating with a running grove instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithTimeout creates a Client with a custom timeout.
// Used for long-running operations like rebases over slow networks.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// encodeProject encodes a project path for use as a URL path segment.
// Project paths contain slashes, so they travel base64url-encoded.
func encodeProject(projectPath string) string {
	return base64.URLEncoding.EncodeToString([]byte(projectPath))
}

// get performs a GET request and returns the response body.
func (c *Client) get(path string) ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grove: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("grove returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// post performs a POST request with no body and returns the response body.
func (c *Client) post(path string) ([]byte, error) {
	req, err := http.NewRequest("POST", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grove: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("grove returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// delete performs a DELETE request and returns the response body.
func (c *Client) delete(path string) ([]byte, error) {
	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grove: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(body)
		return nil, fmt.Errorf("grove returned status %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// postJSON performs a POST request with a JSON body and returns the response body.
func (c *Client) postJSON(path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grove: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(respBody)
		return nil, fmt.Errorf("grove returned status %d: %s", resp.StatusCode, msg)
	}

	return respBody, nil
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}

// Status fetches daemon status (version, uptime, counts).
func (c *Client) Status() ([]byte, error) {
	return c.get("/api/status")
}

// Logs fetches the last n daemon log entries.
func (c *Client) Logs(n int) ([]byte, error) {
	path := "/api/logs"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	return c.get(path)
}

// Projects fetches the registered project list.
func (c *Client) Projects() ([]byte, error) {
	return c.get("/api/projects")
}

// Discovered fetches repositories found under the configured scan paths
// that are not yet registered.
func (c *Client) Discovered() ([]byte, error) {
	return c.get("/api/discovered")
}

// AddProject registers a repository with the daemon. worktreesDir, env and
// distro are optional; empty strings take the daemon's defaults.
func (c *Client) AddProject(projectPath, worktreesDir, env, distro string) ([]byte, error) {
	body := map[string]string{"path": projectPath}
	if worktreesDir != "" {
		body["worktrees_dir"] = worktreesDir
	}
	if env != "" {
		body["env"] = env
	}
	if distro != "" {
		body["distro"] = distro
	}
	return c.postJSON("/api/projects", body)
}

// RemoveProject unregisters a project. Worktrees on disk are left alone.
func (c *Client) RemoveProject(projectPath string) ([]byte, error) {
	return c.delete("/api/projects/" + encodeProject(projectPath))
}

// Project fetches live detail for one project (branches, worktrees, main branch).
func (c *Client) Project(projectPath string) ([]byte, error) {
	return c.get("/api/projects/" + encodeProject(projectPath))
}

// Branches lists local and remote branches of a project.
func (c *Client) Branches(projectPath string) ([]byte, error) {
	return c.get("/api/projects/" + encodeProject(projectPath) + "/branches")
}

// Worktrees lists the project's worktrees.
func (c *Client) Worktrees(projectPath string) ([]byte, error) {
	return c.get("/api/projects/" + encodeProject(projectPath) + "/worktrees")
}

// CreateWorktree creates a worktree. branch and baseBranch are optional.
func (c *Client) CreateWorktree(projectPath, name, branch, baseBranch string) ([]byte, error) {
	body := map[string]string{"name": name}
	if branch != "" {
		body["branch"] = branch
	}
	if baseBranch != "" {
		body["base_branch"] = baseBranch
	}
	return c.postJSON("/api/projects/"+encodeProject(projectPath)+"/worktrees", body)
}

// RemoveWorktree force-removes a worktree. Its branch stays.
func (c *Client) RemoveWorktree(projectPath, name string) ([]byte, error) {
	return c.delete(c.worktreePath(projectPath, name))
}

// Worktree fetches detail for one worktree (upstream, rebase status).
func (c *Client) Worktree(projectPath, name string) ([]byte, error) {
	return c.get(c.worktreePath(projectPath, name))
}

// Conflicts runs a non-mutating conflict check against the main branch.
// mainBranch is optional; empty means the daemon detects it.
func (c *Client) Conflicts(projectPath, name, mainBranch string) ([]byte, error) {
	path := c.worktreePath(projectPath, name) + "/conflicts"
	if mainBranch != "" {
		path += "?main=" + url.QueryEscape(mainBranch)
	}
	return c.get(path)
}

// Rebase rebases the worktree branch onto main.
func (c *Client) Rebase(projectPath, name, mainBranch string) ([]byte, error) {
	return c.postJSON(c.worktreePath(projectPath, name)+"/rebase", syncBody(mainBranch))
}

// AbortRebase aborts an in-progress rebase in the worktree.
func (c *Client) AbortRebase(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/rebase/abort")
}

// Squash rebases then squash-merges the worktree branch into main.
func (c *Client) Squash(projectPath, name, message, mainBranch string) ([]byte, error) {
	body := syncBody(mainBranch)
	body["message"] = message
	return c.postJSON(c.worktreePath(projectPath, name)+"/squash", body)
}

// Merge rebases then fast-forward merges the worktree branch into main,
// keeping individual commits.
func (c *Client) Merge(projectPath, name, mainBranch string) ([]byte, error) {
	return c.postJSON(c.worktreePath(projectPath, name)+"/merge", syncBody(mainBranch))
}

// Push pushes the worktree branch to its upstream.
func (c *Client) Push(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/push")
}

// Pull pulls the worktree branch from its upstream.
func (c *Client) Pull(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/pull")
}

// Fetch fetches from origin with pruning.
func (c *Client) Fetch(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/fetch")
}

// Stash stashes uncommitted changes in the worktree.
func (c *Client) Stash(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/stash")
}

// StashPop pops the most recent stash in the worktree.
func (c *Client) StashPop(projectPath, name string) ([]byte, error) {
	return c.post(c.worktreePath(projectPath, name) + "/stash/pop")
}

// Commit stages everything in the worktree and commits with the given message.
func (c *Client) Commit(projectPath, name, message string) ([]byte, error) {
	return c.postJSON(c.worktreePath(projectPath, name)+"/commit", map[string]string{"message": message})
}

// Log fetches the worktree's recent commits. n <= 0 means the daemon default.
func (c *Client) Log(projectPath, name string, n int) ([]byte, error) {
	path := c.worktreePath(projectPath, name) + "/log"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	return c.get(path)
}

// Upstream fetches the worktree branch's upstream tracking state.
func (c *Client) Upstream(projectPath, name string) ([]byte, error) {
	return c.get(c.worktreePath(projectPath, name) + "/upstream")
}

// SetUpstream sets the worktree branch's upstream to the given remote branch.
func (c *Client) SetUpstream(projectPath, name, remoteBranch string) ([]byte, error) {
	return c.postJSON(c.worktreePath(projectPath, name)+"/upstream", map[string]string{"branch": remoteBranch})
}

// Runs lists managed runs, optionally filtered to one project.
func (c *Client) Runs(projectPath string) ([]byte, error) {
	path := "/api/runs"
	if projectPath != "" {
		path += "?project=" + url.QueryEscape(projectPath)
	}
	return c.get(path)
}

// StartRun starts a command under daemon supervision in the named worktree.
func (c *Client) StartRun(projectPath, worktree string, command []string) ([]byte, error) {
	return c.postJSON("/api/runs", map[string]any{
		"project":  projectPath,
		"worktree": worktree,
		"command":  command,
	})
}

// StopRun stops a managed run by ID.
func (c *Client) StopRun(id string) ([]byte, error) {
	return c.delete("/api/runs/" + id)
}

func (c *Client) worktreePath(projectPath, name string) string {
	return "/api/projects/" + encodeProject(projectPath) + "/worktrees/" + url.PathEscape(name)
}

// syncBody builds the optional request body for sync endpoints.
func syncBody(mainBranch string) map[string]string {
	body := map[string]string{}
	if mainBranch != "" {
		body["main"] = mainBranch
	}
	return body
}
