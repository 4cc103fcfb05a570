// pattern: Imperative Shell

package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"grove/internal/discovery"
	"grove/internal/events"
	"grove/internal/locks"
	"grove/internal/logging"
	"grove/internal/monitor"
	"grove/internal/runner"
	"grove/internal/store"
	"grove/internal/worktree"
)

// worktreeOps abstracts the worktree manager for testability.
// *worktree.Manager satisfies it.
type worktreeOps interface {
	Create(ctx context.Context, p worktree.Project, name, branch, baseBranch string) (worktree.Worktree, error)
	Remove(ctx context.Context, p worktree.Project, name string) error
	List(ctx context.Context, p worktree.Project) ([]worktree.Worktree, error)
	Branches(ctx context.Context, p worktree.Project) ([]worktree.Branch, error)
	MainBranch(ctx context.Context, p worktree.Project) (string, error)
	HasChangesToRebase(ctx context.Context, p worktree.Project, name, mainBranch string) (bool, error)
	CheckRebaseConflicts(ctx context.Context, p worktree.Project, name, mainBranch string) (worktree.ConflictReport, error)
	RebaseOntoMain(ctx context.Context, p worktree.Project, name, mainBranch string) error
	AbortRebase(ctx context.Context, p worktree.Project, name string) error
	SquashMergeToMain(ctx context.Context, p worktree.Project, name, mainBranch, message string) error
	MergeToMain(ctx context.Context, p worktree.Project, name, mainBranch string) error
	Pull(ctx context.Context, p worktree.Project, name string) (string, error)
	Push(ctx context.Context, p worktree.Project, name string) (string, error)
	Fetch(ctx context.Context, p worktree.Project, name string) (string, error)
	Stash(ctx context.Context, p worktree.Project, name string) (string, error)
	StashPop(ctx context.Context, p worktree.Project, name string) (string, error)
	CommitAll(ctx context.Context, p worktree.Project, name, message string) (string, error)
	Log(ctx context.Context, p worktree.Project, name string, limit int) ([]worktree.Commit, error)
	Upstream(ctx context.Context, p worktree.Project, name string) (*worktree.Upstream, error)
	SetUpstream(ctx context.Context, p worktree.Project, name, remoteBranch string) error
	WorktreePath(p worktree.Project, name string) string
}

// Config holds web server configuration.
type Config struct {
	Bind string
	Port int
}

// Deps are the collaborators the API drives. Ops and Store are required;
// the rest degrade gracefully when nil (status omits counts, discovery
// returns empty, filesystem watches are skipped).
type Deps struct {
	Ops      worktreeOps
	Store    *store.Store
	Runs     *runner.Manager
	Monitor  *monitor.Monitor
	Broker   *events.Broker
	Registry *locks.Registry
	Scanner  func(context.Context) []discovery.Project
	Logs     logging.LoggerProvider
	LogPath  string
	Version  string
}

// Server is the web server that serves the daemon API.
type Server struct {
	httpServer *http.Server
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener

	ops       worktreeOps
	store     *store.Store
	runs      *runner.Manager
	monitor   *monitor.Monitor
	broker    *events.Broker
	registry  *locks.Registry
	scanner   func(context.Context) []discovery.Project
	logPath   string
	version   string
	startedAt time.Time
}

// New creates a web server.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logs.For("web")
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)

	broker := deps.Broker
	if broker == nil {
		broker = events.NewBroker()
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:    logger,
		addr:      addr,
		ops:       deps.Ops,
		store:     deps.Store,
		runs:      deps.Runs,
		monitor:   deps.Monitor,
		broker:    broker,
		registry:  deps.Registry,
		scanner:   deps.Scanner,
		logPath:   deps.LogPath,
		version:   deps.Version,
		startedAt: time.Now(),
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/discovered", s.handleDiscovered)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleAddProject)
	mux.HandleFunc("GET /api/projects/{encodedPath}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{encodedPath}", s.handleRemoveProject)
	mux.HandleFunc("GET /api/projects/{encodedPath}/branches", s.handleBranches)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees", s.handleListWorktrees)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees", s.handleCreateWorktree)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees/{name}", s.handleGetWorktree)
	mux.HandleFunc("DELETE /api/projects/{encodedPath}/worktrees/{name}", s.handleRemoveWorktree)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees/{name}/conflicts", s.handleConflicts)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/rebase", s.handleRebase)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/rebase/abort", s.handleAbortRebase)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/squash", s.handleSquash)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/merge", s.handleMerge)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/push", s.handlePush)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/pull", s.handlePull)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/fetch", s.handleFetch)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/stash", s.handleStash)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/stash/pop", s.handleStashPop)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/commit", s.handleCommit)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees/{name}/log", s.handleLog)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees/{name}/upstream", s.handleGetUpstream)
	mux.HandleFunc("POST /api/projects/{encodedPath}/worktrees/{name}/upstream", s.handleSetUpstream)
	mux.HandleFunc("GET /api/projects/{encodedPath}/worktrees/{name}/terminal", s.HandleTerminal)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleStopRun)

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
