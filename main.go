// pattern: Imperative Shell
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"grove/internal/cli"
	"grove/internal/config"
	"grove/internal/discovery"
	"grove/internal/events"
	"grove/internal/instance"
	"grove/internal/locks"
	"grove/internal/logging"
	"grove/internal/monitor"
	"grove/internal/runner"
	"grove/internal/store"
	"grove/internal/web"
	"grove/internal/worktree"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/grove)")
	dataDir := flag.String("data-dir", "", "data directory (default: ~/.local/share/grove)")
	agentHelp := flag.Bool("agent-help", false, "print scripted orchestration guide")

	// Override flag.Usage before Parse so --help uses the CLI app's help
	flag.Usage = func() {
		app := cli.BuildApp(version, *dataDir)
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	app := cli.BuildApp(version, *dataDir)

	if *agentHelp {
		app.PrintAgentHelp(os.Stdout)
		return
	}

	if app.Execute(flag.Args()) {
		runDaemon(*configDir, *dataDir)
	}
}

// loadConfig reads config.yaml from configDir when set, else the default
// config location.
func loadConfig(configDir string) (config.Config, error) {
	if configDir != "" {
		return config.LoadFromDir(configDir)
	}
	return config.Load()
}

// runDaemon runs the grove daemon in the foreground until interrupted.
func runDaemon(configDir, dataDirFlag string) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}

	if err := cfg.ValidateTools(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dataDir := cli.ResolveDataDir(dataDirFlag)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Acquire single-instance lock
	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer instance.Cleanup(dataDir, fl)

	logPath := filepath.Join(dataDir, "grove.log")
	logManager, err := logging.NewManager(logging.Config{
		FilePath:       logPath,
		MaxSizeMB:      cfg.Logging.MaxSizeMB,
		MaxBackups:     cfg.Logging.MaxBackups,
		MaxAgeDays:     cfg.Logging.MaxAgeDays,
		ChannelBufSize: 1000,
		Level:          cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logManager.Close() }()

	log := logManager.For("app")
	log.Info("grove starting", "version", version, "data_dir", dataDir)

	st, err := store.Open(filepath.Join(dataDir, "grove.db"))
	if err != nil {
		log.Error("failed to open registry", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	broker := events.NewBroker()
	registry := locks.NewRegistry()

	wtManager := worktree.NewManager(registry, logManager.For("worktree"), worktree.Attribution{
		Name:    cfg.Git.Name,
		Email:   cfg.Git.Email,
		Trailer: cfg.Git.Trailer,
	})
	wtManager.SetTimeouts(worktree.Timeouts{
		Query:   cfg.Git.Timeouts.Query(),
		Network: cfg.Git.Timeouts.Network(),
		Sync:    cfg.Git.Timeouts.Sync(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon, err := monitor.New(broker, logManager.For("monitor"))
	if err != nil {
		log.Warn("filesystem monitor unavailable", "error", err)
		mon = nil
	} else {
		go func() {
			if err := mon.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("monitor stopped", "error", err)
			}
		}()
		defer func() { _ = mon.Close() }()
	}

	runs := runner.NewManager(logManager, broker)
	defer runs.StopAll()

	reconcile(ctx, st, wtManager, mon, log)

	// Project discovery when scan paths are configured
	var scannerFn func(context.Context) []discovery.Project
	if len(cfg.ScanPaths) > 0 {
		scanner := discovery.NewScanner()
		resolved := cfg.ResolveScanPaths()
		found := scanner.ScanAll(resolved)
		log.Info("scanned for repositories", "count", len(found), "scan_paths", resolved)
		scannerFn = func(context.Context) []discovery.Project {
			return scanner.ScanAll(resolved)
		}
	}

	webServer := web.New(
		web.Config{Bind: cfg.Web.Bind, Port: cfg.Web.Port},
		web.Deps{
			Ops:      wtManager,
			Store:    st,
			Runs:     runs,
			Monitor:  mon,
			Broker:   broker,
			Registry: registry,
			Scanner:  scannerFn,
			Logs:     logManager,
			LogPath:  logPath,
			Version:  version,
		},
	)

	ln, err := webServer.Listen()
	if err != nil {
		log.Error("web server listen error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Write port file for CLI discovery
	if err := instance.WritePort(dataDir, webServer.Addr()); err != nil {
		log.Error("failed to write port file", "error", err)
	}

	fmt.Printf("grove %s listening on http://%s\n", version, webServer.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- webServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("web server error", "error", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	log.Info("grove stopped")
}

// reconcile aligns the registry with what is actually on disk: rows for
// worktrees removed while the daemon was down are pruned, and surviving
// worktrees get filesystem watches. The git tree is the source of truth.
func reconcile(ctx context.Context, st *store.Store, mgr *worktree.Manager, mon *monitor.Monitor, log *logging.ScopedLogger) {
	rows, err := st.Projects()
	if err != nil {
		log.Warn("registry read failed", "error", err)
		return
	}

	for _, row := range rows {
		p := worktree.Project{
			Path:         row.Path,
			WorktreesDir: row.WorktreesDir,
			Env:          row.Env,
			Distro:       row.Distro,
		}
		live, err := mgr.List(ctx, p)
		if err != nil {
			log.Warn("worktree list failed", "project", row.Path, "error", err)
			continue
		}

		names := make([]string, 0, len(live))
		for _, wt := range live {
			names = append(names, wt.Name)
			if mon != nil {
				if err := mon.Watch(row.Path, wt.Name, p.Resolver().ToFileSystem(wt.Path)); err != nil {
					log.Warn("watch failed", "worktree", wt.Name, "error", err)
				}
			}
		}

		pruned, err := st.PruneWorktrees(row.Path, names)
		if err != nil {
			log.Warn("registry prune failed", "project", row.Path, "error", err)
			continue
		}
		if pruned > 0 {
			log.Info("pruned stale worktree rows", "project", row.Path, "count", pruned)
		}
	}
}
