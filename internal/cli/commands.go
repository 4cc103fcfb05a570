// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"

	"grove/internal/config"
	"grove/internal/instance"
)

// ResolveDataDir returns the directory holding the lock, port, registry, and
// log files. An explicit flag value wins over the XDG default.
func ResolveDataDir(dataDir string) string {
	if dataDir != "" {
		return dataDir
	}
	return config.DataDir()
}

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, dataDir string) *App {
	app := NewApp(version)

	// Register ungrouped commands
	app.AddCommand(&Command{
		Name:    "status",
		Summary: "Output JSON status of the running daemon",
		Usage:   "Usage: grove status",
		Run: func(args []string) error {
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Status()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Print recent daemon log entries",
		Usage:   "Usage: grove logs [-n N] [-f] [--scope PREFIX] [--no-color]",
		Run: func(args []string) error {
			return runLogsCommand(dataDir, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed daemon",
		Usage:   "Usage: grove cleanup",
		Run: func(args []string) error {
			return runCleanupCommand(dataDir)
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: grove version",
		Run: func(args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	// Register command groups
	projectGroup := app.AddGroup("project", "Manage registered projects")
	RegisterProjectCommands(projectGroup, dataDir)

	worktreeGroup := app.AddGroup("worktree", "Manage git worktrees")
	RegisterWorktreeCommands(worktreeGroup, dataDir)

	syncGroup := app.AddGroup("sync", "Move work between a worktree and main")
	RegisterSyncCommands(syncGroup, dataDir)

	runGroup := app.AddGroup("run", "Supervise commands in worktrees")
	RegisterRunCommands(runGroup, dataDir)

	return app
}

// runCleanupCommand removes stale lock and port files from a crashed daemon.
func runCleanupCommand(dataDir string) error {
	dd := ResolveDataDir(dataDir)

	// Try to acquire the lock to verify no daemon is actually running
	fl, err := instance.Lock(dd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: a grove daemon appears to be running. Stop it first.\n")
		os.Exit(1)
	}
	// We got the lock — no daemon is running. Clean up and release.
	instance.Cleanup(dd, fl)
	fmt.Println("Cleaned up stale lock and port files.")
	return nil
}
