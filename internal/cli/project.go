// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"grove/internal/instance"
)

// RegisterProjectCommands registers the project command group commands.
// Requires dataDir for discovering the running grove daemon.
func RegisterProjectCommands(group *Group, dataDir string) {
	group.AddCommand(&Command{
		Name:    "add",
		Summary: "Register a repository with the daemon",
		Usage:   "Usage: grove project add <path> [--worktrees-dir DIR] [--env posix|wsl|windows] [--distro NAME]",
		Run: func(args []string) error {
			if len(args) < 1 {
				fmt.Fprintf(os.Stderr, "Usage: grove project add <path> [--worktrees-dir DIR] [--env posix|wsl|windows] [--distro NAME]\n")
				os.Exit(1)
			}
			path := args[0]

			fs := flag.NewFlagSet("project add", flag.ContinueOnError)
			worktreesDir := fs.String("worktrees-dir", "", "directory for worktrees, relative to the repository root")
			env := fs.String("env", "", "path environment of the repository (posix, wsl, windows)")
			distro := fs.String("distro", "", "WSL distribution name, required with --env wsl")
			if err := fs.Parse(args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Usage: grove project add <path> [--worktrees-dir DIR] [--env posix|wsl|windows] [--distro NAME]\n")
				os.Exit(1)
			}

			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.AddProject(path, *worktreesDir, *env, *distro)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "remove",
		Summary: "Unregister a repository",
		Usage:   "Usage: grove project remove <path>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grove project remove <path>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				_, err := client.RemoveProject(args[0])
				if err != nil {
					return err
				}
				fmt.Println("Project removed.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "Output JSON data about all registered projects",
		Usage:   "Usage: grove project list",
		Run: func(args []string) error {
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Projects()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "show",
		Summary: "Output JSON detail for one project (branches, worktrees)",
		Usage:   "Usage: grove project show <path>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grove project show <path>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Project(args[0])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "discover",
		Summary: "List unregistered repositories under the scan paths",
		Usage:   "Usage: grove project discover",
		Run: func(args []string) error {
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Discovered()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}
