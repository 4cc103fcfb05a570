// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"grove/internal/instance"
)

// RegisterWorktreeCommands registers the worktree command group commands.
// Requires dataDir for discovering the running grove daemon.
func RegisterWorktreeCommands(group *Group, dataDir string) {
	group.AddCommand(&Command{
		Name:    "create",
		Summary: "Create a new git worktree",
		Usage:   "Usage: grove worktree create <project-path> <name> [--branch BRANCH] [--base BRANCH]",
		Run: func(args []string) error {
			if len(args) < 2 {
				fmt.Fprintf(os.Stderr, "Usage: grove worktree create <project-path> <name> [--branch BRANCH] [--base BRANCH]\n")
				os.Exit(1)
			}

			projectPath := args[0]
			name := args[1]

			// Parse optional flags
			fs := flag.NewFlagSet("worktree create", flag.ContinueOnError)
			branch := fs.String("branch", "", "branch to create or check out (default: prefix + name)")
			base := fs.String("base", "", "base branch to fork from (default: detected main)")
			if err := fs.Parse(args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Usage: grove worktree create <project-path> <name> [--branch BRANCH] [--base BRANCH]\n")
				os.Exit(1)
			}

			// Longer timeout: worktree add checks out a full tree, which can
			// be slow on large repositories.
			delegate := Delegate{
				DataDir:       dataDir,
				ClientTimeout: 120 * time.Second,
			}

			delegate.Run(func(client *instance.Client) error {
				data, err := client.CreateWorktree(projectPath, name, *branch, *base)
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
		Summary: "Remove a worktree (its branch stays)",
		Usage:   "Usage: grove worktree remove <project-path> <name>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove worktree remove <project-path> <name>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				_, err := client.RemoveWorktree(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Println("Worktree removed.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "Output JSON data about a project's worktrees",
		Usage:   "Usage: grove worktree list <project-path>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grove worktree list <project-path>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Worktrees(args[0])
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
		Summary: "Output JSON detail for one worktree (upstream, rebase state)",
		Usage:   "Usage: grove worktree show <project-path> <name>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove worktree show <project-path> <name>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Worktree(args[0], args[1])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "branches",
		Summary: "Output JSON data about a project's branches",
		Usage:   "Usage: grove worktree branches <project-path>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grove worktree branches <project-path>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Branches(args[0])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "commit",
		Summary: "Stage everything in a worktree and commit",
		Usage:   "Usage: grove worktree commit <project-path> <name> -m <message>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove worktree commit <project-path> <name> -m <message>")
			}

			fs := flag.NewFlagSet("worktree commit", flag.ContinueOnError)
			message := fs.StringP("message", "m", "", "commit message")
			if err := fs.Parse(args[2:]); err != nil {
				return fmt.Errorf("usage: grove worktree commit <project-path> <name> -m <message>")
			}
			if *message == "" {
				return fmt.Errorf("a commit message is required (-m)")
			}

			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Commit(args[0], args[1], *message)
				if err != nil {
					return err
				}
				return printOutput(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "log",
		Summary: "Output JSON commit log for a worktree's branch",
		Usage:   "Usage: grove worktree log <project-path> <name> [N] (default: 20)",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove worktree log <project-path> <name> [N]")
			}

			limit := 20 // default
			if len(args) >= 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid commit count %q: must be a positive integer", args[2])
				}
				limit = n
			}

			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Log(args[0], args[1], limit)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}
