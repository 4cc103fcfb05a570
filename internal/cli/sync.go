// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"grove/internal/instance"
)

// printOutput parses a {"output": ...} response and prints the raw git
// output, so CLI users see what git said rather than a JSON wrapper.
func printOutput(data []byte) error {
	var result struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Print(result.Output)
	return nil
}

// syncDelegate builds a delegate with the longer timeout sync operations
// need: rebases replay history and pushes touch the network.
func syncDelegate(dataDir string) Delegate {
	return Delegate{
		DataDir:       dataDir,
		ClientTimeout: 120 * time.Second,
	}
}

// mainFlag parses the optional --main override shared by the sync commands.
func mainFlag(name string, args []string) (mainBranch string, rest []string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	main := fs.String("main", "", "integration branch (default: detected main)")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	return *main, fs.Args(), nil
}

// RegisterSyncCommands registers the sync command group commands.
// Requires dataDir for discovering the running grove daemon.
func RegisterSyncCommands(group *Group, dataDir string) {
	group.AddCommand(&Command{
		Name:    "rebase",
		Summary: "Rebase a worktree onto the main branch",
		Usage:   "Usage: grove sync rebase <project-path> <name> [--main BRANCH]",
		Run: func(args []string) error {
			mainBranch, rest, err := mainFlag("sync rebase", args)
			if err != nil || len(rest) < 2 {
				return fmt.Errorf("usage: grove sync rebase <project-path> <name> [--main BRANCH]")
			}
			delegate := syncDelegate(dataDir)
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Rebase(rest[0], rest[1], mainBranch)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "abort",
		Summary: "Abort an in-progress rebase in a worktree",
		Usage:   "Usage: grove sync abort <project-path> <name>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove sync abort <project-path> <name>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				_, err := client.AbortRebase(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Println("Rebase aborted.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "conflicts",
		Summary: "Dry-run a rebase and report conflicting files",
		Usage:   "Usage: grove sync conflicts <project-path> <name> [--main BRANCH]",
		Run: func(args []string) error {
			mainBranch, rest, err := mainFlag("sync conflicts", args)
			if err != nil || len(rest) < 2 {
				return fmt.Errorf("usage: grove sync conflicts <project-path> <name> [--main BRANCH]")
			}
			delegate := syncDelegate(dataDir)
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Conflicts(rest[0], rest[1], mainBranch)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "squash",
		Summary: "Rebase, squash to one commit, and fast-forward main",
		Usage:   "Usage: grove sync squash <project-path> <name> -m <message> [--main BRANCH]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("sync squash", flag.ContinueOnError)
			message := fs.StringP("message", "m", "", "message for the squash commit")
			main := fs.String("main", "", "integration branch (default: detected main)")
			if err := fs.Parse(args); err != nil || len(fs.Args()) < 2 {
				return fmt.Errorf("usage: grove sync squash <project-path> <name> -m <message> [--main BRANCH]")
			}
			if *message == "" {
				return fmt.Errorf("a squash commit message is required (-m)")
			}
			rest := fs.Args()

			delegate := syncDelegate(dataDir)
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Squash(rest[0], rest[1], *message, *main)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "merge",
		Summary: "Rebase and fast-forward main, keeping all commits",
		Usage:   "Usage: grove sync merge <project-path> <name> [--main BRANCH]",
		Run: func(args []string) error {
			mainBranch, rest, err := mainFlag("sync merge", args)
			if err != nil || len(rest) < 2 {
				return fmt.Errorf("usage: grove sync merge <project-path> <name> [--main BRANCH]")
			}
			delegate := syncDelegate(dataDir)
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Merge(rest[0], rest[1], mainBranch)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "push",
		Summary: "Push a worktree's branch to its upstream",
		Usage:   "Usage: grove sync push <project-path> <name>",
		Run:     outputCommand(dataDir, "push", (*instance.Client).Push),
	})

	group.AddCommand(&Command{
		Name:    "pull",
		Summary: "Pull a worktree's branch from its upstream",
		Usage:   "Usage: grove sync pull <project-path> <name>",
		Run:     outputCommand(dataDir, "pull", (*instance.Client).Pull),
	})

	group.AddCommand(&Command{
		Name:    "fetch",
		Summary: "Fetch all remotes for a project",
		Usage:   "Usage: grove sync fetch <project-path> <name>",
		Run:     outputCommand(dataDir, "fetch", (*instance.Client).Fetch),
	})

	group.AddCommand(&Command{
		Name:    "stash",
		Summary: "Stash uncommitted changes in a worktree",
		Usage:   "Usage: grove sync stash <project-path> <name>",
		Run:     outputCommand(dataDir, "stash", (*instance.Client).Stash),
	})

	group.AddCommand(&Command{
		Name:    "pop",
		Summary: "Pop the most recent stash in a worktree",
		Usage:   "Usage: grove sync pop <project-path> <name>",
		Run:     outputCommand(dataDir, "pop", (*instance.Client).StashPop),
	})

	group.AddCommand(&Command{
		Name:    "upstream",
		Summary: "Show or set a worktree's upstream branch",
		Usage:   "Usage: grove sync upstream <project-path> <name> [remote/branch]",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: grove sync upstream <project-path> <name> [remote/branch]")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				if len(args) >= 3 {
					data, err := client.SetUpstream(args[0], args[1], args[2])
					if err != nil {
						return err
					}
					return PrintJSON(data)
				}
				data, err := client.Upstream(args[0], args[1])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}

// outputCommand builds the Run handler shared by the plumbing-style sync
// commands: two positional args, delegate with the sync timeout, git output
// printed raw.
func outputCommand(dataDir, name string, call func(*instance.Client, string, string) ([]byte, error)) func([]string) error {
	return func(args []string) error {
		if len(args) < 2 {
			return fmt.Errorf("usage: grove sync %s <project-path> <name>", name)
		}
		delegate := syncDelegate(dataDir)
		delegate.Run(func(client *instance.Client) error {
			data, err := call(client, args[0], args[1])
			if err != nil {
				return err
			}
			return printOutput(data)
		})
		return nil
	}
}
