// pattern: Imperative Shell
package cli

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"grove/internal/instance"
)

// parseRunStart splits run start arguments into the project path, the
// optional worktree flag, and the command to supervise. Everything after --
// is the command, verbatim. Without the separator, all positionals past the
// project path are taken.
func parseRunStart(args []string) (projectPath, worktree string, command []string, err error) {
	fs := flag.NewFlagSet("run start", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	worktreeFlag := fs.StringP("worktree", "w", "", "worktree to run in (default: the repository root)")
	if err := fs.Parse(args); err != nil {
		return "", "", nil, err
	}

	rest := fs.Args()
	split := fs.ArgsLenAtDash()
	if split < 0 {
		split = 1
	}
	// Exactly one positional, the project path, may precede the command.
	if split != 1 || len(rest) <= split {
		return "", "", nil, fmt.Errorf("expected a project path and a command")
	}
	return rest[0], *worktreeFlag, rest[split:], nil
}

// RegisterRunCommands registers the run command group commands.
// Requires dataDir for discovering the running grove daemon.
func RegisterRunCommands(group *Group, dataDir string) {
	group.AddCommand(&Command{
		Name:    "start",
		Summary: "Start a supervised command in a worktree",
		Usage:   "Usage: grove run start <project-path> [--worktree NAME] -- <command...>",
		Run: func(args []string) error {
			projectPath, worktree, command, err := parseRunStart(args)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Usage: grove run start <project-path> [--worktree NAME] -- <command...>\n")
				os.Exit(1)
			}

			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.StartRun(projectPath, worktree, command)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "stop",
		Summary: "Stop a supervised run",
		Usage:   "Usage: grove run stop <run-id>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: grove run stop <run-id>")
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				_, err := client.StopRun(args[0])
				if err != nil {
					return err
				}
				fmt.Println("Run stopped.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "Output JSON data about active runs",
		Usage:   "Usage: grove run list [project-path]",
		Run: func(args []string) error {
			project := ""
			if len(args) >= 1 {
				project = args[0]
			}
			delegate := Delegate{DataDir: dataDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Runs(project)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}
