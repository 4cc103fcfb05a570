// pattern: Functional Core
package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// PrintAgentHelp prints a comprehensive guide for scripted orchestration via the CLI.
// It combines static prose with dynamic command reference pulled from registered commands.
func (a *App) PrintAgentHelp(w io.Writer) {
	// Header
	fmt.Fprintln(w, "SCRIPTED ORCHESTRATION GUIDE")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w)

	// Overview
	fmt.Fprintln(w, "OVERVIEW")
	fmt.Fprintln(w, "--------")
	fmt.Fprintln(w, "Grove manages git worktrees across registered repositories. It runs as a")
	fmt.Fprintln(w, "daemon that creates worktrees, rebases them onto main, and lands finished")
	fmt.Fprintln(w, "work back with a squash or fast-forward merge. A single grove daemon runs")
	fmt.Fprintln(w, "at a time (enforced by file lock).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All CLI commands delegate to the running daemon via HTTP. Start the daemon")
	fmt.Fprintln(w, "with plain 'grove' in a detached terminal or a service manager, then drive")
	fmt.Fprintln(w, "work through the CLI from scripts or other tooling.")
	fmt.Fprintln(w)

	// Workflow
	fmt.Fprintln(w, "WORKFLOW")
	fmt.Fprintln(w, "--------")
	fmt.Fprintln(w, "The typical workflow isolates each task in its own worktree:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Register the repository once:")
	fmt.Fprintln(w, "     grove project add /path/to/project")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Create a worktree for the task:")
	fmt.Fprintln(w, "     grove worktree create /path/to/project feature-name")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "     This adds a git worktree on a fresh branch and returns JSON with the")
	fmt.Fprintln(w, "     worktree path. Work happens there: the main checkout stays clean.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  3. Run commands in the worktree, supervised:")
	fmt.Fprintln(w, "     grove run start /path/to/project --worktree feature-name -- make test")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  4. Keep the worktree current while main moves:")
	fmt.Fprintln(w, "     grove sync conflicts /path/to/project feature-name")
	fmt.Fprintln(w, "     grove sync rebase /path/to/project feature-name")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  5. Land the finished work on main:")
	fmt.Fprintln(w, "     grove sync squash /path/to/project feature-name -m \"feat: the change\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  6. Remove the worktree:")
	fmt.Fprintln(w, "     grove worktree remove /path/to/project feature-name")
	fmt.Fprintln(w)

	// Dynamic command reference
	a.printCommandReference(w)

	// Sync behavior
	fmt.Fprintln(w, "SYNC BEHAVIOR")
	fmt.Fprintln(w, "-------------")
	fmt.Fprintln(w, "Check before rebasing (a dry run, nothing changes):")
	fmt.Fprintln(w, "  grove sync conflicts <project> <name>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Land with one squashed commit, or keep the full history:")
	fmt.Fprintln(w, "  grove sync squash <project> <name> -m \"message\"")
	fmt.Fprintln(w, "  grove sync merge <project> <name>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Key behaviors:")
	fmt.Fprintln(w, "  - Both land paths rebase first, then fast-forward main. Main never gets")
	fmt.Fprintln(w, "    a merge commit and never moves unless the result is exact.")
	fmt.Fprintln(w, "  - A land whose rebase hits conflicts is backed out automatically; the")
	fmt.Fprintln(w, "    worktree and main are left as they were. A standalone 'sync rebase'")
	fmt.Fprintln(w, "    stops on the conflict instead: fix it in the worktree or run 'sync")
	fmt.Fprintln(w, "    abort'.")
	fmt.Fprintln(w, "  - Operations on the same repository are serialized by the daemon, so")
	fmt.Fprintln(w, "    concurrent scripts cannot corrupt a rebase in progress.")
	fmt.Fprintln(w, "  - A failure prints 'grove returned status N': 409 means a conflict or a")
	fmt.Fprintln(w, "    failed precondition, 400 a bad request, 502 a missing tool on the host.")
	fmt.Fprintln(w)

	// Parallel tasks
	fmt.Fprintln(w, "PARALLEL TASKS")
	fmt.Fprintln(w, "--------------")
	fmt.Fprintln(w, "Worktrees are cheap. Orchestrate independent tasks concurrently:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  - Create one worktree per task; each gets its own branch.")
	fmt.Fprintln(w, "  - Supervise long-running commands with 'run start' and watch them with")
	fmt.Fprintln(w, "    'run list'.")
	fmt.Fprintln(w, "  - Use 'grove status' for daemon-wide state and 'grove logs -f' to stream")
	fmt.Fprintln(w, "    what the daemon is doing.")
	fmt.Fprintln(w, "  - Land tasks one at a time: rebase, squash, remove, then move to the next.")
	fmt.Fprintln(w)

	// Exit codes
	fmt.Fprintln(w, "EXIT CODES")
	fmt.Fprintln(w, "----------")
	fmt.Fprintln(w, "  0  Success")
	fmt.Fprintln(w, "  1  Error (invalid arguments, command failed, etc.)")
	fmt.Fprintln(w, "  2  No running grove daemon found")
}

// printCommandReference prints the dynamic command reference section
// by iterating registered commands and groups.
func (a *App) printCommandReference(w io.Writer) {
	fmt.Fprintln(w, "COMMAND REFERENCE")
	fmt.Fprintln(w, "-----------------")
	fmt.Fprintln(w)

	// Ungrouped commands in defined order
	fmt.Fprintln(w, "Top-level commands:")
	for _, name := range []string{"status", "logs", "cleanup", "version"} {
		if cmd, ok := a.commands[name]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", cmd.Name, cmd.Summary)
			fmt.Fprintf(w, "               %s\n", cmd.Usage)
		}
	}
	fmt.Fprintln(w)

	// Groups in defined order
	for _, groupName := range []string{"project", "worktree", "sync", "run"} {
		group, ok := a.groups[groupName]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s commands — %s:\n", group.Name, group.Summary)
		names := slices.Sorted(maps.Keys(group.Commands))
		for _, name := range names {
			cmd := group.Commands[name]
			fmt.Fprintf(w, "  %-12s %s\n", fmt.Sprintf("%s %s", groupName, cmd.Name), cmd.Summary)
			fmt.Fprintf(w, "               %s\n", cmd.Usage)
		}
		fmt.Fprintln(w)
	}
}
