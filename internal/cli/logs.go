// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	flag "github.com/spf13/pflag"

	"grove/internal/logging"
)

// ansiPattern matches ANSI escape sequences (CSI sequences, OSC sequences, and simple escapes).
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][0-9A-B]`)

// StripANSI removes ANSI escape sequences from the given string. Log
// messages can carry colored git output verbatim.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// LogsConfig configures log rendering for print and follow modes.
type LogsConfig struct {
	Path    string
	Lines   int
	Scope   string
	NoColor bool
	Writer  io.Writer
}

// runLogsCommand prints recent entries from the daemon's log file. The file
// is read directly, not through the API, so logs stay available when the
// daemon is down.
func runLogsCommand(dataDir string, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	lines := fs.IntP("lines", "n", 100, "number of recent entries to print")
	follow := fs.BoolP("follow", "f", false, "keep printing entries as they are written")
	scope := fs.String("scope", "", "only print entries whose scope has this prefix")
	noColor := fs.Bool("no-color", false, "strip ANSI color codes from messages")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Usage: grove logs [-n N] [-f] [--scope PREFIX] [--no-color]\n")
		os.Exit(1)
	}

	cfg := LogsConfig{
		Path:    filepath.Join(ResolveDataDir(dataDir), "grove.log"),
		Lines:   *lines,
		Scope:   *scope,
		NoColor: *noColor,
		Writer:  os.Stdout,
	}

	if err := PrintRecentLogs(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if !*follow {
		return nil
	}

	// Follow until interrupted.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := FollowLogs(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return nil
}

// PrintRecentLogs renders the last cfg.Lines entries of the log file.
func PrintRecentLogs(cfg LogsConfig) error {
	entries, err := logging.ReadRecent(cfg.Path, cfg.Lines)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		writeEntry(cfg, entry)
	}
	return nil
}

// FollowLogs tails the log file and renders entries as they are appended.
// It blocks until ctx is cancelled. Rotation is handled by the tailer, so a
// long-lived follow survives the daemon rolling its log.
func FollowLogs(ctx context.Context, cfg LogsConfig) error {
	sink := logging.NewChannelSink(256)
	tailer, err := logging.NewTailer(cfg.Path, sink)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range sink.Entries() {
			writeEntry(cfg, entry)
		}
	}()

	// Start blocks until ctx ends and closes the tailer on the way out.
	startErr := tailer.Start(ctx)
	_ = sink.Close()
	<-done

	if startErr != nil && ctx.Err() == nil {
		return startErr
	}
	return nil
}

func writeEntry(cfg LogsConfig, entry logging.LogEntry) {
	if !entry.MatchesScope(cfg.Scope) {
		return
	}
	line := entry.String()
	if cfg.NoColor {
		line = StripANSI(line)
	}
	_, _ = fmt.Fprintln(cfg.Writer, line)
}
