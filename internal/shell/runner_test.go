package shell

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunCapturesBothStreams(t *testing.T) {
	requireSh(t)

	r := NewRunner()
	res, err := r.Run(context.Background(), t.TempDir(), Options{}, "sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "out\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requireSh(t)

	r := NewRunner()
	dir := t.TempDir()
	_, err := r.Run(context.Background(), dir, Options{}, "sh", "-c", "echo boom 1>&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Dir != dir {
		t.Errorf("Dir = %q, want %q", cmdErr.Dir, dir)
	}
	if !strings.Contains(cmdErr.Stderr, "boom") {
		t.Errorf("Stderr = %q, want it to contain %q", cmdErr.Stderr, "boom")
	}
	if got := cmdErr.Command(); !strings.HasPrefix(got, "sh -c") {
		t.Errorf("Command() = %q, want sh -c prefix", got)
	}
}

func TestRunTimeout(t *testing.T) {
	requireSh(t)

	r := NewRunner()
	start := time.Now()
	_, err := r.Run(context.Background(), t.TempDir(), Options{Timeout: 50 * time.Millisecond}, "sh", "-c", "sleep 5")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %v, command was not killed promptly", elapsed)
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if !cmdErr.TimedOut() {
		t.Errorf("TimedOut() = false, Err = %v", cmdErr.Err)
	}
}

func TestRunAppendsEnv(t *testing.T) {
	requireSh(t)

	r := NewRunner()
	res, err := r.Run(context.Background(), t.TempDir(),
		Options{Env: []string{"GROVE_TEST_VAR=hello"}},
		"sh", "-c", `printf "%s" "$GROVE_TEST_VAR"`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "hello" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello")
	}
}

func TestRunCapsOutput(t *testing.T) {
	requireSh(t)

	r := NewRunner()
	res, err := r.Run(context.Background(), t.TempDir(),
		Options{MaxBuffer: 16},
		"sh", "-c", "printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 16 {
		t.Errorf("stdout length = %d, want capped at 16", len(res.Stdout))
	}
}

func TestWSLArgv(t *testing.T) {
	got := WSLArgv("Ubuntu", "/home/dev/app", []string{"git", "status", "--porcelain"})
	want := []string{"wsl.exe", "-d", "Ubuntu", "--cd", "/home/dev/app", "-e", "git", "status", "--porcelain"}
	if len(got) != len(want) {
		t.Fatalf("WSLArgv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("WSLArgv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWSLRunnerRewritesCommandLine(t *testing.T) {
	var gotDir, gotName string
	var gotArgs []string
	fn := func(ctx context.Context, dir string, opts Options, name string, args ...string) (Result, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return Result{Stdout: "ok"}, nil
	}

	r := NewRunnerWithExec("Debian", fn)
	if _, err := r.Run(context.Background(), "/home/dev/app", Options{}, "git", "fetch"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if gotName != "wsl.exe" {
		t.Errorf("launcher = %q, want wsl.exe", gotName)
	}
	if gotDir != "" {
		t.Errorf("exec dir = %q, want empty (wsl.exe owns the cwd)", gotDir)
	}
	joined := strings.Join(gotArgs, " ")
	if joined != "-d Debian --cd /home/dev/app -e git fetch" {
		t.Errorf("args = %q", joined)
	}
}

func TestRunWrapsLauncherError(t *testing.T) {
	sentinel := fmt.Errorf("spawn refused")
	fn := func(ctx context.Context, dir string, opts Options, name string, args ...string) (Result, error) {
		return Result{Stderr: "diagnostic"}, sentinel
	}

	r := NewRunnerWithExec("", fn)
	_, err := r.Run(context.Background(), "/tmp/p", Options{}, "git", "status")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if !errors.Is(err, sentinel) {
		t.Error("CommandError does not unwrap to the launcher error")
	}
	if cmdErr.Stderr != "diagnostic" {
		t.Errorf("Stderr = %q, want preserved", cmdErr.Stderr)
	}
	if cmdErr.Dir != "/tmp/p" {
		t.Errorf("Dir = %q, want original cwd", cmdErr.Dir)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{max: 4}
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write = (%d, %v), want (6, nil)", n, err)
	}
	if b.String() != "abcd" {
		t.Errorf("buffer = %q, want %q", b.String(), "abcd")
	}
	b.Write([]byte("gh"))
	if b.String() != "abcd" {
		t.Errorf("buffer grew past cap: %q", b.String())
	}
}
