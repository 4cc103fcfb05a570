// pattern: Functional Core

package worktree

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"grove/internal/shell"
)

// ErrorKind tags a GitError with its failure category.
type ErrorKind int

const (
	// KindGit is an external git failure with no finer classification.
	KindGit ErrorKind = iota
	// KindPrecondition is a state check that failed before any mutation:
	// missing base branch, detached main, nothing to merge.
	KindPrecondition
	// KindConflict is a rebase or merge git could not complete cleanly; the
	// repository may be left in an in-progress state for manual resolution.
	KindConflict
	// KindEnvironment is a timeout, a missing binary, or a missing tool
	// capability.
	KindEnvironment
	// KindTransport is a malformed argument, rejected before any git call.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindConflict:
		return "conflict"
	case KindEnvironment:
		return "environment"
	case KindTransport:
		return "transport"
	default:
		return "git"
	}
}

// Sentinel preconditions callers branch on with errors.Is.
var (
	// ErrDetachedHead means the project root has no branch checked out, so
	// no main branch can be determined.
	ErrDetachedHead = errors.New("project root has no branch checked out")
	// ErrBaseBranchNotFound means an explicitly requested base branch does
	// not exist.
	ErrBaseBranchNotFound = errors.New("base branch not found")
	// ErrNothingToMerge means the worktree has no commits beyond main.
	ErrNothingToMerge = errors.New("already up to date with main branch")
	// ErrNothingToCommit means the worktree had no changes to commit.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrNotFastForward means the final integration step would have needed a
	// non-fast-forward merge because main moved; rebase again and retry.
	ErrNotFastForward = errors.New("main branch diverged during merge")
)

// GitError is the structured failure every operation returns for an external
// git problem: the category tag, the exact command sequence executed, both
// output streams, and the working directory. This is what crosses the
// transport boundary; a failure is never reduced to a bare message.
type GitError struct {
	Kind     ErrorKind
	Message  string
	Commands []string
	Stdout   string
	Stderr   string
	Dir      string
	err      error
}

func (e *GitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return "git operation failed"
}

func (e *GitError) Unwrap() error { return e.err }

// Output returns the combined tool output for diagnostic display.
func (e *GitError) Output() string {
	out := strings.TrimSpace(e.Stdout)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}

// WithCommands prepends commands executed earlier in the same workflow, so
// the error carries the full sequence that led to the failure.
func (e *GitError) WithCommands(prior ...string) *GitError {
	if len(prior) > 0 {
		e.Commands = append(append([]string{}, prior...), e.Commands...)
	}
	return e
}

// retag reclassifies the error under kind.
func (e *GitError) retag(kind ErrorKind) *GitError {
	e.Kind = kind
	return e
}

// markSentinel threads sentinel into the chain so errors.Is can find it.
func (e *GitError) markSentinel(sentinel error) *GitError {
	if e.err == nil {
		e.err = sentinel
	} else {
		e.err = fmt.Errorf("%w: %w", sentinel, e.err)
	}
	return e
}

// AsGitError unwraps err to a *GitError when one is present.
func AsGitError(err error) (*GitError, bool) {
	var ge *GitError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsKind reports whether err is a GitError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ge, ok := AsGitError(err)
	return ok && ge.Kind == kind
}

// precondition builds a KindPrecondition error wrapping sentinel.
func precondition(sentinel error, format string, args ...any) *GitError {
	return &GitError{
		Kind:    KindPrecondition,
		Message: fmt.Sprintf(format, args...),
		err:     sentinel,
	}
}

// transport builds a KindTransport error for arguments rejected before any
// git invocation.
func transport(format string, args ...any) *GitError {
	return &GitError{
		Kind:    KindTransport,
		Message: fmt.Sprintf(format, args...),
	}
}

// wrapRun converts a runner failure into a GitError. Timeouts and missing
// binaries are environment failures; everything else stays KindGit until the
// operation reclassifies it.
func wrapRun(err error, dir string, args []string) *GitError {
	ge := &GitError{
		Kind:     KindGit,
		Commands: []string{gitCommand(args)},
		Dir:      dir,
		err:      err,
	}
	var cmdErr *shell.CommandError
	if errors.As(err, &cmdErr) {
		ge.Stdout = cmdErr.Stdout
		ge.Stderr = cmdErr.Stderr
		if cmdErr.Dir != "" {
			ge.Dir = cmdErr.Dir
		}
		if cmdErr.TimedOut() || errors.Is(cmdErr.Err, exec.ErrNotFound) {
			ge.Kind = KindEnvironment
		}
	}
	return ge
}

// gitCommand renders an argument list as the command line it ran as.
func gitCommand(args []string) string {
	return "git " + strings.Join(args, " ")
}

// outputContains reports whether any fragment appears in err's tool output or
// message, case-insensitively. Used to recognize diagnostics like "is not a
// working tree" that change an error's meaning.
func outputContains(err error, fragments ...string) bool {
	ge, ok := AsGitError(err)
	if !ok {
		return false
	}
	haystack := strings.ToLower(ge.Stdout + "\n" + ge.Stderr + "\n" + ge.Error())
	for _, f := range fragments {
		if strings.Contains(haystack, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
