// pattern: Functional Core

package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// Env classifies the filesystem environment a project lives in. It determines
// join semantics and whether stored paths need rewriting before they reach
// host filesystem APIs or host-spawned subprocesses.
type Env int

const (
	// EnvPosix is a host-native Linux or macOS project.
	EnvPosix Env = iota
	// EnvWindows is a host-native Windows project.
	EnvWindows
	// EnvWSL is a project inside a WSL distribution. Its paths are stored in
	// POSIX form and addressed from the Windows host via a \\wsl$ UNC path.
	EnvWSL
)

// String returns the stable spelling used in configuration and storage.
func (e Env) String() string {
	switch e {
	case EnvWindows:
		return "windows"
	case EnvWSL:
		return "wsl"
	default:
		return "posix"
	}
}

// ParseEnv is the inverse of String. Unknown values map to EnvPosix.
func ParseEnv(s string) Env {
	switch s {
	case "windows":
		return EnvWindows
	case "wsl":
		return EnvWSL
	default:
		return EnvPosix
	}
}

// uncPrefixes are the host-addressable spellings of a WSL path. A stored path
// already carrying one is host form and passes through ToFileSystem unchanged.
var uncPrefixes = []string{`\\wsl$\`, `\\wsl.localhost\`}

// Resolver translates between a project's canonical stored path form and a
// form usable by the host. Stored form is POSIX-separated for WSL projects and
// native for everything else. None of its operations fail on malformed input;
// they degrade to best-effort string manipulation.
type Resolver struct {
	env    Env
	distro string
}

// NewResolver returns a resolver for the given environment. distro is the WSL
// distribution name and is ignored unless env is EnvWSL.
func NewResolver(env Env, distro string) *Resolver {
	return &Resolver{env: env, distro: distro}
}

// Native returns a resolver for projects on the host's own filesystem.
func Native() *Resolver {
	if runtime.GOOS == "windows" {
		return NewResolver(EnvWindows, "")
	}
	return NewResolver(EnvPosix, "")
}

// Env returns the environment this resolver translates for.
func (r *Resolver) Env() Env {
	return r.env
}

// ToFileSystem rewrites a stored path into a host-usable one. For a WSL
// project a POSIX path becomes \\wsl$\<distro>\<path>; input already in UNC
// form is returned unchanged, so applying the translation twice is a no-op.
// For native projects it is the identity.
func (r *Resolver) ToFileSystem(stored string) string {
	if r.env != EnvWSL {
		return stored
	}
	lower := strings.ToLower(stored)
	for _, prefix := range uncPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return stored
		}
	}
	return `\\wsl$\` + r.distro + strings.ReplaceAll(stored, "/", `\`)
}

// Join joins path segments using the project's stored-form semantics: POSIX
// separators for WSL projects, the native separator otherwise.
func (r *Resolver) Join(parts ...string) string {
	if r.env == EnvWSL {
		return path.Join(parts...)
	}
	return filepath.Join(parts...)
}

// Relative computes the path from from to to. Both arguments must already be
// in the same form.
func (r *Resolver) Relative(from, to string) (string, error) {
	if r.env == EnvWSL {
		return posixRel(from, to)
	}
	return filepath.Rel(from, to)
}

// IsAbs reports whether p is absolute in the project's stored form.
func (r *Resolver) IsAbs(p string) bool {
	if r.env == EnvWSL {
		return path.IsAbs(p)
	}
	return filepath.IsAbs(p)
}

// Base returns the last element of p in the project's stored form.
func (r *Resolver) Base(p string) string {
	if r.env == EnvWSL {
		return path.Base(p)
	}
	return filepath.Base(p)
}

// IsWithin reports whether target resolves to a location inside base (or is
// base itself). Symlinks are resolved on both sides; a path that cannot be
// resolved, typically because it does not exist yet, participates as given.
// This is the one resolver operation callers rely on as a security boundary:
// it rejects worktree locations that escape the project's worktrees directory.
func (r *Resolver) IsWithin(base, target string) bool {
	rel, err := r.Relative(Canonical(base), Canonical(target))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	sep := string(filepath.Separator)
	isAbs := filepath.IsAbs
	if r.env == EnvWSL {
		sep = "/"
		isAbs = path.IsAbs
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+sep) && !isAbs(rel)
}

// Canonical resolves symlinks in p, falling back to the input when resolution
// fails.
func Canonical(p string) string {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p
	}
	return resolved
}

// posixRel is filepath.Rel with POSIX semantics regardless of the host OS,
// for paths kept in WSL stored form.
func posixRel(from, to string) (string, error) {
	f := path.Clean(from)
	t := path.Clean(to)
	if f == t {
		return ".", nil
	}
	if path.IsAbs(f) != path.IsAbs(t) {
		return "", fmt.Errorf("cannot make %q relative to %q", to, from)
	}
	fparts := splitPath(f)
	tparts := splitPath(t)
	common := 0
	for common < len(fparts) && common < len(tparts) && fparts[common] == tparts[common] {
		common++
	}
	var out []string
	for range fparts[common:] {
		out = append(out, "..")
	}
	out = append(out, tparts[common:]...)
	return strings.Join(out, "/"), nil
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	return parts
}
