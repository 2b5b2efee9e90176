// Package security holds pre-execution safety checks and the tool-call audit
// trail.
package security

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/toolbridge/toolbridge/internal/protocol"
)

// PathGuard confines filesystem tools to a root directory. With no root
// configured every path is passed through and legality is left to the OS;
// with a root, any path resolving outside it is rejected before the
// filesystem is touched. Containment is checked on the physical path, so a
// symlink inside the root pointing outside it is an escape, not a passthrough.
type PathGuard struct {
	root string // absolute and symlink-resolved, or "" for unrestricted
}

func NewPathGuard(root string) (*PathGuard, error) {
	if root == "" {
		return &PathGuard{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	// Canonicalize the root itself so the containment test compares
	// like with like when the root sits behind a symlink. A root that
	// does not exist yet is resolved through its deepest existing ancestor.
	if real, err := physicalPath(abs); err == nil {
		abs = real
	}
	return &PathGuard{root: abs}, nil
}

// Restricted reports whether a sandbox root is configured.
func (g *PathGuard) Restricted() bool {
	return g.root != ""
}

// Root returns the configured sandbox root, or "".
func (g *PathGuard) Root() string {
	return g.root
}

// Resolve cleans the path and, when a root is configured, rejects escapes
// with permission_denied. Relative paths are resolved against the root when
// one is set, else against the working directory. Both the lexical path and
// its symlink-resolved form must stay inside the root.
func (g *PathGuard) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if g.root == "" {
		return filepath.Clean(path), nil
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(g.root, resolved)
	}
	resolved = filepath.Clean(resolved)

	if !g.contains(resolved) {
		return "", protocol.Failf(protocol.KindPermissionDenied, "path %q is outside the sandbox root", path)
	}

	physical, err := physicalPath(resolved)
	if err != nil {
		return "", protocol.Failf(protocol.KindPermissionDenied, "path %q cannot be verified: %v", path, err)
	}
	if !g.contains(physical) {
		return "", protocol.Failf(protocol.KindPermissionDenied, "path %q resolves outside the sandbox root", path)
	}
	return resolved, nil
}

func (g *PathGuard) contains(p string) bool {
	return p == g.root || strings.HasPrefix(p, g.root+string(filepath.Separator))
}

// physicalPath resolves symlinks on the deepest existing ancestor of path and
// reattaches the non-existing remainder, so not-yet-created files are checked
// against the directory they would land in.
func physicalPath(path string) (string, error) {
	remainder := ""
	for p := path; ; {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(real, remainder), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path, nil
		}
		remainder = filepath.Join(filepath.Base(p), remainder)
		p = parent
	}
}
