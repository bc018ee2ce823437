// Package scope enforces a task's declared file boundary. Forbidden rules
// always outrank allowed rules, and an empty scope rejects everything
// unless explicitly marked unrestricted (fail-closed).
package scope

import (
	"path"
	"strings"

	"steward/pkg/protocol"
)

// InScope evaluates a single path against a scope record in fixed order:
//  1. exact match against forbidden files -> reject
//  2. prefix match against forbidden directories -> reject
//  3. exact match against allowed files -> accept
//  4. glob match against allowed patterns -> accept
//  5. otherwise reject
func InScope(filePath string, rec protocol.Scope) bool {
	p := clean(filePath)

	for _, f := range rec.ForbiddenFiles {
		if p == clean(f) {
			return false
		}
	}
	for _, dir := range rec.ForbiddenDirs {
		prefix := strings.TrimSuffix(clean(dir), "/") + "/"
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}

	if rec.Unrestricted {
		return true
	}

	for _, f := range rec.AllowedFiles {
		if p == clean(f) {
			return true
		}
	}
	for _, g := range rec.AllowedGlobs {
		if globMatch(clean(g), p) {
			return true
		}
	}

	return false
}

// Violations returns every path in paths that fails the scope check,
// preserving input order. It never stops at the first failure so the caller
// can report all violations in one pass.
func Violations(paths []string, rec protocol.Scope) []string {
	var out []string
	for _, p := range paths {
		if !InScope(p, rec) {
			out = append(out, p)
		}
	}
	return out
}

// CheckCommit validates an entire staged file set against the scope,
// including the max-files-changed bound. A failure enumerates every
// violating path at once.
func CheckCommit(taskID string, paths []string, rec protocol.Scope) error {
	bad := Violations(paths, rec)
	if len(bad) > 0 {
		return &protocol.ScopeViolationError{TaskID: taskID, Paths: bad}
	}
	if rec.MaxFiles > 0 && len(paths) > rec.MaxFiles {
		return &protocol.ScopeViolationError{TaskID: taskID, Paths: paths}
	}
	return nil
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}

// globMatch matches pattern against p with path.Match semantics plus
// "**" support: "dir/**" matches everything under dir, and "**/x.go"
// matches x.go at any depth.
func globMatch(pattern, p string) bool {
	if !strings.Contains(pattern, "**") {
		ok, err := path.Match(pattern, p)
		return err == nil && ok
	}

	// Split on the first "**" and check prefix/suffix independently.
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" && !strings.HasPrefix(p, prefix+"/") {
		return false
	}
	if suffix == "" {
		return prefix == "" || strings.HasPrefix(p, prefix+"/")
	}

	rest := p
	if prefix != "" {
		rest = strings.TrimPrefix(p, prefix+"/")
	}

	// The suffix may itself contain single-star globs; try it against every
	// trailing segment run of rest.
	segs := strings.Split(rest, "/")
	for i := range segs {
		candidate := strings.Join(segs[i:], "/")
		if ok, err := path.Match(suffix, candidate); err == nil && ok {
			return true
		}
	}
	return false
}
