// Package pathfs implements path & workspace confinement: given a
// raw, possibly relative path string and a list of allow-roots, it
// produces a canonicalized absolute path guaranteed to be lexically
// contained in one of the roots, or a *coreerr.Error naming why not.
package pathfs

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// Roots holds the two ordered confinement root lists: AllowRoots
// (writable) and ReadRoots (AllowRoots union skill roots). Both are
// deduplicated by case-folded canonical string and shared by reference
// across concurrent invocations once built.
type Roots struct {
	AllowRoots []string
	ReadRoots  []string
	DenyGlobs  []string
}

// NewRoots canonicalizes and deduplicates allow and read roots, folding
// read roots to be a superset of allow roots (skillRoots ∪ allowRoots).
func NewRoots(allowRoots, skillRoots, denyGlobs []string) (*Roots, error) {
	allow, err := canonicalizeAll(allowRoots)
	if err != nil {
		return nil, err
	}
	read, err := canonicalizeAll(append(append([]string{}, allowRoots...), skillRoots...))
	if err != nil {
		return nil, err
	}
	return &Roots{AllowRoots: allow, ReadRoots: read, DenyGlobs: denyGlobs}, nil
}

func canonicalizeAll(roots []string) ([]string, error) {
	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		c, err := Canonicalize(r)
		if err != nil {
			return nil, err
		}
		key := foldCase(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out, nil
}

// driveLetterRE matches a two-character foreign drive specifier like "C:".
var driveLetterRE = regexp.MustCompile(`^[A-Za-z]:`)

// caseInsensitiveFS reports whether path comparisons on this platform
// should fold case. Linux containers, the deployment target, are
// case-sensitive; this stays narrow on purpose.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

func foldCase(p string) string {
	if caseInsensitiveFS() {
		return strings.ToLower(p)
	}
	return p
}

// Canonicalize normalizes a path: resolves it against the current
// working directory if relative, and walks its components collapsing
// "." and ".." without ever popping above the resulting root.
func Canonicalize(raw string) (string, error) {
	if raw == "" {
		return "", coreerr.New(coreerr.PathRequired, "path is required")
	}

	if driveLetterRE.MatchString(raw) && runtime.GOOS != "windows" {
		return "", coreerr.New(coreerr.PathOutOfBounds, "foreign drive specifier %q is not valid in this environment", raw)
	}

	abs := raw
	if !filepath.IsAbs(raw) {
		cwd, err := osGetwd()
		if err != nil {
			return "", coreerr.Wrap(coreerr.TransportError, err, "resolve current working directory")
		}
		abs = filepath.Join(cwd, raw)
	}

	return normalizeComponents(abs), nil
}

// normalizeComponents walks path components, dropping "." and popping on
// "..", but never above the filesystem root.
func normalizeComponents(abs string) string {
	vol := filepath.VolumeName(abs)
	rest := abs[len(vol):]
	parts := strings.Split(filepath.ToSlash(rest), "/")

	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}

	joined := "/" + strings.Join(stack, "/")
	return vol + filepath.FromSlash(joined)
}

// Resolve resolves raw against roots for a read (forRead=true) or
// write (forRead=false) operation, enforcing containment and
// deny_globs. Relative paths resolve against the first applicable root
// (the invocation's working directory is the user's workspace root).
// The returned path is always absolute and canonical.
func Resolve(raw string, roots *Roots, forRead bool) (string, error) {
	if raw == "" {
		return "", coreerr.New(coreerr.PathRequired, "path is required")
	}

	rootSet := roots.AllowRoots
	if forRead {
		rootSet = roots.ReadRoots
	}

	if driveLetterRE.MatchString(raw) && runtime.GOOS != "windows" {
		return "", coreerr.New(coreerr.PathOutOfBounds, "foreign drive specifier %q is not valid in this environment", raw)
	}
	if !filepath.IsAbs(raw) && len(rootSet) > 0 {
		raw = filepath.Join(rootSet[0], raw)
	}

	canon, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}

	matchedRoot, ok := containedIn(canon, rootSet)
	if !ok {
		return "", coreerr.New(coreerr.PathOutOfBounds, "path %q is outside the allowed roots", raw)
	}

	if len(roots.DenyGlobs) > 0 {
		rel := relativeTo(canon, matchedRoot)
		for _, pattern := range roots.DenyGlobs {
			if matched, _ := filepath.Match(pattern, rel); matched {
				return "", coreerr.New(coreerr.PathForbidden, "path %q matches a forbidden pattern %q", raw, pattern)
			}
		}
	}

	return canon, nil
}

// containedIn reports whether candidate is lexically contained in one of
// roots (case-folded compare on case-insensitive platforms), returning
// the matching root.
func containedIn(candidate string, roots []string) (string, bool) {
	candidateFold := foldCase(candidate)
	for _, root := range roots {
		rootFold := foldCase(root)
		if candidateFold == rootFold {
			return root, true
		}
		sep := string(filepath.Separator)
		prefix := rootFold
		if !strings.HasSuffix(prefix, sep) {
			prefix += sep
		}
		if strings.HasPrefix(candidateFold, prefix) {
			return root, true
		}
	}
	return "", false
}

func relativeTo(candidate, root string) string {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return candidate
	}
	return filepath.ToSlash(rel)
}
