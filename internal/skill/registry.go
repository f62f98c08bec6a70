package skill

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// Registry holds every skill discovered under a set of root directories.
// One root is, e.g., a bundled-skills directory or a user's workspace
// `skills/` subdirectory; its basename becomes the Owner used to
// disambiguate a bare name that collides across roots.
type Registry struct {
	roots []string
	byRef map[string]*Spec   // "@owner/name" -> spec
	byName map[string][]*Spec // bare name -> all matching specs, any owner
}

// Discover scans roots (each containing one subdirectory per skill, every
// subdirectory holding a SKILL.md) and builds a Registry. Roots that do
// not exist are skipped, not an error; directories without a SKILL.md are
// silently skipped, matching how the workspace's skills/ folder fills in
// gradually as packages are added.
func Discover(roots []string) (*Registry, []error) {
	reg := &Registry{
		roots:  append([]string{}, roots...),
		byRef:  make(map[string]*Spec),
		byName: make(map[string][]*Spec),
	}

	var errs []error
	for _, root := range roots {
		owner := filepath.Base(root)
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, coreerr.Wrap(coreerr.TransportError, err, "scan skill root %s", root))
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			skillDir := filepath.Join(root, entry.Name())
			if _, err := os.Stat(filepath.Join(skillDir, Filename)); err != nil {
				continue
			}

			spec, err := parseFile(skillDir, owner)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			reg.byRef[spec.Ref()] = spec
			reg.byName[spec.Name] = append(reg.byName[spec.Name], spec)
		}
	}

	return reg, errs
}

// ReadSkillRoots is the set of skill directories fed to both Discover
// and pathfs.NewRoots (so skill files are readable through the normal
// workspace-confined read path too).
func ReadSkillRoots(reg *Registry) []string {
	return append([]string{}, reg.roots...)
}

// Resolve looks up a skill by name or "@owner/name" ref; a bare name
// resolves only when exactly one owner provides it.
func (r *Registry) Resolve(nameOrRef string) (*Spec, error) {
	if strings.HasPrefix(nameOrRef, "@") {
		if spec, ok := r.byRef[nameOrRef]; ok {
			return spec, nil
		}
		return nil, coreerr.New(coreerr.Unsupported, "skill %q is not registered", nameOrRef)
	}

	matches := r.byName[nameOrRef]
	switch len(matches) {
	case 0:
		return nil, coreerr.New(coreerr.Unsupported, "skill %q is not registered", nameOrRef)
	case 1:
		return matches[0], nil
	default:
		return nil, coreerr.New(coreerr.ConfigurationError,
			"skill %q is ambiguous across owners; disambiguate with one of %s",
			nameOrRef, strings.Join(refsOf(matches), ", "))
	}
}

func refsOf(specs []*Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Ref()
	}
	sort.Strings(out)
	return out
}

// Registered reports whether name (bare or "@owner/name") resolves to
// exactly one skill, used by the dispatcher's step-3 lookup.
func (r *Registry) Registered(nameOrRef string) bool {
	_, err := r.Resolve(nameOrRef)
	return err == nil
}

const (
	treeMaxDepth = 4
	treeMaxItems = 200
)

// FileTree walks a skill's directory and returns paths relative to it,
// directories suffixed with "/", bounded to treeMaxDepth path components
// and treeMaxItems entries.
func FileTree(spec *Spec) ([]string, error) {
	var out []string
	err := filepath.Walk(spec.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if len(out) >= treeMaxItems {
			return filepath.SkipDir
		}
		if path == spec.Dir {
			return nil
		}
		rel, err := filepath.Rel(spec.Dir, path)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/") + 1
		if depth > treeMaxDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "walk skill directory %s", spec.Dir)
	}
	sort.Strings(out)
	return out, nil
}

// Description is what the built-in skill-call tool returns: the SKILL.md
// text plus a relative file tree, for the LLM to read before deciding
// whether to invoke the skill as a tool.
type Description struct {
	Content string
	Tree    []string
}

// Describe resolves nameOrRef and returns its Description.
func (r *Registry) Describe(nameOrRef string) (*Description, error) {
	spec, err := r.Resolve(nameOrRef)
	if err != nil {
		return nil, err
	}
	tree, err := FileTree(spec)
	if err != nil {
		return nil, err
	}
	return &Description{Content: spec.Content, Tree: tree}, nil
}
