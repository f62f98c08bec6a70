package tool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/pathfs"
)

const (
	listFilesDefaultDepth = 2
	listFilesMaxItems     = 200
	searchMaxFileSize     = 1 << 20 // 1 MiB
	searchMaxMatchLines   = 200
	readFilesMaxSpecs     = 5
	readFilesDefaultSpan  = 1000
)

// listFiles walks the target directory
// to a depth bound, capped at listFilesMaxItems entries, with a
// trailing "/" marking directories.
func listFiles(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	rawPath, _ := args["path"].(string)

	roots, err := tc.Workspace.Roots(tc.UserID)
	if err != nil {
		return nil, err
	}

	root, err := resolveListRoot(rawPath, roots)
	if err != nil {
		return nil, err
	}

	entries, err := walkEntries(root, roots, listFilesDefaultDepth, listFilesMaxItems)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "list files under %s", rawPath)
	}

	return map[string]any{"ok": true, "entries": entries}, nil
}

func resolveListRoot(rawPath string, roots *pathfs.Roots) (string, error) {
	if strings.TrimSpace(rawPath) == "" {
		if len(roots.AllowRoots) == 0 {
			return "", coreerr.New(coreerr.ConfigurationError, "no workspace root configured")
		}
		return roots.AllowRoots[0], nil
	}
	return pathfs.Resolve(rawPath, roots, true)
}

func walkEntries(root string, roots *pathfs.Roots, maxDepth, maxItems int) ([]string, error) {
	var out []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		children, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
		for _, child := range children {
			if len(out) >= maxItems {
				return nil
			}
			full := filepath.Join(dir, child.Name())
			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			if child.IsDir() {
				out = append(out, rel+"/")
				if depth < maxDepth {
					if err := walk(full, depth+1); err != nil {
						return err
					}
				}
			} else {
				out = append(out, rel)
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// searchContent does a case-insensitive
// substring search, per-file size cap, bounded match lines, optional
// shell-style file_pattern.
func searchContent(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, coreerr.New(coreerr.PathRequired, "search content requires a non-empty query")
	}
	rawPath, _ := args["path"].(string)
	filePattern, _ := args["file_pattern"].(string)

	roots, err := tc.Workspace.Roots(tc.UserID)
	if err != nil {
		return nil, err
	}
	root, err := resolveListRoot(rawPath, roots)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []map[string]any

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || len(matches) >= searchMaxMatchLines {
			return nil
		}
		if info.Size() > searchMaxFileSize {
			return nil
		}
		if filePattern != "" {
			if ok, _ := filepath.Match(filePattern, filepath.Base(path)); !ok {
				return nil
			}
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		for lineNo, line := range strings.Split(string(data), "\n") {
			if len(matches) >= searchMaxMatchLines {
				break
			}
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, map[string]any{
					"path": rel,
					"line": lineNo + 1,
					"text": line,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "search content under %s", rawPath)
	}

	return map[string]any{"ok": true, "matches": matches}, nil
}

// fileSpec is one entry of readFiles' files argument.
type fileSpec struct {
	Path       string
	LineRanges [][2]int
}

// lineInterval is a clamped, 1-based [start,end] line span.
type lineInterval struct {
	start, end int
}

// mergeLineIntervals sorts intervals by start and merges overlapping or
// adjacent ones, so readFiles' "complete" flag reflects the union of
// every requested range rather than double-counting overlap.
func mergeLineIntervals(intervals []lineInterval) []lineInterval {
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	merged := []lineInterval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end+1 {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func parseFileSpecs(raw []any) []fileSpec {
	specs := make([]fileSpec, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, _ := obj["path"].(string)
		if path == "" {
			continue
		}
		spec := fileSpec{Path: path}
		if ranges, ok := obj["line_ranges"].([]any); ok {
			for _, r := range ranges {
				if pair, ok := r.([]any); ok && len(pair) == 2 {
					spec.LineRanges = append(spec.LineRanges, [2]int{toInt(pair[0]), toInt(pair[1])})
				}
			}
		}
		if len(spec.LineRanges) == 0 {
			start := toInt(obj["start_line"])
			end := toInt(obj["end_line"])
			if start == 0 {
				start = 1
			}
			if end == 0 {
				end = start + readFilesDefaultSpan - 1
			}
			spec.LineRanges = [][2]int{{start, end}}
		}
		specs = append(specs, spec)
	}
	return specs
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// readFiles reads up to readFilesMaxSpecs
// file specs, each with one or more line ranges capped to
// readFilesDefaultSpan lines per span, returning per-file meta plus
// concatenated ">>> path\n"-delimited, line-numbered text.
func readFiles(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	raw, _ := args["files"].([]any)
	if len(raw) == 0 {
		return nil, coreerr.New(coreerr.PathRequired, "read files requires a non-empty files list")
	}
	specs := parseFileSpecs(raw)
	if len(specs) > readFilesMaxSpecs {
		specs = specs[:readFilesMaxSpecs]
	}

	var builder strings.Builder
	files := make([]map[string]any, 0, len(specs))

	maxBytes := int64(0)
	if tc.Config != nil {
		maxBytes = tc.Config.Security.MaxReadBytes
	}

	for _, spec := range specs {
		data, err := tc.Workspace.ReadFile(tc.UserID, spec.Path, maxBytes)
		if err != nil {
			return nil, err
		}
		lines := strings.Split(string(data), "\n")
		totalLines := len(lines)

		builder.WriteString(">>> " + spec.Path + "\n")
		var intervals []lineInterval
		for _, span := range spec.LineRanges {
			start, end := span[0], span[1]
			if start < 1 {
				start = 1
			}
			if end-start+1 > readFilesDefaultSpan {
				end = start + readFilesDefaultSpan - 1
			}
			if end > totalLines {
				end = totalLines
			}
			if start > end {
				continue
			}
			intervals = append(intervals, lineInterval{start: start, end: end})
		}

		readLines := 0
		for _, iv := range mergeLineIntervals(intervals) {
			for i := iv.start; i <= iv.end; i++ {
				builder.WriteString(strconv.Itoa(i) + ": " + lines[i-1] + "\n")
				readLines++
			}
		}
		complete := readLines == totalLines

		files = append(files, map[string]any{
			"path":        spec.Path,
			"read_lines":  readLines,
			"total_lines": totalLines,
			"complete":    complete,
		})
	}

	return map[string]any{"ok": true, "files": files, "content": builder.String()}, nil
}

// writeFile creates parent directories
// as needed, then invokes an LSP touch-with-diagnostics-wait via
// lspTouch, which is a no-op when LSP is disabled or unconfigured for
// the file.
func writeFile(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, coreerr.New(coreerr.PathRequired, "write file requires a path")
	}
	content, _ := args["content"].(string)

	if err := tc.Workspace.WriteFile(tc.UserID, path, content, true); err != nil {
		return nil, err
	}
	lspTouch(ctx, tc, path, content)

	return map[string]any{"ok": true, "path": path}, nil
}

// replaceText counts occurrences of
// old_string, enforces expected_replacements when given, replaces all
// occurrences, bumps the workspace version, and LSP-touches the file.
func replaceText(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	path, _ := args["path"].(string)
	oldStr, _ := args["old_string"].(string)
	newStr, _ := args["new_string"].(string)
	if path == "" || oldStr == "" {
		return nil, coreerr.New(coreerr.PathRequired, "replace text requires path and old_string")
	}

	data, err := tc.Workspace.ReadFile(tc.UserID, path, 0)
	if err != nil {
		return nil, err
	}
	content := string(data)
	count := strings.Count(content, oldStr)

	if expectedRaw, ok := args["expected_replacements"]; ok {
		expected := toInt(expectedRaw)
		if expected != count {
			return map[string]any{
				"ok":    false,
				"error": "replacement count mismatch",
				"data":  map[string]any{"expected": expected, "actual": count},
			}, nil
		}
	}

	replaced := strings.ReplaceAll(content, oldStr, newStr)
	if err := tc.Workspace.WriteFile(tc.UserID, path, replaced, false); err != nil {
		return nil, err
	}
	tc.Workspace.BumpVersion(tc.UserID)
	lspTouch(ctx, tc, path, replaced)

	return map[string]any{"ok": true, "replacements": count}, nil
}

// editAction is one entry of edit_file's ordered edits list.
type editAction struct {
	Action     string
	StartLine  int
	EndLine    int
	NewContent string
}

// editFile applies an ordered list of
// replace/insert_before/insert_after/delete edits over 1-based,
// clamped line indices.
func editFile(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	path, _ := args["path"].(string)
	rawEdits, _ := args["edits"].([]any)
	if path == "" || len(rawEdits) == 0 {
		return nil, coreerr.New(coreerr.PathRequired, "edit file requires path and a non-empty edits list")
	}

	data, err := tc.Workspace.ReadFile(tc.UserID, path, 0)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	for _, rawEdit := range rawEdits {
		obj, ok := rawEdit.(map[string]any)
		if !ok {
			continue
		}
		action, _ := obj["action"].(string)
		if action == "" {
			action = "replace"
		}
		start := toInt(obj["start_line"])
		if start < 1 {
			start = 1
		}
		end := toInt(obj["end_line"])
		if end < start {
			end = start
		}
		newContent, _ := obj["new_content"].(string)
		lines = applyEdit(lines, editAction{Action: action, StartLine: start, EndLine: end, NewContent: newContent})
	}

	ensureNewline := true
	if v, ok := args["ensure_newline_at_eof"].(bool); ok {
		ensureNewline = v
	}
	output := strings.Join(lines, "\n")
	if ensureNewline && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}

	if err := tc.Workspace.WriteFile(tc.UserID, path, output, false); err != nil {
		return nil, err
	}
	lspTouch(ctx, tc, path, output)

	return map[string]any{"ok": true, "lines": len(lines)}, nil
}

func applyEdit(lines []string, e editAction) []string {
	startIdx := e.StartLine - 1
	endIdx := e.EndLine - 1

	switch e.Action {
	case "replace":
		last := len(lines) - 1
		if last < 0 {
			return lines
		}
		if startIdx < 0 {
			startIdx = 0
		}
		if endIdx > last {
			endIdx = last
		}
		replacement := strings.Split(e.NewContent, "\n")
		tail := append([]string{}, lines[endIdx+1:]...)
		lines = append(lines[:startIdx], replacement...)
		lines = append(lines, tail...)
	case "insert_before":
		if startIdx < 0 {
			startIdx = 0
		}
		if startIdx > len(lines) {
			startIdx = len(lines)
		}
		lines = append(lines[:startIdx], append([]string{e.NewContent}, lines[startIdx:]...)...)
	case "insert_after":
		idx := endIdx + 1
		if idx > len(lines) {
			idx = len(lines)
		}
		if idx < 0 {
			idx = 0
		}
		lines = append(lines[:idx], append([]string{e.NewContent}, lines[idx:]...)...)
	case "delete":
		last := len(lines) - 1
		if startIdx < 0 || startIdx > last {
			return lines
		}
		if endIdx > last {
			endIdx = last
		}
		lines = append(lines[:startIdx], lines[endIdx+1:]...)
	}
	return lines
}
