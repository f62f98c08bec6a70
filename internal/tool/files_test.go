package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// TestWriteThenReadFiles_RoundTrip: write then
// read must surface the exact content through the ">>> path\n" /
// "line: text" wire shape.
func TestWriteThenReadFiles_RoundTrip(t *testing.T) {
	tc := newTestContext(t, "alice")

	out, err := writeFile(context.Background(), tc, map[string]any{"path": "a/b.txt", "content": "hello\n"})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))

	out, err = readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "a/b.txt"}},
	})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
	assert.Contains(t, out["content"].(string), ">>> a/b.txt\n1: hello")

	files := out["files"].([]map[string]any)
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0]["read_lines"]) // "hello\n" splits into ["hello", ""]
	assert.True(t, files[0]["complete"].(bool))
}

// TestReadFiles_RequiresNonEmptyList covers the empty-input boundary.
func TestReadFiles_RequiresNonEmptyList(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := readFiles(context.Background(), tc, map[string]any{"files": []any{}})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.PathRequired))
}

// TestReadFiles_ClampsRangeToFileLength is the "read range partly
// outside file" boundary: report read_lines/complete reflecting
// the clamp rather than erroring.
func TestReadFiles_ClampsRangeToFileLength(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "c.txt", "content": "one\ntwo\nthree\n"})
	require.NoError(t, err)

	out, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "c.txt", "start_line": float64(1), "end_line": float64(100)}},
	})
	require.NoError(t, err)
	files := out["files"].([]map[string]any)
	require.Len(t, files, 1)
	assert.Equal(t, 4, files[0]["total_lines"]) // trailing empty line from the final "\n"
	assert.Equal(t, 4, files[0]["read_lines"])
	assert.True(t, files[0]["complete"].(bool))
}

// TestReadFiles_PartialRangeIsNotComplete covers a range that does not
// start at line 1: reading only a slice of a larger file must report
// complete=false, reflecting the union of requested ranges rather than
// per-span clamping against total_lines.
func TestReadFiles_PartialRangeIsNotComplete(t *testing.T) {
	tc := newTestContext(t, "alice")
	content := strings.Repeat("line\n", 500)
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "h.txt", "content": content})
	require.NoError(t, err)

	out, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "h.txt", "start_line": float64(400), "end_line": float64(500)}},
	})
	require.NoError(t, err)
	files := out["files"].([]map[string]any)
	require.Len(t, files, 1)
	assert.Equal(t, 501, files[0]["total_lines"]) // trailing empty line from the final "\n"
	assert.Equal(t, 101, files[0]["read_lines"])
	assert.False(t, files[0]["complete"].(bool))
}

// TestReadFiles_MergesOverlappingRanges covers two overlapping
// line_ranges spans: the union must be read once, not double-counted,
// and complete must reflect coverage of the whole file.
func TestReadFiles_MergesOverlappingRanges(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "i.txt", "content": "a\nb\nc\nd\n"})
	require.NoError(t, err)

	out, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{
			"path": "i.txt",
			"line_ranges": []any{
				[]any{float64(1), float64(3)},
				[]any{float64(2), float64(5)},
			},
		}},
	})
	require.NoError(t, err)
	files := out["files"].([]map[string]any)
	require.Len(t, files, 1)
	assert.Equal(t, 5, files[0]["total_lines"])
	assert.Equal(t, 5, files[0]["read_lines"])
	assert.True(t, files[0]["complete"].(bool))
}

// TestReadFiles_OutOfBounds: a path that
// escapes every allow/read root must fail with PathOutOfBounds and
// never touch the filesystem.
func TestReadFiles_OutOfBounds(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "/etc/passwd"}},
	})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.PathOutOfBounds))
}

func TestWriteFile_OutOfBoundsLeavesFilesystemUnchanged(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "/etc/hacked", "content": "x"})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.PathOutOfBounds))
}

func TestReplaceText_CountsAndEnforcesExpectedReplacements(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "d.txt", "content": "foo bar foo\n"})
	require.NoError(t, err)

	out, err := replaceText(context.Background(), tc, map[string]any{
		"path": "d.txt", "old_string": "foo", "new_string": "baz", "expected_replacements": float64(5),
	})
	require.NoError(t, err)
	assert.False(t, out["ok"].(bool))

	out, err = replaceText(context.Background(), tc, map[string]any{
		"path": "d.txt", "old_string": "foo", "new_string": "baz",
	})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
	assert.Equal(t, 2, out["replacements"])

	read, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "d.txt"}},
	})
	require.NoError(t, err)
	assert.Contains(t, read["content"].(string), "baz bar baz")
}

func TestEditFile_ReplaceCollapsesRangeToSingleBlock(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "e.txt", "content": "one\ntwo\nthree\nfour\n"})
	require.NoError(t, err)

	out, err := editFile(context.Background(), tc, map[string]any{
		"path": "e.txt",
		"edits": []any{
			map[string]any{"action": "replace", "start_line": float64(2), "end_line": float64(3), "new_content": "replaced"},
		},
	})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))

	read, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "e.txt"}},
	})
	require.NoError(t, err)
	assert.Contains(t, read["content"].(string), "1: one\n2: replaced\n3: four\n")
}

func TestEditFile_InsertAndDelete(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "f.txt", "content": "a\nb\nc\n"})
	require.NoError(t, err)

	// Edits apply in order against the evolving line array: after the
	// insert, the original "c" has shifted from line 3 to line 4.
	_, err = editFile(context.Background(), tc, map[string]any{
		"path": "f.txt",
		"edits": []any{
			map[string]any{"action": "insert_after", "start_line": float64(1), "end_line": float64(1), "new_content": "a2"},
			map[string]any{"action": "delete", "start_line": float64(4), "end_line": float64(4)},
		},
	})
	require.NoError(t, err)

	read, err := readFiles(context.Background(), tc, map[string]any{
		"files": []any{map[string]any{"path": "f.txt"}},
	})
	require.NoError(t, err)
	assert.Contains(t, read["content"].(string), "1: a\n2: a2\n3: b\n")
}

func TestListFiles_MarksDirectoriesWithTrailingSlash(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "sub/file.txt", "content": "x"})
	require.NoError(t, err)

	out, err := listFiles(context.Background(), tc, map[string]any{"path": ""})
	require.NoError(t, err)
	entries := out["entries"].([]string)
	assert.Contains(t, entries, "sub/")
	assert.Contains(t, entries, "sub/file.txt")
}

func TestSearchContent_FindsCaseInsensitiveMatch(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := writeFile(context.Background(), tc, map[string]any{"path": "g.txt", "content": "Hello World\nsecond line\n"})
	require.NoError(t, err)

	out, err := searchContent(context.Background(), tc, map[string]any{"query": "hello"})
	require.NoError(t, err)
	matches := out["matches"].([]map[string]any)
	require.Len(t, matches, 1)
	assert.Equal(t, "g.txt", matches[0]["path"])
	assert.Equal(t, 1, matches[0]["line"])
}
