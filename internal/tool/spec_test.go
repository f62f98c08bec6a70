package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinSpecs_CoverEveryRegisteredBuiltin(t *testing.T) {
	specs := BuiltinSpecs()
	byName := make(map[string]BuiltinSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	for name := range builtins {
		spec, ok := byName[name]
		require.True(t, ok, "builtin %q has no catalogue entry", name)
		assert.NotEmpty(t, spec.Description)
		assert.Equal(t, "object", spec.InputSchema["type"])
	}
	assert.Len(t, specs, len(builtins))
}

func TestBuiltinSpecs_SchemaCarriesRequiredAndProperties(t *testing.T) {
	schema := schemaFor(ptcArgs{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"filename", "workdir", "content"} {
		assert.Contains(t, props, field)
	}

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"filename", "workdir", "content"}, required)
}

func TestBuiltinSpecs_NestedStructsExpandInline(t *testing.T) {
	schema := schemaFor(readFilesArgs{})
	props := schema["properties"].(map[string]any)
	files, ok := props["files"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", files["type"])

	items, ok := files["items"].(map[string]any)
	require.True(t, ok)
	itemProps, ok := items["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, itemProps, "line_ranges")
}

func TestCanonicalAliases_GroupAliasesByCanonicalName(t *testing.T) {
	groups := canonicalAliases()
	assert.ElementsMatch(t, []string{"read_file", "read_files"}, groups[toolReadFiles])
	assert.Equal(t, []string{"programmatic_tool_call"}, groups[toolPTC])
}
