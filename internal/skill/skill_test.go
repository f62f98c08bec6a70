package skill

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name, description string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n\nBody text.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0o644))
	return dir
}

func TestDiscoverFindsSkillsUnderRoot(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "linter", "runs the project linter")

	reg, errs := Discover([]string{root})
	require.Empty(t, errs)

	spec, err := reg.Resolve("linter")
	require.NoError(t, err)
	require.Equal(t, "runs the project linter", spec.Description)
	require.Contains(t, spec.Content, "Body text.")
}

func TestDiscoverSkipsMissingRootWithoutError(t *testing.T) {
	reg, errs := Discover([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.Empty(t, errs)
	require.NotNil(t, reg)
}

func TestDiscoverSkipsDirectoriesWithoutManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-skill"), 0o755))
	writeSkill(t, root, "real-skill", "a real skill")

	reg, errs := Discover([]string{root})
	require.Empty(t, errs)
	require.False(t, reg.Registered("not-a-skill"))
	require.True(t, reg.Registered("real-skill"))
}

func TestResolveAmbiguousBareNameRequiresOwnerRef(t *testing.T) {
	rootA := filepath.Join(t.TempDir(), "team-a")
	rootB := filepath.Join(t.TempDir(), "team-b")
	require.NoError(t, os.MkdirAll(rootA, 0o755))
	require.NoError(t, os.MkdirAll(rootB, 0o755))
	writeSkill(t, rootA, "deploy", "team a deploy")
	writeSkill(t, rootB, "deploy", "team b deploy")

	reg, errs := Discover([]string{rootA, rootB})
	require.Empty(t, errs)

	_, err := reg.Resolve("deploy")
	require.Error(t, err)

	specA, err := reg.Resolve("@team-a/deploy")
	require.NoError(t, err)
	require.Equal(t, "team a deploy", specA.Description)

	specB, err := reg.Resolve("@team-b/deploy")
	require.NoError(t, err)
	require.Equal(t, "team b deploy", specB.Description)
}

func TestFileTreeListsRelativeEntriesSorted(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "lister", "lists files")

	reg, errs := Discover([]string{root})
	require.Empty(t, errs)
	spec, err := reg.Resolve("lister")
	require.NoError(t, err)
	require.Equal(t, dir, spec.Dir)

	tree, err := FileTree(spec)
	require.NoError(t, err)
	require.Contains(t, tree, Filename)
	require.Contains(t, tree, "notes.txt")
}

func TestDescribeReturnsContentAndTree(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "describer", "describes itself")

	reg, errs := Discover([]string{root})
	require.Empty(t, errs)

	desc, err := reg.Describe("describer")
	require.NoError(t, err)
	require.Contains(t, desc.Content, "Body text.")
	require.NotEmpty(t, desc.Tree)
}

func TestParseRejectsMissingFrontmatterDelimiter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte("no frontmatter here"), 0o644))

	_, err := parseFile(dir, "broken-root")
	require.Error(t, err)
}

func TestRunRoundTripsThroughShellEntrypoint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell entrypoint scenario targets POSIX runtimes")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\nread line\necho '{\"output\":\"ok\"}'\n"
	scriptPath := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))

	spec := &Spec{Name: "echoer", Dir: dir, Runtime: "binary", Entry: "run.sh"}

	output, logicalErr, err := Run(context.Background(), spec, map[string]any{"x": 1})
	require.NoError(t, err)
	require.Empty(t, logicalErr)
	require.Equal(t, "ok", output)
}

func TestRunSurfacesSkillLogicalError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell entrypoint scenario targets POSIX runtimes")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\nread line\necho '{\"error\":\"missing credential\"}'\n"
	scriptPath := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))

	spec := &Spec{Name: "failer", Dir: dir, Runtime: "binary", Entry: "run.sh"}

	output, logicalErr, err := Run(context.Background(), spec, nil)
	require.NoError(t, err)
	require.Empty(t, output)
	require.Equal(t, "missing credential", logicalErr)
}

func TestRunRejectsUnsupportedRuntime(t *testing.T) {
	spec := &Spec{Name: "oddball", Dir: t.TempDir(), Runtime: "ruby", Entry: "run.rb"}
	_, _, err := Run(context.Background(), spec, nil)
	require.Error(t, err)
}
