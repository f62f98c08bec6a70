package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// BuiltinSpec is the wire contract exposed to the LLM for a
// built-in tool.
type BuiltinSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Argument structs for every built-in. Schemas are generated from the
// struct tags below via a jsonschema.Reflector, so the LLM-facing
// catalogue and the handlers' expected argument names stay in one place.

type finalReplyArgs struct {
	Content string `json:"content" jsonschema:"required,description=The final answer content."`
}

type execCommandArgs struct {
	Content  string `json:"content" jsonschema:"required,description=Newline-separated command lines to execute."`
	Workdir  string `json:"workdir,omitempty" jsonschema:"description=Working directory resolved against the workspace. Defaults to the user root."`
	TimeoutS int    `json:"timeout_s,omitempty" jsonschema:"description=Timeout in seconds. 0 or omitted means unbounded."`
}

type ptcArgs struct {
	Filename string `json:"filename" jsonschema:"required,description=Name of the script file to stage."`
	Workdir  string `json:"workdir" jsonschema:"required,description=Directory to stage the file under resolved against the workspace."`
	Content  string `json:"content" jsonschema:"required,description=Script content to write."`
}

type listFilesArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list relative to the workspace root. Defaults to the root."`
}

type searchContentArgs struct {
	Query       string `json:"query" jsonschema:"required,description=Substring to search for."`
	Path        string `json:"path,omitempty" jsonschema:"description=Directory to search under. Defaults to the workspace root."`
	FilePattern string `json:"file_pattern,omitempty" jsonschema:"description=Optional shell-style glob restricting which files are searched."`
}

type readFileSpecArgs struct {
	Path       string  `json:"path" jsonschema:"required,description=File path relative to the workspace."`
	StartLine  int     `json:"start_line,omitempty" jsonschema:"description=First line to read (1-based)."`
	EndLine    int     `json:"end_line,omitempty" jsonschema:"description=Last line to read inclusive."`
	LineRanges [][]int `json:"line_ranges,omitempty" jsonschema:"description=Optional list of [start end] line ranges; overrides start_line/end_line."`
}

type readFilesArgs struct {
	Files []readFileSpecArgs `json:"files" jsonschema:"required,description=Up to five file specs."`
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=File path relative to the workspace."`
	Content string `json:"content" jsonschema:"required,description=Full file content to write."`
}

type replaceTextArgs struct {
	Path                 string `json:"path" jsonschema:"required,description=File path relative to the workspace."`
	OldString            string `json:"old_string" jsonschema:"required,description=Text to find."`
	NewString            string `json:"new_string" jsonschema:"required,description=Replacement text."`
	ExpectedReplacements int    `json:"expected_replacements,omitempty" jsonschema:"description=If set fail unless exactly this many occurrences are found."`
}

type editFileActionArgs struct {
	Action     string `json:"action,omitempty" jsonschema:"enum=replace,enum=insert_before,enum=insert_after,enum=delete,description=Edit action. Defaults to replace."`
	StartLine  int    `json:"start_line,omitempty" jsonschema:"description=First line of the span (1-based)."`
	EndLine    int    `json:"end_line,omitempty" jsonschema:"description=Last line of the span inclusive."`
	NewContent string `json:"new_content,omitempty" jsonschema:"description=Content for replace/insert actions."`
}

type editFileArgs struct {
	Path               string               `json:"path" jsonschema:"required,description=File path relative to the workspace."`
	Edits              []editFileActionArgs `json:"edits" jsonschema:"required,description=Ordered edits applied against the evolving line array."`
	EnsureNewlineAtEOF bool                 `json:"ensure_newline_at_eof,omitempty" jsonschema:"description=Ensure the file ends with a newline. Default true."`
}

type planStepArgs struct {
	Content string `json:"content,omitempty" jsonschema:"description=Step text."`
	Status  string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed,description=Step status."`
}

type planPanelArgs struct {
	Steps []planStepArgs `json:"steps" jsonschema:"required,description=Ordered plan steps."`
}

type questionRouteArgs struct {
	Label string `json:"label" jsonschema:"required,description=Route label shown to the user."`
	Value any    `json:"value,omitempty" jsonschema:"description=Optional value returned when the route is picked."`
}

type questionPanelArgs struct {
	Question string              `json:"question,omitempty" jsonschema:"description=The question to present."`
	Routes   []questionRouteArgs `json:"routes" jsonschema:"required,description=Candidate answers."`
}

type skillCallArgs struct {
	Name string `json:"name" jsonschema:"required,description=Skill name or @owner/name when ambiguous."`
}

type lspQueryArgs struct {
	Operation string `json:"operation" jsonschema:"required,enum=definition,enum=references,enum=hover,enum=documentSymbol,enum=workspaceSymbol,enum=implementation,enum=callHierarchy,description=The lookup to run."`
	Path      string `json:"path,omitempty" jsonschema:"description=File path relative to the workspace."`
	Line      int    `json:"line,omitempty" jsonschema:"description=0-based line number."`
	Character int    `json:"character,omitempty" jsonschema:"description=0-based character offset."`
	Query     string `json:"query,omitempty" jsonschema:"description=Symbol query text for workspaceSymbol."`
}

type a2aObserveArgs struct {
	TaskIDs     []string         `json:"task_ids,omitempty" jsonschema:"description=Task ids to observe."`
	Tasks       []map[string]any `json:"tasks,omitempty" jsonschema:"description=Literal task entries to merge in."`
	Endpoint    string           `json:"endpoint,omitempty" jsonschema:"description=Restrict to tasks sent to this endpoint."`
	ServiceName string           `json:"service_name,omitempty" jsonschema:"description=Restrict to tasks sent to this named service."`
	Refresh     bool             `json:"refresh,omitempty" jsonschema:"description=Re-fetch status from the remote endpoint. Default true."`
}

type a2aWaitArgs struct {
	TaskIDs       []string         `json:"task_ids,omitempty" jsonschema:"description=Task ids to wait on."`
	Tasks         []map[string]any `json:"tasks,omitempty" jsonschema:"description=Literal task entries to merge in."`
	Endpoint      string           `json:"endpoint,omitempty" jsonschema:"description=Restrict to tasks sent to this endpoint."`
	ServiceName   string           `json:"service_name,omitempty" jsonschema:"description=Restrict to tasks sent to this named service."`
	WaitS         float64          `json:"wait_s,omitempty" jsonschema:"description=Maximum time to wait in seconds."`
	PollIntervalS float64          `json:"poll_interval_s,omitempty" jsonschema:"description=Seconds between polls. Default 1.5 minimum 0.2."`
	Refresh       bool             `json:"refresh,omitempty"`
}

// BuiltinSpecs returns the full built-in tool catalogue.
func BuiltinSpecs() []BuiltinSpec {
	return []BuiltinSpec{
		{toolFinalReply, "Return the final answer to the caller and end the task.", schemaFor(finalReplyArgs{})},
		{toolExecCommand, "Run one or more shell commands, one per line, in the workspace.", schemaFor(execCommandArgs{})},
		{toolPTC, "Stage a programmatic tool-call script file under a workspace directory.", schemaFor(ptcArgs{})},
		{toolListFiles, "List files and directories under a workspace path.", schemaFor(listFilesArgs{})},
		{toolSearchContent, "Case-insensitive substring search over workspace file contents.", schemaFor(searchContentArgs{})},
		{toolReadFiles, "Read up to five workspace files, each with optional line ranges.", schemaFor(readFilesArgs{})},
		{toolWriteFile, "Write content to a workspace file, creating parent directories as needed.", schemaFor(writeFileArgs{})},
		{toolReplaceText, "Replace every occurrence of old_string with new_string in a workspace file.", schemaFor(replaceTextArgs{})},
		{toolEditFile, "Apply an ordered list of line-based edits to a workspace file.", schemaFor(editFileArgs{})},
		{toolPlanPanel, "Publish a step plan to the user-facing plan panel.", schemaFor(planPanelArgs{})},
		{toolQuestionPanel, "Publish a set of clarifying-question routes to the user-facing question panel.", schemaFor(questionPanelArgs{})},
		{toolSkillCall, "Look up a registered skill's manifest text and file tree by name.", schemaFor(skillCallArgs{})},
		{toolLSPQuery, "Query a language server for a workspace file: definition, references, hover, documentSymbol, workspaceSymbol, implementation, or callHierarchy.", schemaFor(lspQueryArgs{})},
		{toolA2AObserve, "Observe the status of one or more remote A2A tasks, optionally refreshing them first.", schemaFor(a2aObserveArgs{})},
		{toolA2AWait, "Poll one or more remote A2A tasks until every task reaches a terminal status or wait_s elapses.", schemaFor(a2aWaitArgs{})},
	}
}

// schemaFor reflects an argument struct's tags into the inline object
// schema shape the LLM consumes: required from jsonschema tags, nested
// structs expanded in place, no $schema/$id/$ref noise.
func schemaFor(args any) map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(args)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
