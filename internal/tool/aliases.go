package tool

// Canonical built-in tool names. The dispatcher and LLM-facing tool
// specs both speak these; aliasMap below lets English-speaking callers
// use the English alias instead.
const (
	toolFinalReply    = "最终回复"
	toolExecCommand   = "执行命令"
	toolPTC           = "ptc"
	toolListFiles     = "列出文件"
	toolSearchContent = "搜索内容"
	toolReadFiles     = "读取文件"
	toolWriteFile     = "写入文件"
	toolReplaceText   = "替换文本"
	toolEditFile      = "编辑文件"
	toolPlanPanel     = "计划面板"
	toolQuestionPanel = "问题面板"
	toolSkillCall     = "技能调用"
	toolLSPQuery      = "lsp查询"
	toolA2AObserve    = "a2a观察"
	toolA2AWait       = "a2a等待"
)

// aliasMap is the English alias → canonical Chinese name table.
var aliasMap = map[string]string{
	"final_response":         toolFinalReply,
	"final_reply":            toolFinalReply,
	"execute_command":        toolExecCommand,
	"programmatic_tool_call": toolPTC,
	"list_files":             toolListFiles,
	"search_content":         toolSearchContent,
	"read_file":              toolReadFiles,
	"read_files":             toolReadFiles,
	"write_file":             toolWriteFile,
	"replace_text":           toolReplaceText,
	"edit_file":              toolEditFile,
	"plan_panel":             toolPlanPanel,
	"question_panel":         toolQuestionPanel,
	"skill_call":             toolSkillCall,
	"lsp_query":              toolLSPQuery,
	"a2a_observe":            toolA2AObserve,
	"a2a_wait":               toolA2AWait,
}

// resolveToolName canonicalizes name via aliasMap, returning name
// unchanged when it isn't a known alias (it may already be canonical,
// or it may be a skill/MCP/knowledge name the dispatcher resolves later).
func resolveToolName(name string) string {
	if canonical, ok := aliasMap[name]; ok {
		return canonical
	}
	return name
}

// canonicalAliases groups aliasMap by canonical name, for building the
// LLM-facing tool list with every name a caller might use.
func canonicalAliases() map[string][]string {
	out := make(map[string][]string)
	for alias, canonical := range aliasMap {
		out[canonical] = append(out[canonical], alias)
	}
	return out
}
