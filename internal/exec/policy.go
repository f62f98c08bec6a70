package exec

import (
	"strings"
)

// Mode is the exec policy mode from config.
type Mode string

const (
	ModeAllow   Mode = "allow"
	ModeAudit   Mode = "audit"
	ModeEnforce Mode = "enforce"
)

// ParseMode normalizes a raw config string to a Mode, defaulting to allow.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "audit":
		return ModeAudit
	case "enforce":
		return ModeEnforce
	default:
		return ModeAllow
	}
}

// Decision is the outcome of evaluating a high-risk command.
type Decision struct {
	Allowed          bool
	RequiresApproval bool
	Mode             Mode
	Reason           string
}

// highRiskPatterns is the fixed destructive-operation substring list,
// matched
// against the lowercased command text.
var highRiskPatterns = []string{
	" rm ", "rm -", "rm -rf", " del ", "rmdir", "mkfs", "dd ",
	"shutdown", "reboot", "poweroff", "kill -9", "chmod 777", "chown ",
}

func isHighRisk(command string) bool {
	lower := strings.ToLower(command)
	for _, pattern := range highRiskPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// CallArgs is the subset of a tool call's arguments the policy gate reads.
type CallArgs struct {
	Command        string // the command text (args.content/command/cmd)
	Approved       bool   // explicit "approved"/"approval" flag
	ApprovalToken  string // any of approval_key/approval_token/approval_id
	SessionID      string
	UserID         string
}

// sessionKey returns the first non-empty of SessionID, UserID.
func (a CallArgs) sessionKey() string {
	if s := strings.TrimSpace(a.SessionID); s != "" {
		return s
	}
	return strings.TrimSpace(a.UserID)
}

// Evaluate runs the policy gate: applied only to
// execute_command/ptc tool invocations carrying a high-risk command. A
// nil Decision means the gate doesn't apply (bypass).
func Evaluate(mode Mode, args CallArgs, toolName string, cache *ApprovalCache) *Decision {
	command := strings.TrimSpace(args.Command)
	if command == "" || !isHighRisk(command) {
		return nil
	}

	sessionKey := args.sessionKey()
	approved := args.Approved || strings.TrimSpace(args.ApprovalToken) != ""

	if sessionKey != "" {
		if !approved && cache.Hit(sessionKey, toolName, command) {
			approved = true
		}
		if approved {
			cache.Remember(sessionKey, toolName, command)
		}
	}

	requiresApproval := !approved && mode != ModeAllow
	allowed := approved || mode != ModeEnforce

	return &Decision{
		Allowed:          allowed,
		RequiresApproval: requiresApproval,
		Mode:             mode,
		Reason:           "high_risk_command",
	}
}
