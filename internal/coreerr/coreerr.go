// Package coreerr defines the closed error taxonomy shared by every
// subsystem in the agent runtime core: the dispatcher, the LSP manager,
// the MCP session layer, and the command execution engine all return
// *Error values instead of ad-hoc error strings so callers can branch on
// Kind without parsing messages.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure taxonomy. It is not a type name the
// caller compares with ==; use Has/KindOf instead since an Error may wrap
// a lower-level cause.
type Kind string

const (
	// PathRequired means a tool call omitted a required path argument.
	PathRequired Kind = "path_required"
	// PathOutOfBounds means a resolved path escapes every allow/read root.
	PathOutOfBounds Kind = "path_out_of_bounds"
	// PathForbidden means a resolved path matched a deny_globs entry.
	PathForbidden Kind = "path_forbidden"
	// NotAllowed means a command runner rejected a command not on the allow-list.
	NotAllowed Kind = "not_allowed"
	// Timeout means an LSP request, MCP wait, or command exceeded its deadline.
	Timeout Kind = "timeout"
	// ProtocolError means malformed JSON-RPC or an unexpected wire shape.
	ProtocolError Kind = "protocol_error"
	// TransportError means an underlying I/O, HTTP, or subprocess spawn failure.
	TransportError Kind = "transport_error"
	// Unsupported means an unknown tool name, MCP transport, or LSP operation.
	Unsupported Kind = "unsupported"
	// LogicalFailure means a tool ran but reported ok:false; callers should
	// prefer constructing the {ok:false,...} payload directly rather than
	// this kind, but it exists for code paths that must propagate as an error.
	LogicalFailure Kind = "logical_failure"
	// ConfigurationError means a server/agent/base was missing, disabled, or misconfigured.
	ConfigurationError Kind = "configuration_error"
)

// Error is the concrete error type returned across subsystem boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Has reports whether err (or anything it wraps) is a *Error of kind k.
func Has(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
