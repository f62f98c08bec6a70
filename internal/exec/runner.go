package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// EventEmitter is the streaming event sink; the runner only needs
// emit and whether streaming is enabled.
type EventEmitter interface {
	Emit(eventType string, payload map[string]any)
	StreamEnabled() bool
}

// RunRequest is the execute_command tool's input.
type RunRequest struct {
	Content   string // newline-separated commands
	Workdir   string // resolved absolute directory; empty = caller default
	TimeoutS  int    // 0 = unbounded
	ToolName  string // for event payloads ("execute_command" | "ptc")
	AllowList []string
}

// CommandResult is one command line's outcome.
type CommandResult struct {
	Command    string
	Stdout     string
	Stderr     string
	ReturnCode int
}

// RunResult is execute_command's overall result.
type RunResult struct {
	OK      bool
	Results []CommandResult
}

const defaultStreamChunkSize = 4096

// shellMetachars are the characters that force a shell fallback.
const shellMetachars = "|&;<>()$`*?~{}[]#\n\r"

var shellBuiltins = map[string]bool{
	"cd": true, "exit": true, "export": true, "set": true, "source": true, "alias": true, "unalias": true,
}

// Runner executes command lines, streaming stdout/stderr to an optional
// EventEmitter while enforcing an allow-list and timeout.
type Runner struct {
	StreamChunkSize int
	Emitter         EventEmitter
}

// NewRunner creates a Runner with the given stream chunk size (0 = default).
func NewRunner(streamChunkSize int, emitter EventEmitter) *Runner {
	if streamChunkSize <= 0 {
		streamChunkSize = defaultStreamChunkSize
	}
	return &Runner{StreamChunkSize: streamChunkSize, Emitter: emitter}
}

// Run executes every non-empty line of req.Content as an independent
// command, short-
// circuiting on the first non-zero exit code.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	lines := splitCommandLines(req.Content)

	result := &RunResult{OK: true}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !allowListPermits(req.AllowList, line) {
			return nil, coreerr.New(coreerr.NotAllowed, "command %q is not on the allow-list", line)
		}

		cr, err := r.runOne(ctx, line, req)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, *cr)
		if cr.ReturnCode != 0 {
			result.OK = false
			break
		}
	}
	return result, nil
}

func splitCommandLines(content string) []string {
	return strings.Split(content, "\n")
}

// allowListPermits reports whether command is permitted: "*" permits
// everything; otherwise the command must start with one of the allowed
// prefixes. An empty allow-list permits nothing: an unconfigured
// allow-list fails closed and rejects every command.
func allowListPermits(allowList []string, command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, entry := range allowList {
		if entry == "*" {
			return true
		}
		if strings.HasPrefix(trimmed, entry) {
			return true
		}
	}
	return false
}

func (r *Runner) runOne(ctx context.Context, line string, req RunRequest) (*CommandResult, error) {
	envAssignments, rest := extractLeadingEnv(line)

	cmd, usedShell, err := buildCommand(ctx, rest)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "build command %q", line)
	}

	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	cmd.Env = append(os.Environ(), envAssignments...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "open stdout pipe")
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		// Fallback to shell only when the direct spawn couldn't find the
		// program; other spawn failures propagate as-is.
		if !usedShell && errors.Is(err, exec.ErrNotFound) {
			shellCmd := exec.CommandContext(ctx, "sh", "-lc", rest)
			shellCmd.Dir = cmd.Dir
			shellCmd.Env = cmd.Env
			var startErr error
			stdoutPipe, startErr = shellCmd.StdoutPipe()
			if startErr != nil {
				return nil, coreerr.Wrap(coreerr.TransportError, startErr, "open stdout pipe")
			}
			stderrPipe, startErr = shellCmd.StderrPipe()
			if startErr != nil {
				return nil, coreerr.Wrap(coreerr.TransportError, startErr, "open stderr pipe")
			}
			if startErr := shellCmd.Start(); startErr != nil {
				return nil, coreerr.Wrap(coreerr.TransportError, startErr, "spawn command %q", line)
			}
			cmd = shellCmd
		} else {
			return nil, coreerr.Wrap(coreerr.TransportError, err, "spawn command %q", line)
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go r.tee(&wg, stdoutPipe, &stdoutBuf, "stdout", line, req.ToolName)
	go r.tee(&wg, stderrPipe, &stderrBuf, "stderr", line, req.ToolName)

	waitErr := make(chan error, 1)
	go func() {
		wg.Wait()
		waitErr <- cmd.Wait()
	}()

	if req.TimeoutS > 0 {
		select {
		case err := <-waitErr:
			return finishResult(line, &stdoutBuf, &stderrBuf, err)
		case <-time.After(time.Duration(req.TimeoutS) * time.Second):
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			<-waitErr
			stderrBuf.WriteString(fmt.Sprintf("timeout after %ds", req.TimeoutS))
			return &CommandResult{Command: line, Stdout: stdoutBuf.String(), Stderr: stderrBuf.String(), ReturnCode: -1}, nil
		}
	}

	err = <-waitErr
	return finishResult(line, &stdoutBuf, &stderrBuf, err)
}

func finishResult(line string, stdoutBuf, stderrBuf *bytes.Buffer, waitErr error) (*CommandResult, error) {
	rc := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			rc = exitErr.ExitCode()
		} else {
			rc = -1
			stderrBuf.WriteString(waitErr.Error())
		}
	}
	return &CommandResult{Command: line, Stdout: stdoutBuf.String(), Stderr: stderrBuf.String(), ReturnCode: rc}, nil
}

// tee reads from src in bounded chunks, appending to dst and re-emitting
// tool_output_delta events, splitting only on valid UTF-8 boundaries.
func (r *Runner) tee(wg *sync.WaitGroup, src interface{ Read([]byte) (int, error) }, dst *bytes.Buffer, stream, command, toolName string) {
	defer wg.Done()

	var pending []byte
	buf := make([]byte, 8192)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
			pending = append(pending, buf[:n]...)
			pending = r.emitChunks(pending, stream, command, toolName, false)
		}
		if err != nil {
			r.emitChunks(pending, stream, command, toolName, true)
			return
		}
	}
}

// emitChunks emits complete UTF-8 chunks of at most StreamChunkSize
// bytes from pending, returning the unconsumed remainder (unless flush
// is set, in which case everything is emitted regardless of validity).
func (r *Runner) emitChunks(pending []byte, stream, command, toolName string, flush bool) []byte {
	if r.Emitter == nil || !r.Emitter.StreamEnabled() {
		if flush {
			return nil
		}
		return pending
	}

	for len(pending) > 0 {
		size := r.StreamChunkSize
		if size > len(pending) {
			size = len(pending)
		}
		chunk := pending[:size]

		if !flush || size < len(pending) {
			// Back off to the last valid UTF-8 boundary so we never
			// split mid-codepoint.
			for size > 0 && !utf8.Valid(pending[:size]) {
				size--
			}
			if size == 0 {
				break
			}
			chunk = pending[:size]
		}

		r.Emitter.Emit("tool_output_delta", map[string]any{
			"tool":    toolName,
			"command": command,
			"stream":  stream,
			"delta":   string(chunk),
		})
		pending = pending[size:]
	}

	if flush {
		return nil
	}
	return pending
}

// extractLeadingEnv parses leading "KEY=VALUE" tokens off a command
// line, returning them as env assignments and the remaining command text.
func extractLeadingEnv(line string) ([]string, string) {
	fields := strings.Fields(line)
	var env []string
	idx := 0
	for _, f := range fields {
		if eq := strings.IndexByte(f, '='); eq > 0 && isValidEnvKey(f[:eq]) {
			env = append(env, f)
			idx++
			continue
		}
		break
	}
	if idx == 0 {
		return nil, line
	}
	rest := strings.Join(fields[idx:], " ")
	return env, rest
}

func isValidEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// buildCommand decides between a direct spawn (no shell) and a shell
// fallback based on shell metacharacters and builtin detection.
func buildCommand(ctx context.Context, command string) (*exec.Cmd, bool, error) {
	if strings.ContainsAny(command, shellMetachars) {
		return exec.CommandContext(ctx, "sh", "-lc", command), true, nil
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, false, fmt.Errorf("empty command")
	}
	if shellBuiltins[fields[0]] {
		return exec.CommandContext(ctx, "sh", "-lc", command), true, nil
	}

	return exec.CommandContext(ctx, fields[0], fields[1:]...), false, nil
}
