package skill

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// runRequest is the JSON envelope written to the skill process's stdin.
type runRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// runResponse is the single-line JSON envelope a skill writes to stdout.
type runResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Run executes spec's entrypoint via the collaborator runner protocol
//: the chosen interpreter is
// spawned with cwd set to the skill's own directory, arguments are sent
// as one JSON line on stdin, and the skill replies with one JSON line on
// stdout. A non-empty Error in the skill's own response is a logical
// failure, not a Go error.
func Run(ctx context.Context, spec *Spec, args map[string]any) (output string, logicalErr string, err error) {
	cmd, err := buildCmd(ctx, spec)
	if err != nil {
		return "", "", err
	}

	reqBody, err := json.Marshal(runRequest{Arguments: args})
	if err != nil {
		return "", "", coreerr.Wrap(coreerr.ProtocolError, err, "encode skill arguments for %s", spec.Name)
	}
	reqBody = append(reqBody, '\n')
	cmd.Stdin = bytes.NewReader(reqBody)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		return "", "", coreerr.Wrap(coreerr.TransportError, runErr, "run skill %s (stderr: %s)", spec.Name, stderr.String())
	}

	scanner := bufio.NewScanner(&stdout)
	if !scanner.Scan() {
		return "", "", coreerr.New(coreerr.ProtocolError, "skill %s produced no output line", spec.Name)
	}

	var resp runResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return "", "", coreerr.Wrap(coreerr.ProtocolError, err, "decode skill %s response %q", spec.Name, scanner.Text())
	}

	return resp.Output, resp.Error, nil
}

// buildCmd constructs the exec.Cmd for spec's runtime, with cwd fixed to
// the skill's own directory so relative paths inside it resolve.
func buildCmd(ctx context.Context, spec *Spec) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	switch spec.Runtime {
	case "python":
		cmd = exec.CommandContext(ctx, "python3", filepath.Join(spec.Dir, spec.Entry))
	case "node":
		cmd = exec.CommandContext(ctx, "node", filepath.Join(spec.Dir, spec.Entry))
	case "binary", "go":
		cmd = exec.CommandContext(ctx, filepath.Join(spec.Dir, spec.Entry))
	default:
		return nil, coreerr.New(coreerr.ConfigurationError, "skill %s: unsupported runtime %q", spec.Name, spec.Runtime)
	}
	cmd.Dir = spec.Dir
	return cmd, nil
}
