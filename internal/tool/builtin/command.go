package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/adnify/agentcore/internal/tool"
)

// RunCommandTool executes a shell command with a per-call timeout and
// terminal-approval class (§4.5).
type RunCommandTool struct {
	DefaultTimeout time.Duration
}

func (t *RunCommandTool) Name() string        { return "run_command" }
func (t *RunCommandTool) Description() string { return "Execute a shell command in the workspace and return its combined output." }
func (t *RunCommandTool) ApprovalType() tool.ApprovalType { return tool.ApprovalTerminal }
func (t *RunCommandTool) Category() tool.Category         { return tool.CategoryExec }
func (t *RunCommandTool) ParallelSafe() bool              { return false }

func (t *RunCommandTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string"},
			"cwd":     map[string]any{"type": "string"},
			"timeout": map[string]any{"type": "integer", "description": "timeout in seconds"},
		},
		"required": []string{"command"},
	}
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	command, _ := args["command"].(string)
	cwd, _ := args["cwd"].(string)

	timeout := t.DefaultTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if secs, ok := intArg(args["timeout"]); ok {
		timeout = time.Duration(secs) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if runCtx.Err() != nil {
		return nil, fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		return &tool.Result{Content: fmt.Sprintf("Error: command exited with error: %v\n%s", err, out.String())}, nil
	}
	return &tool.Result{Content: out.String()}, nil
}
