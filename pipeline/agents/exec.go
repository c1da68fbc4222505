package agents

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecGenerator delegates generation to an external command. The rendered
// instructions are passed as the final argument and the command's stdout is
// returned as the generated text.
type ExecGenerator struct {
	// Command is the program followed by any fixed arguments.
	Command []string
	// Timeout bounds a single generation call. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

// NewExecGenerator creates an ExecGenerator for the given command line.
func NewExecGenerator(command []string, timeout time.Duration) (*ExecGenerator, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("generator command is required")
	}
	return &ExecGenerator{Command: command, Timeout: timeout}, nil
}

// Generate runs the configured command with the rendered instructions
// appended to its arguments.
func (g *ExecGenerator) Generate(ctx context.Context, instructions, input string) (string, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	rendered := RenderInput(instructions, input)
	args := append(append([]string{}, g.Command[1:]...), rendered)
	cmd := exec.CommandContext(ctx, g.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}

	return strings.TrimSpace(stdout.String()), nil
}

var _ Generator = (*ExecGenerator)(nil)
