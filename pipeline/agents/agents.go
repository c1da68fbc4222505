// Package agents defines the generation boundary of the pipeline.
//
// Stages never talk to a text-generation backend directly; they hand an
// instruction template and the envelope payload to a Generator, which
// substitutes the payload with RenderInput before generating. The
// production implementation shells out to a configured command, tests use
// the mock in pipeline/testutil.
package agents

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces text from instructions and an input payload.
type Generator interface {
	// Generate returns generated text for the rendered instructions.
	// Implementations must honor context cancellation.
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// GenerationError wraps a failure from the generation backend, tagged with
// the agent whose instructions were being executed.
type GenerationError struct {
	Agent string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for agent '%s': %v", e.Agent, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError creates a GenerationError.
func NewGenerationError(agent string, cause error) *GenerationError {
	return &GenerationError{Agent: agent, Cause: cause}
}

// RenderInput substitutes the envelope payload into an instruction
// template. Every occurrence of the literal token {input} is replaced.
func RenderInput(template, input string) string {
	return strings.ReplaceAll(template, "{input}", input)
}
