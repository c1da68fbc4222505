// Package testutil provides shared test doubles for pipeline tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/johntango/coursepipeline/pipeline/agents"
)

// MockGenerator implements agents.Generator for testing.
// Configure responses by instruction prefix or use DefaultResponse.
type MockGenerator struct {
	// Responses maps instruction prefixes to responses.
	// First matching prefix wins.
	Responses map[string]string

	// DefaultResponse is returned when no prefix matches.
	DefaultResponse string

	// Delay simulates generation latency.
	Delay time.Duration

	// Error causes Generate to return this error.
	Error error

	// CallCount tracks the number of Generate calls.
	CallCount int

	// Calls records all calls for assertion.
	Calls []GenerateCall

	// GenerateFunc allows custom generation logic.
	// If set, this is called instead of using Responses.
	GenerateFunc func(context.Context, string, string) (string, error)

	mu sync.Mutex
}

// GenerateCall records a single generation call for assertion.
type GenerateCall struct {
	Instructions string
	Input        string
}

// NewMockGenerator creates a MockGenerator with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Responses:       make(map[string]string),
		DefaultResponse: "mock generated text",
	}
}

// Generate implements agents.Generator.
func (m *MockGenerator) Generate(ctx context.Context, instructions, input string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, GenerateCall{Instructions: instructions, Input: input})
	customFunc := m.GenerateFunc
	m.mu.Unlock()

	if customFunc != nil {
		return customFunc(ctx, instructions, input)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Error != nil {
		return "", m.Error
	}

	for prefix, response := range m.Responses {
		if strings.HasPrefix(instructions, prefix) {
			return response, nil
		}
	}

	return m.DefaultResponse, nil
}

// WithResponse adds a prefix-based response.
func (m *MockGenerator) WithResponse(prefix, response string) *MockGenerator {
	m.Responses[prefix] = response
	return m
}

// WithError configures the mock to return an error.
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.Error = err
	return m
}

// Snapshot returns the call count and a copy of recorded calls.
func (m *MockGenerator) Snapshot() (int, []GenerateCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateCall, len(m.Calls))
	copy(calls, m.Calls)
	return m.CallCount, calls
}

var _ agents.Generator = (*MockGenerator)(nil)
