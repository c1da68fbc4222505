// Package config defines the declarative pipeline topology.
//
// A topology names the durable queues, the stages that consume them, and
// the generation agent each stage delegates to. Topologies are loaded from
// YAML and validated fail-fast before the runtime starts any consumer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageConfig is the declarative configuration of one pipeline stage.
type StageConfig struct {
	// Name uniquely identifies the stage, used for logging and metrics.
	Name string `yaml:"name"`
	// Queue is the queue this stage consumes. Exactly one stage may
	// consume any given queue.
	Queue string `yaml:"queue"`
	// Agent names the generation agent the stage delegates to. It must
	// resolve to an instruction template.
	Agent string `yaml:"agent"`
	// Output is the queue the stage produces to. Empty means the stage
	// is the terminal sink.
	Output string `yaml:"output"`
	// MaxRounds, when positive, short-circuits envelopes whose round
	// counter has reached the limit straight to the terminal queue
	// without generating.
	MaxRounds int `yaml:"max_rounds,omitempty"`
	// IncrementRound makes the stage advance the envelope round counter
	// when producing. Used by revision-loop topologies.
	IncrementRound bool `yaml:"increment_round,omitempty"`
}

// PipelineConfig is the full declarative topology.
type PipelineConfig struct {
	// Name is the pipeline name for logging and metrics.
	Name string `yaml:"name"`
	// Entry is the queue the bootstrap gate seeds.
	Entry string `yaml:"entry"`
	// Terminal is the queue consumed by the terminal sink stage.
	Terminal string `yaml:"terminal"`
	// Analytics, when set, receives a duplicate of every envelope the
	// terminal stage renders.
	Analytics string `yaml:"analytics,omitempty"`
	// AnalyticsAgent names the agent the analytics consumer delegates
	// to. Required iff Analytics is set.
	AnalyticsAgent string `yaml:"analytics_agent,omitempty"`
	// Stages is the ordered list of stage configurations.
	Stages []*StageConfig `yaml:"stages"`
	// Instructions maps agent names to their instruction templates. The
	// literal token {input} in a template is replaced with the envelope
	// payload at generation time.
	Instructions map[string]string `yaml:"instructions"`
}

// TopologyError reports an invalid topology. The runtime refuses to start
// when validation fails.
type TopologyError struct {
	Message string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid topology: %s", e.Message)
}

// NewTopologyError creates a TopologyError with a formatted message.
func NewTopologyError(format string, args ...any) *TopologyError {
	return &TopologyError{Message: fmt.Sprintf(format, args...)}
}

// Load reads and parses a topology file. The result is not yet validated;
// call Validate before use.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse topology file: %w", err)
	}
	return &cfg, nil
}

// Validate checks the topology invariants. It returns a *TopologyError on
// the first violation found.
func (p *PipelineConfig) Validate() error {
	if p.Name == "" {
		return NewTopologyError("pipeline name is required")
	}
	if p.Entry == "" {
		return NewTopologyError("entry queue is required")
	}
	if p.Terminal == "" {
		return NewTopologyError("terminal queue is required")
	}
	if len(p.Stages) == 0 {
		return NewTopologyError("at least one stage is required")
	}
	if (p.Analytics == "") != (p.AnalyticsAgent == "") {
		return NewTopologyError("analytics and analytics_agent must be set together")
	}

	names := make(map[string]bool)
	consumers := make(map[string]string)
	for _, stage := range p.Stages {
		if stage.Name == "" {
			return NewTopologyError("stage name is required")
		}
		if names[stage.Name] {
			return NewTopologyError("duplicate stage name: %s", stage.Name)
		}
		names[stage.Name] = true

		if stage.Queue == "" {
			return NewTopologyError("stage '%s' has no queue", stage.Name)
		}
		if prior, ok := consumers[stage.Queue]; ok {
			return NewTopologyError("queue '%s' consumed by both '%s' and '%s'", stage.Queue, prior, stage.Name)
		}
		consumers[stage.Queue] = stage.Name

		if stage.Agent == "" {
			return NewTopologyError("stage '%s' has no agent", stage.Name)
		}
		if _, ok := p.Instructions[stage.Agent]; !ok {
			return NewTopologyError("stage '%s' references unknown agent '%s'", stage.Name, stage.Agent)
		}
		if stage.MaxRounds > 0 && stage.Output == p.Terminal {
			return NewTopologyError("stage '%s' sets max_rounds but already produces to the terminal queue", stage.Name)
		}
		if stage.Output == "" && stage.Queue != p.Terminal {
			return NewTopologyError("stage '%s' has no output and does not consume the terminal queue", stage.Name)
		}
	}

	// Every produced-to queue needs a consumer; the analytics queue is
	// consumed by the built-in analytics stage.
	for _, stage := range p.Stages {
		if stage.Output == "" {
			continue
		}
		if stage.Output == stage.Queue {
			return NewTopologyError("stage '%s' produces to its own queue", stage.Name)
		}
		if _, ok := consumers[stage.Output]; !ok {
			return NewTopologyError("stage '%s' produces to queue '%s' which no stage consumes", stage.Name, stage.Output)
		}
	}

	if _, ok := consumers[p.Entry]; !ok {
		return NewTopologyError("entry queue '%s' has no consuming stage", p.Entry)
	}
	terminalStage, ok := consumers[p.Terminal]
	if !ok {
		return NewTopologyError("terminal queue '%s' has no consuming stage", p.Terminal)
	}
	if out := p.StageByName(terminalStage).Output; out != "" {
		return NewTopologyError("terminal stage '%s' must not declare an output", terminalStage)
	}

	if p.Analytics != "" {
		if _, ok := consumers[p.Analytics]; ok {
			return NewTopologyError("analytics queue '%s' must not be consumed by a declared stage", p.Analytics)
		}
		if _, ok := p.Instructions[p.AnalyticsAgent]; !ok {
			return NewTopologyError("analytics agent '%s' has no instructions", p.AnalyticsAgent)
		}
	}

	return nil
}

// StageByName returns the stage with the given name, or nil.
func (p *PipelineConfig) StageByName(name string) *StageConfig {
	for _, stage := range p.Stages {
		if stage.Name == name {
			return stage
		}
	}
	return nil
}

// StageForQueue returns the stage consuming the given queue, or nil.
func (p *PipelineConfig) StageForQueue(queue string) *StageConfig {
	for _, stage := range p.Stages {
		if stage.Queue == queue {
			return stage
		}
	}
	return nil
}

// Queues returns every queue named by the topology, consumers first, in
// declaration order, with the analytics queue last when configured.
func (p *PipelineConfig) Queues() []string {
	seen := make(map[string]bool)
	var queues []string
	add := func(q string) {
		if q != "" && !seen[q] {
			seen[q] = true
			queues = append(queues, q)
		}
	}
	for _, stage := range p.Stages {
		add(stage.Queue)
	}
	for _, stage := range p.Stages {
		add(stage.Output)
	}
	add(p.Analytics)
	return queues
}

// Instruction returns the instruction template for an agent.
func (p *PipelineConfig) Instruction(agent string) (string, bool) {
	tmpl, ok := p.Instructions[agent]
	return tmpl, ok
}
