// Package config loads the process configuration from TOML. It covers
// everything outside the pipeline topology: data paths, broker selection,
// the generator command, and observability endpoints. The topology itself
// lives in a separate YAML file named by TopologyPath.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains data file and directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	TopologyPath string `toml:"topology_path"`
	CoursesPath  string `toml:"courses_path"`
	DocumentPath string `toml:"document_path"`
	EventLogPath string `toml:"event_log_path"`
	LockPath     string `toml:"lock_path"`
}

// Broker selects and configures the queue transport.
type Broker struct {
	// Type is "sqlite" or "memory".
	Type string `toml:"type"`
	Path string `toml:"path"`
}

// Generator configures the external text-generation command.
type Generator struct {
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Bootstrap configures the seeding gate.
type Bootstrap struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	DocumentTitle   string `toml:"document_title"`
}

// Observability configures metrics and tracing exports.
type Observability struct {
	MetricsBind    string `toml:"metrics_bind"`
	TracingEnabled bool   `toml:"tracing_enabled"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

// Config is the root process configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Broker        Broker        `toml:"broker"`
	Generator     Generator     `toml:"generator"`
	Bootstrap     Bootstrap     `toml:"bootstrap"`
	Observability Observability `toml:"observability"`
	Logging       Logging       `toml:"logging"`
}

// Default returns a configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Paths: Paths{
			DataDir:      dataDir,
			TopologyPath: filepath.Join(dataDir, "topology.yaml"),
			CoursesPath:  filepath.Join(dataDir, "courses.json"),
			DocumentPath: filepath.Join(dataDir, "courses.html"),
			EventLogPath: filepath.Join(dataDir, "events.jsonl"),
			LockPath:     filepath.Join(dataDir, "bootstrap.lock"),
		},
		Broker: Broker{
			Type: "sqlite",
			Path: filepath.Join(dataDir, "broker.db"),
		},
		Generator: Generator{
			TimeoutSeconds: 120,
		},
		Bootstrap: Bootstrap{
			IntervalSeconds: 5,
			DocumentTitle:   "Course Catalog",
		},
		Observability: Observability{
			MetricsBind: "127.0.0.1:9090",
			ServiceName: "coursepipeline",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a TOML config file, applying defaults for omitted fields.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the non-topology invariants.
func (c *Config) Validate() error {
	switch c.Broker.Type {
	case "sqlite":
		if c.Broker.Path == "" {
			return fmt.Errorf("broker.path is required for the sqlite broker")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown broker.type '%s'", c.Broker.Type)
	}

	if len(c.Generator.Command) == 0 {
		return fmt.Errorf("generator.command is required")
	}
	if c.Bootstrap.IntervalSeconds <= 0 {
		return fmt.Errorf("bootstrap.interval_seconds must be positive")
	}
	if c.Observability.TracingEnabled && c.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}

// GeneratorTimeout returns the generator timeout as a duration.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// BootstrapInterval returns the gate interval as a duration.
func (c *Config) BootstrapInterval() time.Duration {
	return time.Duration(c.Bootstrap.IntervalSeconds) * time.Second
}
