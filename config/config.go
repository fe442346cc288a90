// Package config provides configuration loading and management for the
// guidance service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/guidance/fault"
	"github.com/c360studio/guidance/flags"
)

// Config represents the complete guidance configuration
type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Agent    AgentConfig    `yaml:"agent"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Flags    FlagsConfig    `yaml:"flags"`
	Log      LogConfig      `yaml:"log"`
}

// ProjectConfig identifies the served project and its document layout
type ProjectConfig struct {
	// Name is the project name exposed to the template context
	Name string `yaml:"name"`
	// Root is the project root path (defaults to the working directory)
	Root string `yaml:"root"`
	// DocRoot is the document-root directory, relative to Root
	DocRoot string `yaml:"doc_root"`
}

// AgentConfig describes the agent the service is serving
type AgentConfig struct {
	Name    string `yaml:"name"`
	Class   string `yaml:"class"`
	Version string `yaml:"version"`
	// Prefix is the mention prefix the agent responds to (default "@")
	Prefix string `yaml:"prefix"`
}

// WorkflowConfig configures the workflow monitor
type WorkflowConfig struct {
	// StateFile is the workflow-state YAML path relative to the project root
	StateFile string `yaml:"state_file"`
	// ReminderInterval is the monitor/retry timer cadence
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	// Phases is the ordered phase list; *name / name* mark consent gates
	Phases []string `yaml:"phases"`
}

// FlagsConfig carries the two flag scopes
type FlagsConfig struct {
	Project map[string]any `yaml:"project"`
	Global  map[string]any `yaml:"global"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Root:    "", // working directory
			DocRoot: "guidance",
		},
		Agent: AgentConfig{
			Name:   "agent",
			Class:  "assistant",
			Prefix: "@",
		},
		Workflow: WorkflowConfig{
			StateFile:        ".guide.yaml",
			ReminderInterval: 60 * time.Second,
			Phases:           []string{"discussion", "*planning", "implementation", "review*"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Project.DocRoot == "" {
		return fmt.Errorf("project.doc_root is required")
	}
	if filepath.IsAbs(c.Project.DocRoot) {
		return fmt.Errorf("project.doc_root must be relative to the project root")
	}
	if c.Workflow.StateFile == "" {
		return fmt.Errorf("workflow.state_file is required")
	}
	if c.Workflow.ReminderInterval <= 0 {
		return fmt.Errorf("workflow.reminder_interval must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fault.Save(path, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fault.Save(path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Save(path, err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Project
	if other.Project.Name != "" {
		c.Project.Name = other.Project.Name
	}
	if other.Project.Root != "" {
		c.Project.Root = other.Project.Root
	}
	if other.Project.DocRoot != "" {
		c.Project.DocRoot = other.Project.DocRoot
	}

	// Agent
	if other.Agent.Name != "" {
		c.Agent.Name = other.Agent.Name
	}
	if other.Agent.Class != "" {
		c.Agent.Class = other.Agent.Class
	}
	if other.Agent.Version != "" {
		c.Agent.Version = other.Agent.Version
	}
	if other.Agent.Prefix != "" {
		c.Agent.Prefix = other.Agent.Prefix
	}

	// Workflow
	if other.Workflow.StateFile != "" {
		c.Workflow.StateFile = other.Workflow.StateFile
	}
	if other.Workflow.ReminderInterval != 0 {
		c.Workflow.ReminderInterval = other.Workflow.ReminderInterval
	}
	if len(other.Workflow.Phases) > 0 {
		c.Workflow.Phases = other.Workflow.Phases
	}

	// Flags: per-name override, later layers win
	if len(other.Flags.Project) > 0 {
		if c.Flags.Project == nil {
			c.Flags.Project = map[string]any{}
		}
		for name, v := range other.Flags.Project {
			c.Flags.Project[name] = v
		}
	}
	if len(other.Flags.Global) > 0 {
		if c.Flags.Global == nil {
			c.Flags.Global = map[string]any{}
		}
		for name, v := range other.Flags.Global {
			c.Flags.Global[name] = v
		}
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// SeedFlags loads both configured flag scopes into the store. Invalid entries
// are skipped and logged by the store.
func (c *Config) SeedFlags(store *flags.Store) {
	store.Seed(flags.ScopeGlobal, c.Flags.Global)
	store.Seed(flags.ScopeProject, c.Flags.Project)
}

// DocRootPath resolves the document-root against the project root.
func (c *Config) DocRootPath() string {
	return filepath.Join(c.Project.Root, c.Project.DocRoot)
}
