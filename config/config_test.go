package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/guidance/flags"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Project.DocRoot != "guidance" {
		t.Errorf("expected default doc_root guidance, got %s", cfg.Project.DocRoot)
	}
	if cfg.Workflow.StateFile != ".guide.yaml" {
		t.Errorf("expected default state_file .guide.yaml, got %s", cfg.Workflow.StateFile)
	}
	if cfg.Workflow.ReminderInterval != 60*time.Second {
		t.Errorf("expected default reminder_interval 60s, got %s", cfg.Workflow.ReminderInterval)
	}
	if cfg.Agent.Prefix != "@" {
		t.Errorf("expected default agent prefix @, got %s", cfg.Agent.Prefix)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing doc_root",
			modify:  func(c *Config) { c.Project.DocRoot = "" },
			wantErr: true,
		},
		{
			name:    "absolute doc_root",
			modify:  func(c *Config) { c.Project.DocRoot = "/etc/guidance" },
			wantErr: true,
		},
		{
			name:    "missing state_file",
			modify:  func(c *Config) { c.Workflow.StateFile = "" },
			wantErr: true,
		},
		{
			name:    "non-positive reminder interval",
			modify:  func(c *Config) { c.Workflow.ReminderInterval = 0 },
			wantErr: true,
		},
		{
			name:    "bogus log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidance.yaml")
	content := `
project:
  name: demo
  doc_root: docs
agent:
  name: probe
workflow:
  state_file: .workflow.yaml
  reminder_interval: 30s
flags:
  project:
    workflow: [discussion, planning]
  global:
    allow-client-info: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Project.Name != "demo" {
		t.Errorf("expected project name demo, got %s", cfg.Project.Name)
	}
	if cfg.Project.DocRoot != "docs" {
		t.Errorf("expected doc_root docs, got %s", cfg.Project.DocRoot)
	}
	if cfg.Workflow.ReminderInterval != 30*time.Second {
		t.Errorf("expected reminder_interval 30s, got %s", cfg.Workflow.ReminderInterval)
	}
	if cfg.Agent.Prefix != "@" {
		t.Errorf("defaults should survive partial files, got prefix %s", cfg.Agent.Prefix)
	}
	if v, ok := cfg.Flags.Global["allow-client-info"]; !ok || v != true {
		t.Errorf("expected global allow-client-info=true, got %v", v)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "guidance.yaml")

	cfg := DefaultConfig()
	cfg.Project.Name = "roundtrip"
	cfg.Flags.Project = map[string]any{"workflow": []any{"discussion"}}
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Project.Name != "roundtrip" {
		t.Errorf("expected project name roundtrip, got %s", loaded.Project.Name)
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Flags.Project = map[string]any{"workflow": "discussion", "keep": "me"}

	other := &Config{}
	other.Project.Name = "merged"
	other.Workflow.ReminderInterval = 10 * time.Second
	other.Flags.Project = map[string]any{"workflow": "planning"}
	other.Log.Level = "warn"

	base.Merge(other)

	if base.Project.Name != "merged" {
		t.Errorf("expected merged project name, got %s", base.Project.Name)
	}
	if base.Project.DocRoot != "guidance" {
		t.Errorf("zero values must not clobber, got doc_root %s", base.Project.DocRoot)
	}
	if base.Workflow.ReminderInterval != 10*time.Second {
		t.Errorf("expected merged interval, got %s", base.Workflow.ReminderInterval)
	}
	if base.Flags.Project["workflow"] != "planning" {
		t.Errorf("expected per-name flag override, got %v", base.Flags.Project["workflow"])
	}
	if base.Flags.Project["keep"] != "me" {
		t.Errorf("unrelated flags must survive the merge")
	}
	if base.Log.Level != "warn" {
		t.Errorf("expected merged log level, got %s", base.Log.Level)
	}

	base.Merge(nil) // no-op
	if base.Project.Name != "merged" {
		t.Error("nil merge must not change anything")
	}
}

func TestSeedFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Flags.Project = map[string]any{"workflow": []any{"discussion", "planning"}}
	cfg.Flags.Global = map[string]any{"allow-client-info": true, "bad name!": true}

	store := flags.NewStore(nil)
	cfg.SeedFlags(store)

	v, ok := store.Resolve("workflow")
	if !ok {
		t.Fatal("expected workflow flag seeded")
	}
	if list, ok := v.([]any); !ok || len(list) != 2 {
		t.Errorf("expected two-element workflow list, got %v", v)
	}
	if _, ok := store.Resolve("bad name!"); ok {
		t.Error("invalid flag names must be skipped during seeding")
	}
}
