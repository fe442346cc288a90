package config

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// ProjectConfigFile is searched for upward from the working directory.
	ProjectConfigFile = "guidance.yaml"
	// UserConfigDir holds the per-user config, relative to the home directory.
	UserConfigDir = ".config/guidance"
	// UserConfigFile is the file name inside UserConfigDir.
	UserConfigFile = "config.yaml"
)

// Loader assembles the effective configuration from layered sources:
// built-in defaults, then the user config, then the project config. Later
// layers win field by field.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load builds the effective config. A project config file anchors the
// project root at its own directory; without one the root falls back to the
// enclosing git worktree, then to the working directory.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		l.mergeFile(cfg, path, "user")
	}

	if path := findUpward(ProjectConfigFile); path != "" {
		l.mergeFile(cfg, path, "project")
		if cfg.Project.Root == "" {
			cfg.Project.Root = filepath.Dir(path)
		}
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = detectRoot()
		l.logger.Debug("Project root detected", slog.String("path", cfg.Project.Root))
	}
	if cfg.Project.Name == "" && cfg.Project.Root != "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile layers one config file onto cfg. A missing file is normal; any
// other read failure is logged and the layer skipped.
func (l *Loader) mergeFile(cfg *Config, path, layer string) {
	loaded, err := LoadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("Skipping unreadable config layer",
				slog.String("layer", layer),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return
	}
	l.logger.Debug("Loaded config layer",
		slog.String("layer", layer), slog.String("path", path))
	cfg.Merge(loaded)
}

// EnsureUserConfig writes the default user config if none exists yet.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("Created default user config", slog.String("path", path))
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findUpward walks from the working directory toward the filesystem root
// looking for name, returning the first hit or "".
func findUpward(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// detectRoot prefers the enclosing git worktree, falling back to the
// working directory.
func detectRoot() string {
	if out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output(); err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}
