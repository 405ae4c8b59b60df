// Package config loads and persists the resolved ctxsnap configuration.
// The snapshot core receives one fully-resolved Config value and never
// re-validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// LocalFileName is the per-project config file placed at the scanned root.
	LocalFileName = ".ctxsnap.yaml"
	// GlobalFileName is the machine-wide config file next to the executable.
	GlobalFileName = "ctxsnap.yaml"
)

// Config holds every knob the snapshot core reads. Lists are merged and
// flags resolved by the CLI layer before the core sees them.
type Config struct {
	ExcludeExt       []string `yaml:"exclude_ext"`
	ExcludeDir       []string `yaml:"exclude_dir"`
	ExcludeFile      []string `yaml:"exclude_file"`
	MaxFileMB        int64    `yaml:"max_file_mb"`
	MaxTotalMB       int64    `yaml:"max_total_mb"`
	UseGitignore     bool     `yaml:"use_gitignore"`
	IncludeLockfiles bool     `yaml:"include_lockfiles"`
	RemoveComments   bool     `yaml:"remove_comments"`
	Depth            int      `yaml:"depth"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ExcludeExt: []string{
			"exe", "dll", "so", "dylib", "jpg", "jpeg", "png", "gif", "svg", "webp", "ico",
			"zip", "tar", "gz", "7z", "rar", "pdf", "db", "sqlite", "sqlite3", "pyc", "pem",
			"key",
		},
		ExcludeDir: []string{
			".git", "node_modules", "target", "dist", "build", ".venv", "venv", ".idea", ".vscode",
		},
		ExcludeFile:      []string{".DS_Store", "Thumbs.db", ".gitignore", ".gitattributes"},
		MaxFileMB:        10,
		MaxTotalMB:       200,
		UseGitignore:     true,
		IncludeLockfiles: false,
		RemoveComments:   false,
		Depth:            50,
	}
}

// LoadGlobal reads the machine-wide config stored next to the executable,
// creating it with defaults when absent. A global file that cannot be read
// or parsed is replaced by defaults with a warning rather than aborting:
// it is shared state that concurrent runs may be rewriting.
func LoadGlobal(logger *zap.Logger) (*Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	globalPath := filepath.Join(filepath.Dir(exePath), GlobalFileName)

	data, err := os.ReadFile(globalPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Could not read global config, using defaults",
				zap.String("path", globalPath), zap.Error(err))
			return Default(), nil
		}
		cfg := Default()
		// Best effort: a read-only install directory is not an error.
		if content, marshalErr := yaml.Marshal(cfg); marshalErr == nil {
			_ = os.WriteFile(globalPath, content, 0o644)
		}
		return cfg, nil
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Warn("Global config corrupted, using defaults",
			zap.String("path", globalPath), zap.Error(err))
		return Default(), nil
	}
	return cfg, nil
}

// LoadLocal reads the per-project config at root. It returns (nil, nil) when
// the file does not exist. Unlike the global file, a local file that cannot
// be read or parsed aborts the run: it encodes explicit per-project intent,
// and silently ignoring it could include files the project meant to exclude.
func LoadLocal(root string) (*Config, error) {
	localPath := filepath.Join(root, LocalFileName)
	data, err := os.ReadFile(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local config %s: %w", localPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("local config %s is corrupted: %w", localPath, err)
	}
	return cfg, nil
}

// SaveLocal writes the configuration as the per-project file at root.
func (c *Config) SaveLocal(root string) error {
	localPath := filepath.Join(root, LocalFileName)
	content, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write local config %s: %w", localPath, err)
	}
	return nil
}
