// Package config provides configuration loading for specd.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/classify"
)

// maxConfigFileSize guards against loading an accidentally huge file.
const maxConfigFileSize = 1024 * 1024

// envPrefix namespaces the environment overrides.
const envPrefix = "SPECD_"

// WorkspaceConfig locates the spec workspace on disk.
type WorkspaceConfig struct {
	// Root is the spec root directory. Empty means the current directory.
	Root string `koanf:"root"`
	// RegistryDB is the pattern registry database path, relative to Root
	// unless absolute.
	RegistryDB string `koanf:"registry_db"`
	// SkillsDir is where promoted patterns render their skill documents,
	// relative to Root unless absolute.
	SkillsDir string `koanf:"skills_dir"`
}

// RegistryConfig holds the pattern registry thresholds.
type RegistryConfig struct {
	RegisterThreshold int `koanf:"register_threshold"`
	PromoteThreshold  int `koanf:"promote_threshold"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Config is the root specd configuration.
//
// Numeric zero values are treated as unset and replaced by the package
// defaults in Load: caps and tier boundaries cannot be configured to
// zero. A zero cap would make every session start Red, and a zero
// simple boundary would erase the simple tier, so no component accepts
// one anyway (the budget tracker falls back to defaults for caps <= 0).
type Config struct {
	Workspace WorkspaceConfig `koanf:"workspace"`
	Classify  classify.Config `koanf:"classify"`
	Budget    budget.Config   `koanf:"budget"`
	Registry  RegistryConfig  `koanf:"registry"`
	Log       LogConfig       `koanf:"log"`
}

// RegistryDBPath resolves the registry database path against the root.
func (c *Config) RegistryDBPath() string {
	return c.resolve(c.Workspace.RegistryDB)
}

// SkillsDirPath resolves the skills directory against the root.
func (c *Config) SkillsDirPath() string {
	return c.resolve(c.Workspace.SkillsDir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace.Root, p)
}

// Validate checks the loaded configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Classify.Validate(); err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if c.Registry.RegisterThreshold <= 0 || c.Registry.PromoteThreshold <= c.Registry.RegisterThreshold {
		return fmt.Errorf("registry: promote threshold %d must exceed register threshold %d",
			c.Registry.PromoteThreshold, c.Registry.RegisterThreshold)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// Load reads configuration from an optional YAML file, then overrides
// with SPECD_-prefixed environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SPECD_BUDGET_WORKING_MAX, SPECD_LOG_LEVEL, ...)
//  2. YAML config file (.specd.yaml in the workspace root by default)
//  3. Defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = ".specd.yaml"
	}
	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	// SPECD_BUDGET_WORKING_MAX -> budget.working_max: the first underscore
	// after the prefix separates section from field.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills every missing field from the package defaults.
// Zero is "missing" here; see the Config doc for why explicit zeros are
// not distinguished.
func applyDefaults(cfg *Config) {
	if cfg.Workspace.RegistryDB == "" {
		cfg.Workspace.RegistryDB = filepath.Join(".specd", "registry.db")
	}
	if cfg.Workspace.SkillsDir == "" {
		cfg.Workspace.SkillsDir = "skills"
	}

	def := classify.DefaultConfig()
	if cfg.Classify.SimpleMax == 0 {
		cfg.Classify.SimpleMax = def.SimpleMax
	}
	if cfg.Classify.MediumMax == 0 {
		cfg.Classify.MediumMax = def.MediumMax
	}
	if cfg.Classify.HighMax == 0 {
		cfg.Classify.HighMax = def.HighMax
	}
	if cfg.Classify.Weights == (classify.Weights{}) {
		cfg.Classify.Weights = def.Weights
	}

	bdef := budget.DefaultConfig()
	if cfg.Budget.WorkingMax == 0 {
		cfg.Budget.WorkingMax = bdef.WorkingMax
	}
	if cfg.Budget.EpisodicMax == 0 {
		cfg.Budget.EpisodicMax = bdef.EpisodicMax
	}
	if cfg.Budget.SemanticMax == 0 {
		cfg.Budget.SemanticMax = bdef.SemanticMax
	}
	if cfg.Budget.DirectReadMax == 0 {
		cfg.Budget.DirectReadMax = bdef.DirectReadMax
	}
	if cfg.Budget.LargeReadMax == 0 {
		cfg.Budget.LargeReadMax = bdef.LargeReadMax
	}
	if cfg.Budget.DelegationMax == 0 {
		cfg.Budget.DelegationMax = bdef.DelegationMax
	}
	if cfg.Budget.YellowRatio == 0 {
		cfg.Budget.YellowRatio = bdef.YellowRatio
	}

	if cfg.Registry.RegisterThreshold == 0 {
		cfg.Registry.RegisterThreshold = 75
	}
	if cfg.Registry.PromoteThreshold == 0 {
		cfg.Registry.PromoteThreshold = 90
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
