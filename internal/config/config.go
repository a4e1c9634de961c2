// Package config provides unified configuration loading for treesim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/treesim/internal/constants"
	"gopkg.in/yaml.v3"
)

// TreesimConfig contains all treesim configuration settings.
type TreesimConfig struct {
	// Downward configures the lookahead game and its pre-refinement.
	Downward DownwardConfig `json:"downward" yaml:"downward"`

	// Upward configures the upward game and the combination step.
	Upward UpwardConfig `json:"upward" yaml:"upward"`

	// Run contains settings that apply to a whole pipeline run.
	Run RunConfig `json:"run" yaml:"run"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures where run history is kept.
	Store StoreConfig `json:"store" yaml:"store"`
}

// DownwardConfig configures the downward simulation game.
type DownwardConfig struct {
	// Lookahead is the maximum attack tree depth.
	Lookahead int `json:"lookahead" yaml:"lookahead"`

	// Prerefine selects the structural filter run before the game:
	// "linear", "branching" or "off".
	Prerefine string `json:"prerefine" yaml:"prerefine"`

	// PrerefineDepth is the filter depth; -1 derives it from Lookahead.
	PrerefineDepth int `json:"prerefine_depth" yaml:"prerefine_depth"`

	// Order is the attack-ordering heuristic: "none", "initial-first" or
	// "arity-first".
	Order string `json:"order" yaml:"order"`

	// GoodCache and BadCache select history scopes: "none", "local",
	// "semi-global", "global" or "global-v2".
	GoodCache string `json:"good_cache" yaml:"good_cache"`
	BadCache  string `json:"bad_cache" yaml:"bad_cache"`

	// ThreeValued selects the verdict logic: "off", "v1" or "v2".
	ThreeValued string `json:"three_valued" yaml:"three_valued"`

	// Shortcut computes lookahead 1 as ordinary simulation.
	Shortcut bool `json:"shortcut" yaml:"shortcut"`
}

// UpwardConfig configures the upward game.
type UpwardConfig struct {
	// Enabled runs the upward game and combines it with the downward
	// relation.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Lookahead is the maximum climb length.
	Lookahead int `json:"lookahead" yaml:"lookahead"`

	// Finality is "weak" (top of the climb) or "strict" (every level).
	Finality string `json:"finality" yaml:"finality"`

	// Prerefine runs the occurrence filter before the game.
	Prerefine bool `json:"prerefine" yaml:"prerefine"`
}

// RunConfig configures a pipeline run.
type RunConfig struct {
	// Timeout bounds each stage. Zero disables the deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Saturate adds the transitions implied by the final relation.
	Saturate bool `json:"saturate" yaml:"saturate"`
}

// LoggingConfig configures treesim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the refinement trace in <dir>/trace.jsonl.
	// "trace" additionally logs every removed pair to stderr.
	Level string `json:"level" yaml:"level"`

	// Dir is the directory of the refinement trace. Empty means
	// ~/.treesim.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StoreConfig configures the run-history store.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file. Supports ${VAR} syntax. Empty means
	// ~/.treesim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a TreesimConfig with sensible defaults.
func Default() *TreesimConfig {
	return &TreesimConfig{
		Downward: DownwardConfig{
			Lookahead:      constants.DefaultLookahead,
			Prerefine:      "linear",
			PrerefineDepth: constants.AutoPrerefineDepth,
			Order:          "none",
			GoodCache:      "none",
			BadCache:       "none",
			ThreeValued:    "off",
			Shortcut:       true,
		},
		Upward: UpwardConfig{
			Enabled:   false,
			Lookahead: constants.DefaultUpwardLookahead,
			Finality:  "weak",
			Prerefine: true,
		},
		Run: RunConfig{
			Timeout:  constants.DefaultRunTimeout,
			Saturate: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.treesim/config.yaml -> environment variables
func Load() (*TreesimConfig, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".treesim", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*TreesimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return config, nil
}

// Save writes the configuration to path as YAML, creating the directory.
func (c *TreesimConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *TreesimConfig) Validate() error {
	if c.Downward.Lookahead < 1 || c.Downward.Lookahead > constants.MaxLookahead {
		return fmt.Errorf("lookahead must be between 1 and %d, got %d", constants.MaxLookahead, c.Downward.Lookahead)
	}
	if c.Downward.PrerefineDepth < constants.AutoPrerefineDepth {
		return fmt.Errorf("prerefine_depth must be -1 (auto) or non-negative, got %d", c.Downward.PrerefineDepth)
	}
	if err := oneOf("prerefine", c.Downward.Prerefine, "off", "linear", "branching"); err != nil {
		return err
	}
	if err := oneOf("order", c.Downward.Order, "none", "initial-first", "arity-first"); err != nil {
		return err
	}
	for name, v := range map[string]string{"good_cache": c.Downward.GoodCache, "bad_cache": c.Downward.BadCache} {
		if err := oneOf(name, v, "none", "local", "semi-global", "global", "global-v2"); err != nil {
			return err
		}
	}
	if err := oneOf("three_valued", c.Downward.ThreeValued, "off", "v1", "v2"); err != nil {
		return err
	}

	if c.Upward.Lookahead < 1 || c.Upward.Lookahead > constants.MaxLookahead {
		return fmt.Errorf("upward lookahead must be between 1 and %d, got %d", constants.MaxLookahead, c.Upward.Lookahead)
	}
	if err := oneOf("finality", c.Upward.Finality, "weak", "strict"); err != nil {
		return err
	}

	if c.Run.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Run.Timeout)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if err := oneOf("store backend", c.Store.Backend, "sqlite", "memory"); err != nil {
		return err
	}

	return nil
}

// oneOf accepts the empty string, which selects the default.
func oneOf(field, v string, valid ...string) error {
	if v == "" {
		return nil
	}
	for _, ok := range valid {
		if strings.EqualFold(v, ok) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (valid: %s)", field, v, strings.Join(valid, ", "))
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *TreesimConfig) {
	if v := os.Getenv("TREESIM_LOOKAHEAD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Downward.Lookahead = n
		}
	}

	if v := os.Getenv("TREESIM_PREREFINE"); v != "" {
		config.Downward.Prerefine = v
	}
	if v := os.Getenv("TREESIM_PREREFINE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Downward.PrerefineDepth = n
		}
	}

	if v := os.Getenv("TREESIM_ORDER"); v != "" {
		config.Downward.Order = v
	}
	if v := os.Getenv("TREESIM_GOOD_CACHE"); v != "" {
		config.Downward.GoodCache = v
	}
	if v := os.Getenv("TREESIM_BAD_CACHE"); v != "" {
		config.Downward.BadCache = v
	}
	if v := os.Getenv("TREESIM_THREE_VALUED"); v != "" {
		config.Downward.ThreeValued = v
	}

	if v := os.Getenv("TREESIM_UPWARD"); v != "" {
		config.Upward.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TREESIM_UPWARD_LOOKAHEAD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Upward.Lookahead = n
		}
	}
	if v := os.Getenv("TREESIM_FINALITY"); v != "" {
		config.Upward.Finality = v
	}

	if v := os.Getenv("TREESIM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Run.Timeout = d
		}
	}
	if v := os.Getenv("TREESIM_SATURATE"); v != "" {
		config.Run.Saturate = v == "true" || v == "1"
	}

	if v := os.Getenv("TREESIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("TREESIM_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
