package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nvandessel/treesim/internal/config"
	"github.com/nvandessel/treesim/internal/pathutil"
	"github.com/spf13/cobra"
)

// configKeys lists the keys accepted by get and set, in display order.
var configKeys = []string{
	"downward.lookahead",
	"downward.prerefine",
	"downward.prerefine_depth",
	"downward.order",
	"downward.good_cache",
	"downward.bad_cache",
	"downward.three_valued",
	"downward.shortcut",
	"upward.enabled",
	"upward.lookahead",
	"upward.finality",
	"upward.prerefine",
	"run.timeout",
	"run.saturate",
	"logging.level",
	"logging.dir",
	"store.backend",
	"store.path",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage treesim configuration",
		Long: `View and modify treesim configuration settings.

Configuration is stored in ~/.treesim/config.yaml.

Examples:
  treesim config init                          # Write the defaults
  treesim config list                          # Show all settings
  treesim config get downward.lookahead        # Get a specific setting
  treesim config set downward.good_cache local # Set a setting`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", pathutil.RedactPath(path))
			}

			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", pathutil.RedactPath(path))
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.treesim/config.yaml):")
			fmt.Fprintln(out)
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-26s %v\n", key+":", value)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.TreesimConfig, key string) (any, bool) {
	switch key {
	case "downward.lookahead":
		return cfg.Downward.Lookahead, true
	case "downward.prerefine":
		return cfg.Downward.Prerefine, true
	case "downward.prerefine_depth":
		return cfg.Downward.PrerefineDepth, true
	case "downward.order":
		return cfg.Downward.Order, true
	case "downward.good_cache":
		return cfg.Downward.GoodCache, true
	case "downward.bad_cache":
		return cfg.Downward.BadCache, true
	case "downward.three_valued":
		return cfg.Downward.ThreeValued, true
	case "downward.shortcut":
		return cfg.Downward.Shortcut, true
	case "upward.enabled":
		return cfg.Upward.Enabled, true
	case "upward.lookahead":
		return cfg.Upward.Lookahead, true
	case "upward.finality":
		return cfg.Upward.Finality, true
	case "upward.prerefine":
		return cfg.Upward.Prerefine, true
	case "run.timeout":
		return cfg.Run.Timeout.String(), true
	case "run.saturate":
		return cfg.Run.Saturate, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.dir":
		return cfg.Logging.Dir, true
	case "store.backend":
		return cfg.Store.Backend, true
	case "store.path":
		return cfg.Store.Path, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.TreesimConfig, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		return n, nil
	}
	truthy := value == "true" || value == "1"

	switch key {
	case "downward.lookahead":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Downward.Lookahead = n
	case "downward.prerefine":
		cfg.Downward.Prerefine = value
	case "downward.prerefine_depth":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Downward.PrerefineDepth = n
	case "downward.order":
		cfg.Downward.Order = value
	case "downward.good_cache":
		cfg.Downward.GoodCache = value
	case "downward.bad_cache":
		cfg.Downward.BadCache = value
	case "downward.three_valued":
		cfg.Downward.ThreeValued = value
	case "downward.shortcut":
		cfg.Downward.Shortcut = truthy
	case "upward.enabled":
		cfg.Upward.Enabled = truthy
	case "upward.lookahead":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Upward.Lookahead = n
	case "upward.finality":
		cfg.Upward.Finality = value
	case "upward.prerefine":
		cfg.Upward.Prerefine = truthy
	case "run.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Run.Timeout = d
	case "run.saturate":
		cfg.Run.Saturate = truthy
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.dir":
		cfg.Logging.Dir = value
	case "store.backend":
		cfg.Store.Backend = value
	case "store.path":
		cfg.Store.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
