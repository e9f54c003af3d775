package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageocr/internal/config"
	"github.com/jackzampolin/pageocr/internal/output"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pageocr configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to <home>/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		path := cfgFile
		if path == "" {
			path = e.home.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := e.home.EnsureExists(); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		e.logger.Info("wrote default config", "path", path)
		return nil
	},
}

// settingRow is one row of 'config show'.
type settingRow struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Default     any    `json:"default" yaml:"default"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings after file and PAGEOCR_* overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		rows := make([]settingRow, 0)
		for _, key := range config.DefaultKeys() {
			def := config.GetDefault(key)
			value := e.config.Value(key)
			if strings.HasSuffix(key, ".api_key") {
				value = redact(value)
			}
			rows = append(rows, settingRow{
				Key:         key,
				Value:       value,
				Default:     def.Value,
				Description: def.Description,
			})
		}
		return output.Output(map[string]any{
			"config_file": e.config.ConfigFileUsed(),
			"settings":    rows,
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key in the loaded config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		return e.config.Set(args[0], parseValue(args[1]))
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Reset a key in the loaded config file to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		return e.config.Reset(args[0])
	},
}

// parseValue turns CLI text into a bool, int or float where it parses as one.
func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// redact hides resolved secrets but keeps ${VAR} references visible.
func redact(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if config.ResolveEnvVars(s) != s {
		return s
	}
	return "****"
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}
