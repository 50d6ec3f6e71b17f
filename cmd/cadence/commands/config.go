package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/cadence/config"
	"gopkg.in/yaml.v3"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit cadence configuration",
	Long: `Display and manage cadence configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (CADENCE_* prefix, plus HF_API_TOKEN/HF_MODEL)
2. Project config (./cadence.toml or ./config.toml, searched upward)
3. Dashboard-written config (~/.cadence/cadence_from_ui.toml)
4. User config (~/.cadence/cadence.toml or ~/.cadence/config.toml)
5. System config (/etc/cadence/config.toml)
6. Default values

Examples:
  cadence config show                    # Show current configuration
  cadence config show --format json      # Show configuration in JSON format
  cadence config get huggingface.model   # Get a specific config value
  cadence config set run.workers 4       # Persist a setting
  cadence config path                    # Show the config cascade
  cadence config validate                # Validate current configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current cadence configuration merged from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, run.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration setting",
	Long: `Write one setting into ~/.cadence/cadence_from_ui.toml, the same file
the web dashboard writes to. Hand-edited config files are never touched.
A running server picks the change up through its config watcher.

Examples:
  cadence config set run.workers 4
  cadence config set run.daily_budget_usd 5.0
  cadence config set agent.default_variant B`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration is loaded from",
	Long:  "List all configuration sources in order of precedence, marking which files exist.",
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current cadence configuration is valid",
	RunE:  runConfigValidate,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# cadence configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# cadence configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := config.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	value := config.Get(key)
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := parseSettingValue(args[1])

	if err := config.UpdateSetting(key, value); err != nil {
		return fmt.Errorf("failed to persist setting: %w", err)
	}

	pterm.Success.Printf("Set %s = %v\n", key, value)
	fmt.Printf("Written to %s\n", config.GetUIConfigPath())
	return nil
}

// parseSettingValue keeps numeric and boolean values typed in the TOML
// file instead of quoting everything as a string
func parseSettingValue(raw string) interface{} {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cadenceDir := config.UserConfigDir()

	type sourceRow struct {
		label string
		path  string // empty for virtual sources
		note  string
	}

	rows := []sourceRow{
		{"DEFAULT", "", "built-in defaults"},
		{"SYSTEM", "/etc/cadence/config.toml", ""},
		{"USER", filepath.Join(cadenceDir, "config.toml"), ""},
		{"USER", filepath.Join(cadenceDir, "cadence.toml"), ""},
		{"USER_UI", config.GetUIConfigPath(), ""},
		{"PROJECT", "", "./cadence.toml or ./config.toml (searched upward)"},
		{"ENV", "", "CADENCE_* environment variables"},
	}

	fmt.Println("Configuration cascade (later overrides earlier):")
	for i, row := range rows {
		if row.path == "" {
			fmt.Printf("  %d. [%-8s] %s\n", i+1, row.label, row.note)
			continue
		}
		marker := "missing"
		if _, err := os.Stat(row.path); err == nil {
			marker = "found"
		}
		fmt.Printf("  %d. [%-8s] %-45s (%s)\n", i+1, row.label, row.path, marker)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}
