package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Placeholder token value that means "not configured". Shipped in example
// configs; the oracle treats it the same as an empty token.
const PlaceholderAPIToken = "your_huggingface_token_here"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "cadence.db")

	// Hugging Face router defaults
	v.SetDefault("huggingface.model", "meta-llama/Llama-3.1-8B-Instruct")
	v.SetDefault("huggingface.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("huggingface.timeout_seconds", 30)
	v.SetDefault("huggingface.max_retries", 3)
	v.SetDefault("huggingface.max_requests_per_minute", 60)

	// Agent defaults
	v.SetDefault("agent.default_variant", "A")

	// Run (batch job infrastructure) defaults
	v.SetDefault("run.workers", 2)
	v.SetDefault("run.ticker_interval_seconds", 1)
	v.SetDefault("run.max_job_starts_per_minute", 10)
	v.SetDefault("run.pause_on_budget_exceeded", true)
	v.SetDefault("run.daily_budget_usd", 3.0)    // Default $3/day limit
	v.SetDefault("run.weekly_budget_usd", 7.0)   // Default $7/week limit
	v.SetDefault("run.monthly_budget_usd", 15.0) // Default $15/month limit
	v.SetDefault("run.cost_per_lead_usd", 0.002) // Default $0.002 per qualification

	// Import defaults
	v.SetDefault("import.batch_size", 100)
	v.SetDefault("import.skip_invalid", true)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.log_theme", "everforest")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// HF_API_TOKEN and HF_MODEL are honored unprefixed because that is what the
// Hugging Face tooling ecosystem exports.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("huggingface.api_token", "CADENCE_HUGGINGFACE_API_TOKEN", "HF_API_TOKEN")
	v.BindEnv("huggingface.model", "CADENCE_HUGGINGFACE_MODEL", "HF_MODEL")

	// Database path
	v.BindEnv("database.path", "CADENCE_DATABASE_PATH")
}

// GetServerPort returns the configured cadence server port
// Returns server.port from config, or DefaultServerPort (4812) if not configured
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port == nil || *cfg.Server.Port == 0 {
		return DefaultServerPort
	}
	return *cfg.Server.Port
}

// GetServerPort returns the configured port, falling back to the default
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil || *c.Server.Port == 0 {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "cadence.db" // Fallback default
	}
	return c.Database.Path
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetServerLogTheme returns the log theme (default: everforest)
func (c *Config) GetServerLogTheme() string {
	if c.Server.LogTheme == "" {
		return "everforest"
	}
	return c.Server.LogTheme
}

// OracleConfigured reports whether a usable API token is present. An absent
// or placeholder token means the oracle runs in disabled mode and every
// completion takes the rule-based fallback path.
func (c *Config) OracleConfigured() bool {
	return c.HuggingFace.APIToken != "" && c.HuggingFace.APIToken != PlaceholderAPIToken
}

// GetImportBatchSize returns the import batch size with the default applied
func (c *Config) GetImportBatchSize() int {
	if c.Import.BatchSize <= 0 {
		return 100
	}
	return c.Import.BatchSize
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: {LogTheme: %s}, Run: {Workers: %d}}",
		c.Database.Path, c.Server.LogTheme, c.Run.Workers)
}
