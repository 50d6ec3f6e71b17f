package config

// Config represents the core cadence configuration
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Run         RunConfig         `mapstructure:"run"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Import      ImportConfig      `mapstructure:"import"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the cadence web server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // Server port: nil = default 4812, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"` // Color theme: gruvbox, everforest
}

// Server port constants
const (
	DefaultServerPort  = 4812  // Development port (easy to type, above privileged range)
	FallbackServerPort = 14812 // Production fallback port
)

// RunConfig configures the batch job system (core infrastructure)
type RunConfig struct {
	// Worker concurrency configuration
	Workers int `mapstructure:"workers"` // Number of concurrent job workers (default: 2)

	// Ticker configuration for scheduled job execution
	TickerIntervalSeconds int `mapstructure:"ticker_interval_seconds"` // How often to check for scheduled jobs (default: 1)

	// Rate limiting for job starts (sliding window)
	MaxJobStartsPerMinute int `mapstructure:"max_job_starts_per_minute"` // Job starts allowed per minute (default: 10)

	// PauseOnBudgetExceeded pauses jobs instead of failing them when a
	// budget or rate limit blocks execution
	PauseOnBudgetExceeded bool `mapstructure:"pause_on_budget_exceeded"`

	// Budget tracking for oracle spend (enforced before each oracle-backed lead)
	DailyBudgetUSD   float64 `mapstructure:"daily_budget_usd"`   // Daily spending limit in USD
	WeeklyBudgetUSD  float64 `mapstructure:"weekly_budget_usd"`  // Weekly spending limit in USD
	MonthlyBudgetUSD float64 `mapstructure:"monthly_budget_usd"` // Monthly spending limit in USD
	CostPerLeadUSD   float64 `mapstructure:"cost_per_lead_usd"`  // Estimated cost per qualified lead
}

// HuggingFaceConfig configures Hugging Face router API access
type HuggingFaceConfig struct {
	APIToken             string `mapstructure:"api_token"`               // API token (HF_API_TOKEN)
	Model                string `mapstructure:"model"`                   // Default model (e.g., "meta-llama/Llama-3.1-8B-Instruct")
	BaseURL              string `mapstructure:"base_url"`                // Chat-completions base URL
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`         // Per-request timeout in seconds
	MaxRetries           int    `mapstructure:"max_retries"`             // Attempts before rule-based fallback
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"` // Outbound rate limit (0 = unlimited)
}

// AgentConfig configures the qualification agent
type AgentConfig struct {
	DefaultVariant string `mapstructure:"default_variant"` // Prompt variant when none specified: A or B
	RulesPath      string `mapstructure:"rules_path"`      // Optional TOML policy rules file (extends built-in rules)
}

// ImportConfig configures CSV lead import
type ImportConfig struct {
	BatchSize   int  `mapstructure:"batch_size"`   // Rows per insert transaction (default: 100)
	SkipInvalid bool `mapstructure:"skip_invalid"` // Skip rows that fail validation instead of aborting
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
