package config

// Config represents the main shelldon configuration
type Config struct {
	// Shell session
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Security gate
	Security SecurityConfig `json:"security" mapstructure:"security"`

	// AI provider
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Gateway (HTTP front end)
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// History store
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ShellConfig holds bash session settings
type ShellConfig struct {
	// BashPath overrides bash discovery when set
	BashPath string `json:"bash_path" mapstructure:"bash_path"`

	// WorkDir is the session's initial working directory (default: user home)
	WorkDir string `json:"work_dir" mapstructure:"work_dir"`

	// TimeoutSeconds bounds each command execution
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// QueueSize is the shared output queue capacity
	QueueSize int `json:"queue_size" mapstructure:"queue_size"`
}

// SecurityConfig holds deny-list settings
type SecurityConfig struct {
	// DenyPrefixes are extra command prefixes rejected on top of the
	// built-in deny-list
	DenyPrefixes []string `json:"deny_prefixes" mapstructure:"deny_prefixes"`
}

// AIConfig holds LLM provider settings
type AIConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns    int     `json:"max_turns" mapstructure:"max_turns"`
}

// GatewayConfig holds HTTP front-end settings
type GatewayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// HistoryConfig holds run-history store settings
type HistoryConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Path          string `json:"path" mapstructure:"path"`
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
	RunDir  string `json:"run_dir" mapstructure:"run_dir"` // per-run transcript directory
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			TimeoutSeconds: 20,
			QueueSize:      1024,
		},
		Security: SecurityConfig{},
		AI: AIConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   4096,
			MaxTurns:    20,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8080",
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
