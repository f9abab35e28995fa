package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Enterprise EnterpriseConfig `yaml:"enterprise" mapstructure:"enterprise"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Jira       JiraConfig       `yaml:"jira" mapstructure:"jira"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EnterpriseConfig holds credentials and endpoints for the usage provider API.
type EnterpriseConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	RootURL   string `yaml:"root_url" mapstructure:"root_url"`
	PageLimit int    `yaml:"page_limit" mapstructure:"page_limit"`
	// MaxConcurrent bounds the multi-endpoint fan-out.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// GitHubConfig holds GitHub API settings for the KPI adapters.
type GitHubConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	PerPage int    `yaml:"per_page" mapstructure:"per_page"`
}

// JiraConfig holds Jira API settings for the KPI adapters.
type JiraConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Email    string `yaml:"email" mapstructure:"email"`
	Token    string `yaml:"token" mapstructure:"token"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// MetricsConfig holds the pricing assumptions behind cost metrics.
type MetricsConfig struct {
	PricePerACU         float64 `yaml:"price_per_acu" mapstructure:"price_per_acu"`
	Currency            string  `yaml:"currency" mapstructure:"currency"`
	WorkingHoursPerDay  int     `yaml:"working_hours_per_day" mapstructure:"working_hours_per_day"`
	WorkingDaysPerMonth int     `yaml:"working_days_per_month" mapstructure:"working_days_per_month"`
}

// RetryConfig configures the shared retry policy.
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// CircuitConfig configures the per-endpoint circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// OutputConfig configures where reports and raw snapshots land.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the local mock usage API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("enterprise.base_url", "https://api.devin.ai/v2/enterprise")
	v.SetDefault("enterprise.root_url", "https://api.devin.ai/v2")
	v.SetDefault("enterprise.page_limit", 100)
	v.SetDefault("enterprise.max_concurrent", 4)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.per_page", 100)
	v.SetDefault("jira.page_size", 100)
	v.SetDefault("metrics.price_per_acu", 0.05)
	v.SetDefault("metrics.currency", "USD")
	v.SetDefault("metrics.working_hours_per_day", 8)
	v.SetDefault("metrics.working_days_per_month", 22)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 60000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("output.dir", "reports")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required by the given command mode
// is present. Modes: "ingest", "collect", "kpi", "serve", "report".
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Retry.MaxRetries < 0 {
		missing = append(missing, "retry.max_retries must be >= 0")
	}
	if c.Enterprise.MaxConcurrent < 1 || c.Enterprise.MaxConcurrent > 32 {
		missing = append(missing, "enterprise.max_concurrent must be between 1 and 32")
	}
	if c.Metrics.PricePerACU < 0 {
		missing = append(missing, "metrics.price_per_acu must be >= 0")
	}

	switch mode {
	case "ingest", "collect":
		if c.Enterprise.Key == "" {
			missing = append(missing, "enterprise.key is required")
		}
	case "kpi":
		if c.GitHub.Token == "" {
			missing = append(missing, "github.token is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "report":
		// Key stays optional: the local mock API takes no credentials.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
