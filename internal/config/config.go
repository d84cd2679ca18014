package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Drive    DriveConfig       `mapstructure:"drive"`
	OCR      OCRConfig         `mapstructure:"ocr"`
	OpenAI   OpenAIConfig      `mapstructure:"openai"`
	Ledger   LedgerConfig      `mapstructure:"ledger"`
	Sync     SyncConfig        `mapstructure:"sync"`
	Clients  map[string]string `mapstructure:"clients"`
	Logger   LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DriveConfig holds the cloud drive collaborator configuration. Voucher
// scans are dropped into a single watched folder.
type DriveConfig struct {
	AppID       string        `mapstructure:"app_id"`
	AppSecret   string        `mapstructure:"app_secret"`
	FolderToken string        `mapstructure:"folder_token"`
	APITimeout  time.Duration `mapstructure:"api_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	Languages     []string `mapstructure:"languages"`
	DPI           int      `mapstructure:"dpi"`
	MinTextLength int      `mapstructure:"min_text_length"`
	MinConfidence float64  `mapstructure:"min_confidence"`
	MaxPages      int      `mapstructure:"max_pages"`
}

// OpenAIConfig holds the fallback OCR engine configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LedgerConfig holds the spreadsheet ledger configuration
type LedgerConfig struct {
	Path      string `mapstructure:"path"`
	SheetName string `mapstructure:"sheet_name"`
}

// SyncConfig holds pipeline configuration
type SyncConfig struct {
	Workers              int       `mapstructure:"workers"`
	DefaultLookbackHours int       `mapstructure:"default_lookback_hours"`
	HourlyRate           float64   `mapstructure:"hourly_rate"`
	FallbackAmounts      []float64 `mapstructure:"fallback_amounts"`
	ArchiveDir           string    `mapstructure:"archive_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/vouchers.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Drive defaults
	viper.SetDefault("drive.api_timeout", 30*time.Second)
	viper.SetDefault("drive.max_retries", 3)

	// OCR defaults
	viper.SetDefault("ocr.languages", []string{"eng"})
	viper.SetDefault("ocr.dpi", 300)
	viper.SetDefault("ocr.min_text_length", 40)
	viper.SetDefault("ocr.min_confidence", 0.55)
	viper.SetDefault("ocr.max_pages", 4)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.max_tokens", 4096)
	viper.SetDefault("openai.timeout", 60*time.Second)

	// Ledger defaults
	viper.SetDefault("ledger.path", "data/voucher_ledger.xlsx")
	viper.SetDefault("ledger.sheet_name", "Vouchers")

	// Sync defaults
	viper.SetDefault("sync.workers", 4)
	viper.SetDefault("sync.default_lookback_hours", 24)
	viper.SetDefault("sync.hourly_rate", 30.0)
	viper.SetDefault("sync.fallback_amounts", []float64{180, 360, 450, 540, 900})
	viper.SetDefault("sync.archive_dir", "data/archive")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("drive.app_id", "DRIVE_APP_ID")
	viper.BindEnv("drive.app_secret", "DRIVE_APP_SECRET")
	viper.BindEnv("drive.folder_token", "DRIVE_FOLDER_TOKEN")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate drive credentials
	if c.Drive.AppID == "" {
		return fmt.Errorf("drive.app_id is required")
	}
	if c.Drive.AppSecret == "" {
		return fmt.Errorf("drive.app_secret is required")
	}
	if c.Drive.FolderToken == "" {
		return fmt.Errorf("drive.folder_token is required")
	}

	// Validate fallback engine credentials
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}

	// Validate pipeline config
	if len(c.Clients) == 0 {
		return fmt.Errorf("clients map is required")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.Sync.HourlyRate <= 0 {
		return fmt.Errorf("sync.hourly_rate must be positive")
	}

	return nil
}
