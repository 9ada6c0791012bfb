package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the connection settings for the IMAP mailbox.
// The account password is kept in the system keyring, not here.
type MailboxConfig struct {
	// Host is the IMAP server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port (usually 993 for TLS).
	Port string `mapstructure:"port" yaml:"port"`

	// Username is the mailbox login name.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; when false, STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Folder is the mailbox folder to triage.
	Folder string `mapstructure:"folder" yaml:"folder"`
}

// AIConfig holds settings for the classification model integration.
type AIConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// CalendarConfig holds settings for the calendar service integration.
// The API token is kept in the system keyring, not here.
type CalendarConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// TriageConfig holds the tunable knobs of the triage pipeline.
type TriageConfig struct {
	// BodyLimit is the maximum number of body characters sent to the
	// model for classification and validation.
	BodyLimit int `mapstructure:"body_limit" yaml:"body_limit"`

	// ValidateWindow is how many recently updated records the
	// validation pass re-examines.
	ValidateWindow int `mapstructure:"validate_window" yaml:"validate_window"`

	// UrgentLeadMinutes is how far from "now" an urgent block starts.
	UrgentLeadMinutes int `mapstructure:"urgent_lead_minutes" yaml:"urgent_lead_minutes"`

	// UrgentBlockMinutes is the duration of an urgent block.
	UrgentBlockMinutes int `mapstructure:"urgent_block_minutes" yaml:"urgent_block_minutes"`

	// ReadingWeekday is the weekday reserved for reading blocks
	// (1 = Monday ... 6 = Saturday, 7 = Sunday; 0 means unset).
	ReadingWeekday int `mapstructure:"reading_weekday" yaml:"reading_weekday"`

	// ReadingHour is the local start hour of the reading block.
	ReadingHour int `mapstructure:"reading_hour" yaml:"reading_hour"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath   string         `mapstructure:"db_path" yaml:"db_path"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar"`
	Triage   TriageConfig   `mapstructure:"triage" yaml:"triage"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inboxtriage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inboxtriage", "config.yaml")
}

// DefaultDBPath returns the default path for the triage database,
// located at ~/.config/inboxtriage/triage.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "triage.db")
	}
	return filepath.Join(home, ".config", "inboxtriage", "triage.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath: DefaultDBPath(),
		Mailbox: MailboxConfig{
			Port:   "993",
			TLS:    true,
			Folder: "INBOX",
		},
		AI: AIConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Triage: TriageConfig{
			BodyLimit:          4000,
			ValidateWindow:     20,
			UrgentLeadMinutes:  120,
			UrgentBlockMinutes: 30,
			ReadingWeekday:     6, // Saturday
			ReadingHour:        10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("mailbox.port", "993")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.folder", "INBOX")
	v.SetDefault("ai.base_url", "https://api.anthropic.com")
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("triage.body_limit", 4000)
	v.SetDefault("triage.validate_window", 20)
	v.SetDefault("triage.urgent_lead_minutes", 120)
	v.SetDefault("triage.urgent_block_minutes", 30)
	v.SetDefault("triage.reading_weekday", 6)
	v.SetDefault("triage.reading_hour", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("ai", cfg.AI)
	v.Set("calendar", cfg.Calendar)
	v.Set("triage", cfg.Triage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
