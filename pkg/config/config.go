package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FBSCRAPER_"

// Config holds all configuration options for the messenger scraper
type Config struct {
	// Remote service access
	Messenger MessengerConfig `yaml:"messenger" json:"messenger"`

	// Directory and history crawl settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Attachment download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Terminal output
	UI UIConfig `yaml:"ui" json:"ui"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MessengerConfig holds transport settings for the messaging endpoints
type MessengerConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent" validate:"required"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	RequestDataFile string        `yaml:"request_data_file" json:"request_data_file"`
	Account         string        `yaml:"account" json:"account"`
}

// CrawlConfig holds pagination settings
type CrawlConfig struct {
	ChunkSize      int           `yaml:"chunk_size" json:"chunk_size" validate:"gt=0"`
	Offset         int           `yaml:"offset" json:"offset" validate:"gte=0"`
	RequestDelay   time.Duration `yaml:"request_delay" json:"request_delay" validate:"gte=0"`
	ThreadPageSize int           `yaml:"thread_page_size" json:"thread_page_size" validate:"gt=0"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Workers           int           `yaml:"workers" json:"workers" validate:"gt=0,lte=64"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	ChunkSize         int           `yaml:"chunk_size" json:"chunk_size" validate:"gt=0"`
	FailFast          bool          `yaml:"fail_fast" json:"fail_fast"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory" validate:"required"`
	DumpFormat    string `yaml:"dump_format" json:"dump_format" validate:"oneof=raw pretty both"`
}

// UIConfig holds terminal output preferences
type UIConfig struct {
	Quiet           bool          `yaml:"quiet" json:"quiet"`
	SpinnerInterval time.Duration `yaml:"spinner_interval" json:"spinner_interval" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error disabled"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Messenger: MessengerConfig{
			BaseURL:        "https://www.facebook.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			RequestTimeout: 60 * time.Second,
		},
		Crawl: CrawlConfig{
			ChunkSize:      2000,
			Offset:         0,
			RequestDelay:   time.Second,
			ThreadPageSize: 1000,
		},
		Download: DownloadConfig{
			Workers:           4,
			Timeout:           5 * time.Minute,
			ChunkSize:         1024,
			FailFast:          false,
			RequestsPerMinute: 0, // 0 means unlimited
		},
		Output: OutputConfig{
			BaseDirectory: "output",
			DumpFormat:    "both",
		},
		UI: UIConfig{
			SpinnerInterval: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	setString("BASE_URL", &c.Messenger.BaseURL)
	setString("USER_AGENT", &c.Messenger.UserAgent)
	setString("REQUEST_DATA_FILE", &c.Messenger.RequestDataFile)
	setString("ACCOUNT", &c.Messenger.Account)
	setInt("CHUNK_SIZE", &c.Crawl.ChunkSize)
	setInt("OFFSET", &c.Crawl.Offset)
	setDuration("REQUEST_DELAY", &c.Crawl.RequestDelay)
	setInt("WORKERS", &c.Download.Workers)
	setInt("REQUESTS_PER_MINUTE", &c.Download.RequestsPerMinute)
	setString("OUTPUT_DIR", &c.Output.BaseDirectory)
	setString("DUMP_FORMAT", &c.Output.DumpFormat)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(envPrefix + "FAIL_FAST"); v != "" {
		c.Download.FailFast = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "QUIET"); v != "" {
		c.UI.Quiet = strings.ToLower(v) == "true"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".fbscraper.yaml",
		".fbscraper.yml",
		filepath.Join(home, ".config", "fbscraper", "config.yaml"),
		filepath.Join(home, ".config", "fbscraper", "config.yml"),
		filepath.Join(home, ".fbscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Messenger.RequestDataFile = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Messenger.Account = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["size"].(int); ok {
		c.Crawl.ChunkSize = v
	}
	if v, ok := flags["offset"].(int); ok {
		c.Crawl.Offset = v
	}
	if v, ok := flags["timer"].(float64); ok {
		c.Crawl.RequestDelay = time.Duration(v * float64(time.Second))
	}
	if v, ok := flags["threads"].(int); ok {
		c.Download.Workers = v
	}
	if v, ok := flags["fail-fast"].(bool); ok {
		c.Download.FailFast = v
	}
	if v, ok := flags["quiet"].(bool); ok {
		c.UI.Quiet = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fbscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
