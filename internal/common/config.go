package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Session     SessionConfig    `toml:"session"`
	Browser     BrowserConfig    `toml:"browser"`
	LinkedIn    LinkedInConfig   `toml:"linkedin"`
	Extraction  ExtractionConfig `toml:"extraction"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
	Dir        string   `toml:"dir"`                          // Log file directory; empty means logs/ beside the binary
	MaxSizeMB  int      `toml:"max_size_mb" validate:"min=1"` // Rotate after this many megabytes
	MaxBackups int      `toml:"max_backups" validate:"min=0"`
}

// SessionStoreType selects the Session Store backend
type SessionStoreType string

const (
	SessionStoreFile   SessionStoreType = "file"
	SessionStoreBadger SessionStoreType = "badger"
)

// SessionConfig controls persistence and freshness of the LinkedIn session
type SessionConfig struct {
	Store               SessionStoreType `toml:"store" validate:"oneof=file badger"`
	Path                string           `toml:"path"`                                  // JSON file used by the file store
	FreshnessWindow     Duration         `toml:"freshness_window" validate:"gt=0"`      // Sessions older than this are never reused
	ExpiryCheckSchedule string           `toml:"expiry_check_schedule" validate:"cron"` // Cron expression for the periodic expiry sweep
}

// BrowserConfig contains chromedp allocator settings
type BrowserConfig struct {
	ExecPath        string   `toml:"exec_path"` // Chrome binary, empty for auto-detect
	UserAgent       string   `toml:"user_agent"`
	NoSandbox       bool     `toml:"no_sandbox"`
	DisableGPU      bool     `toml:"disable_gpu"`
	PageLoadTimeout Duration `toml:"page_load_timeout" validate:"gt=0"` // Bound on every navigation
	StartupTimeout  Duration `toml:"startup_timeout" validate:"gt=0"`
	SettleDelay     Duration `toml:"settle_delay"` // Wait after load for client-side rendering
}

// LinkedInConfig holds site endpoints and the optional login credentials
type LinkedInConfig struct {
	BaseURL   string `toml:"base_url" validate:"required,url"`
	LoginPath string `toml:"login_path" validate:"required"`
	FeedPath  string `toml:"feed_path" validate:"required"`
	Email     string `toml:"email"`
	Password  string `toml:"password"`
}

// LoginURL returns the absolute login page URL
func (c LinkedInConfig) LoginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.LoginPath
}

// FeedURL returns the absolute post-login landing URL
func (c LinkedInConfig) FeedURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.FeedPath
}

// ExtractionConfig tunes the batch pipeline
type ExtractionConfig struct {
	Concurrency   int      `toml:"concurrency" validate:"min=1,max=16"` // Worker pool size
	MaxRetries    int      `toml:"max_retries" validate:"min=0,max=5"`  // Retries per method on transient failure
	RecordDelay   Duration `toml:"record_delay"`                        // Minimum spacing between record starts
	RetryBackoff  Duration `toml:"retry_backoff"`
	SupportedHost string   `toml:"supported_host" validate:"required"` // Postings on other hosts are skipped
}

// Duration is a time.Duration that reads TOML strings such as "10s" or "24h".
type Duration time.Duration

// Duration returns the value as a time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// WebSocketConfig contains configuration for the status stream
type WebSocketConfig struct {
	ThrottleInterval Duration `toml:"throttle_interval"` // Minimum spacing of record progress broadcasts
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/db",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Session: SessionConfig{
			Store:               SessionStoreFile,
			Path:                "./data/linkedin_session.json",
			FreshnessWindow:     Duration(24 * time.Hour),
			ExpiryCheckSchedule: "@every 5m",
		},
		Browser: BrowserConfig{
			UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NoSandbox:       true,
			DisableGPU:      true,
			PageLoadTimeout: Duration(10 * time.Second),
			StartupTimeout:  Duration(30 * time.Second),
			SettleDelay:     Duration(2 * time.Second),
		},
		LinkedIn: LinkedInConfig{
			BaseURL:   "https://www.linkedin.com",
			LoginPath: "/login",
			FeedPath:  "/feed/",
		},
		Extraction: ExtractionConfig{
			Concurrency:   2,
			MaxRetries:    1,
			RecordDelay:   Duration(2 * time.Second),
			RetryBackoff:  Duration(2 * time.Second),
			SupportedHost: "linkedin.com",
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: Duration(500 * time.Millisecond),
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HIRESCOUT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("HIRESCOUT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HIRESCOUT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("HIRESCOUT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("HIRESCOUT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if dir := os.Getenv("HIRESCOUT_LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}
	if output := os.Getenv("HIRESCOUT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Session configuration
	if store := os.Getenv("HIRESCOUT_SESSION_STORE"); store != "" {
		config.Session.Store = SessionStoreType(store)
	}
	if path := os.Getenv("HIRESCOUT_SESSION_PATH"); path != "" {
		config.Session.Path = path
	}

	// Browser configuration
	if execPath := os.Getenv("HIRESCOUT_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if timeout := os.Getenv("HIRESCOUT_BROWSER_PAGE_LOAD_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Browser.PageLoadTimeout = Duration(d)
		}
	}
	if noSandbox := os.Getenv("HIRESCOUT_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if b, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = b
		}
	}

	// Credentials are usually supplied here rather than in the config file
	if email := os.Getenv("HIRESCOUT_LINKEDIN_EMAIL"); email != "" {
		config.LinkedIn.Email = email
	}
	if password := os.Getenv("HIRESCOUT_LINKEDIN_PASSWORD"); password != "" {
		config.LinkedIn.Password = password
	}

	// Extraction configuration
	if concurrency := os.Getenv("HIRESCOUT_EXTRACTION_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Extraction.Concurrency = c
		}
	}
	if retries := os.Getenv("HIRESCOUT_EXTRACTION_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Extraction.MaxRetries = r
		}
	}
	if delay := os.Getenv("HIRESCOUT_EXTRACTION_RECORD_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Extraction.RecordDelay = Duration(d)
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := parser.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the resolved configuration
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Session.Store == SessionStoreFile && c.Session.Path == "" {
		return fmt.Errorf("invalid configuration: session.path is required for the file session store")
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
