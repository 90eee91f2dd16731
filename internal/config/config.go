package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/tramite-watcher/internal/models"
)

type Config struct {
	Tramite   TramiteConfig
	Browser   BrowserConfig
	Extractor ExtractorConfig
	State     StateConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Notify    NotifyConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

type TramiteConfig struct {
	ID          string
	SiteURL     string
	EndpointURL string
	SiteKey     string
	Action      string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
}

type ExtractorConfig struct {
	Strategies       []string
	ChallengeTimeout time.Duration
	EndpointTimeout  time.Duration
	InputWait        time.Duration
	StageWait        time.Duration
	SettleTimeout    time.Duration
	DebugDir         string
	SelectorsFile    string
	CloudflareBypass bool
	PaceMin          time.Duration
	PaceMax          time.Duration
}

type StateConfig struct {
	Backend    string
	FilePath   string
	SQLitePath string
	RedisKey   string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type NotifyConfig struct {
	Channels     []string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	Recipient    string
	Timeout      time.Duration
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	ChannelEmail  = "email"
	ChannelStream = "stream"
)

var knownStrategies = map[string]bool{
	string(models.StrategyEndpoint): true,
	string(models.StrategyForm):     true,
	string(models.StrategyStages):   true,
}

func Load() (*Config, error) {
	cfg := &Config{
		Tramite: TramiteConfig{
			ID:          strings.TrimSpace(os.Getenv("TRAMITE_ID")),
			SiteURL:     getEnvOrDefault("RENAPER_URL", "https://mitramite.renaper.gob.ar/"),
			EndpointURL: getEnvOrDefault("RENAPER_BUSQUEDA_URL", "https://mitramite.renaper.gob.ar/busqueda.php"),
			SiteKey:     getEnvOrDefault("RECAPTCHA_SITEKEY", "6Ld2mMAbAAAAAM9grHC4aJ6pJT1TtvUz04q4Fvjs"),
			Action:      getEnvOrDefault("RECAPTCHA_ACTION", "submit_tramite"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 900),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "es-AR,es;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Argentina/Buenos_Aires"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "es-AR"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
		},
		Extractor: ExtractorConfig{
			Strategies:       getStringSliceOrDefault("EXTRACT_STRATEGIES", []string{"endpoint", "form", "stages"}),
			ChallengeTimeout: getDurationOrDefault("CHALLENGE_TIMEOUT", 15*time.Second),
			EndpointTimeout:  getDurationOrDefault("ENDPOINT_TIMEOUT", 15*time.Second),
			InputWait:        getDurationOrDefault("INPUT_WAIT", 15*time.Second),
			StageWait:        getDurationOrDefault("STAGE_WAIT", 3*time.Second),
			SettleTimeout:    getDurationOrDefault("SETTLE_TIMEOUT", 20*time.Second),
			DebugDir:         getEnvOrDefault("DEBUG_DIR", "debug"),
			SelectorsFile:    os.Getenv("SELECTORS_FILE"),
			CloudflareBypass: getBoolOrDefault("CLOUDFLARE_BYPASS", true),
			PaceMin:          getDurationOrDefault("STRATEGY_PACE_MIN", time.Second),
			PaceMax:          getDurationOrDefault("STRATEGY_PACE_MAX", 3*time.Second),
		},
		State: StateConfig{
			Backend:    strings.ToLower(getEnvOrDefault("STATE_BACKEND", BackendFile)),
			FilePath:   getEnvOrDefault("STATE_FILE", "last_state.txt"),
			SQLitePath: getEnvOrDefault("STATE_SQLITE_PATH", "./data/state.db"),
			RedisKey:   getEnvOrDefault("STATE_REDIS_KEY", "tramite:last_state"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "tramite_watcher"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:tramite_status"),
		},
		Notify: NotifyConfig{
			Channels:     getStringSliceOrDefault("NOTIFY_CHANNELS", []string{ChannelEmail}),
			SMTPHost:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getIntOrDefault("SMTP_PORT", 465),
			SMTPUser:     os.Getenv("GMAIL_USER"),
			SMTPPassword: os.Getenv("GMAIL_APP_PASSWORD"),
			Recipient:    os.Getenv("NOTIFY_EMAIL"),
			Timeout:      getDurationOrDefault("NOTIFY_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", nil),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

// Validate checks settings needed by the check command. Every failure wraps
// models.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if err := models.TrackingID(c.Tramite.ID).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("TRAMITE_ID is required"))
	}

	if len(c.Extractor.Strategies) == 0 {
		errs = append(errs, fmt.Errorf("EXTRACT_STRATEGIES must name at least one strategy"))
	}
	for _, s := range c.Extractor.Strategies {
		if !knownStrategies[s] {
			errs = append(errs, fmt.Errorf("unknown extraction strategy %q", s))
		}
	}

	if err := c.ValidateState(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Notify.Channels) == 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_CHANNELS must name at least one channel"))
	}
	for _, ch := range c.Notify.Channels {
		switch ch {
		case ChannelEmail:
			if c.Notify.SMTPUser == "" {
				errs = append(errs, fmt.Errorf("GMAIL_USER is required"))
			}
			if c.Notify.SMTPPassword == "" {
				errs = append(errs, fmt.Errorf("GMAIL_APP_PASSWORD is required"))
			}
			if c.Notify.Recipient == "" {
				errs = append(errs, fmt.Errorf("NOTIFY_EMAIL is required"))
			}
		case ChannelStream:
			if c.Redis.Addr == "" || c.Redis.Stream == "" {
				errs = append(errs, fmt.Errorf("REDIS_ADDR and REDIS_STREAM are required for the stream channel"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notification channel %q", ch))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
	}

	return nil
}

// ValidateState checks only the storage settings, used by the read-only commands.
func (c *Config) ValidateState() error {
	var err error
	switch c.State.Backend {
	case BackendFile:
		if c.State.FilePath == "" {
			err = fmt.Errorf("STATE_FILE cannot be empty")
		}
	case BackendSQLite:
		if c.State.SQLitePath == "" {
			err = fmt.Errorf("STATE_SQLITE_PATH cannot be empty")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			err = fmt.Errorf("DB_HOST and DB_NAME are required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" || c.State.RedisKey == "" {
			err = fmt.Errorf("REDIS_ADDR and STATE_REDIS_KEY are required for the redis backend")
		}
	default:
		err = fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Notify.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
