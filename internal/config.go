package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Currency      CurrencyConfig      `mapstructure:"currency"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Approval      ApprovalConfig      `mapstructure:"approval"`
	Mail          MailConfig          `mapstructure:"mail"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required,min=32"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type CurrencyConfig struct {
	RatesAPIURL     string        `mapstructure:"rates_api_url"`
	CountriesAPIURL string        `mapstructure:"countries_api_url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
}

type OCRConfig struct {
	Command       string        `mapstructure:"command"`
	Language      string        `mapstructure:"language"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

type ApprovalConfig struct {
	UnresolvedApproverPolicy string `mapstructure:"unresolved_approver_policy" validate:"oneof=skip fail fallback"`
	ManagerResolution        string `mapstructure:"manager_resolution" validate:"oneof=relation any"`
	ApplyRules               bool   `mapstructure:"apply_rules"`
}

type MailConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=smtp log"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path" validate:"required_if=Enabled true"`
	Namespace string `mapstructure:"namespace"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- DEFAULTS -----------------

// ApplyDefaults fills zero values with the defaults the service runs with.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 10
	}
	if c.Currency.RatesAPIURL == "" {
		c.Currency.RatesAPIURL = "https://api.exchangerate-api.com/v4/latest"
	}
	if c.Currency.CountriesAPIURL == "" {
		c.Currency.CountriesAPIURL = "https://restcountries.com/v3.1"
	}
	if c.Currency.CacheTTL == 0 {
		c.Currency.CacheTTL = time.Hour
	}
	if c.Currency.HTTPTimeout == 0 {
		c.Currency.HTTPTimeout = 10 * time.Second
	}
	if c.OCR.Command == "" {
		c.OCR.Command = "tesseract"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = 30 * time.Second
	}
	if c.OCR.MaxUploadSize == 0 {
		c.OCR.MaxUploadSize = 10 << 20
	}
	if c.Approval.UnresolvedApproverPolicy == "" {
		c.Approval.UnresolvedApproverPolicy = "skip"
	}
	if c.Approval.ManagerResolution == "" {
		c.Approval.ManagerResolution = "relation"
	}
	if c.Mail.Driver == "" {
		c.Mail.Driver = "log"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Metrics.Namespace == "" {
		c.Observability.Metrics.Namespace = "expense_approval"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration from environment variables only.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:           getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:        getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins: getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:    getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret:   getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 10),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Currency: CurrencyConfig{
			RatesAPIURL:     getEnv("CURRENCY_RATES_API_URL", ""),
			CountriesAPIURL: getEnv("CURRENCY_COUNTRIES_API_URL", ""),
			CacheTTL:        getEnvAsDuration("CURRENCY_CACHE_TTL", time.Hour),
			HTTPTimeout:     getEnvAsDuration("CURRENCY_HTTP_TIMEOUT", 10*time.Second),
		},
		OCR: OCRConfig{
			Command:  getEnv("OCR_COMMAND", "tesseract"),
			Language: getEnv("OCR_LANGUAGE", "eng"),
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		},
		Approval: ApprovalConfig{
			UnresolvedApproverPolicy: getEnv("APPROVAL_UNRESOLVED_POLICY", "skip"),
			ManagerResolution:        getEnv("APPROVAL_MANAGER_RESOLUTION", "relation"),
			ApplyRules:               getEnvAsBool("APPROVAL_APPLY_RULES", false),
		},
		Mail: MailConfig{
			Driver:   getEnv("MAIL_DRIVER", "log"),
			Host:     getEnv("MAIL_HOST", ""),
			Port:     getEnvAsInt("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@expense.local"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Approval.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("approval config: %v", err))
	}

	if err := c.Mail.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("mail config: %v", err))
	}

	if c.OCR.Timeout <= 0 {
		errs = append(errs, "ocr config: timeout must be positive")
	}

	if c.Currency.CacheTTL <= 0 {
		errs = append(errs, "currency config: cache_ttl must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh token secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}

func (c *ApprovalConfig) Validate() error {
	switch c.UnresolvedApproverPolicy {
	case "skip", "fail", "fallback":
	default:
		return fmt.Errorf("unknown unresolved_approver_policy %q", c.UnresolvedApproverPolicy)
	}
	switch c.ManagerResolution {
	case "relation", "any":
	default:
		return fmt.Errorf("unknown manager_resolution %q", c.ManagerResolution)
	}
	return nil
}

func (c *MailConfig) Validate() error {
	switch c.Driver {
	case "log":
		return nil
	case "smtp":
		if c.Host == "" {
			return errors.New("host is required for smtp driver")
		}
		if c.From == "" {
			return errors.New("from is required for smtp driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown mail driver %q", c.Driver)
	}
}
