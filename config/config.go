package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// prefixPattern keeps generated unique ids inside the ticket identity charset.
var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Email    EmailConfig
	Event    EventConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	ReadTimeout        time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001"` // comma-separated, or "*"
	CheckinRatePerMin  int           `env:"CHECKIN_RATE_PER_MINUTE" envDefault:"120"`
	CheckinBurst       int           `env:"CHECKIN_RATE_BURST" envDefault:"30"`
}

// DatabaseConfig selects the participant store. Driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"postgres"`
	URL        string `env:"DATABASE_URL"` // if set, used as-is (e.g. postgres://localhost:5432/checkin?sslmode=disable)
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"checkin"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"checkin.db"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// AWSConfig holds AWS credentials and the exports bucket. Exports to S3 are off when ExportsBucket is empty.
type AWSConfig struct {
	Region               string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID          string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint             string `env:"AWS_S3_ENDPOINT"`
	ExportsBucket        string `env:"AWS_S3_EXPORTS_BUCKET"`
	PresignExpireMinutes int    `env:"AWS_PRESIGN_EXPIRE_MINUTES" envDefault:"15"`
}

// EmailConfig for SMTP delivery. An empty SMTPHost means emails are only logged.
type EmailConfig struct {
	FromAddress     string `env:"EMAIL_FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName        string `env:"EMAIL_FROM_NAME" envDefault:"Event Check-in"`
	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser        string `env:"SMTP_USER"`
	SMTPPass        string `env:"SMTP_PASS"`
	WorkerInProcess bool   `env:"EMAIL_WORKER_INPROCESS" envDefault:"true"`
}

// EventConfig describes the event being checked in.
type EventConfig struct {
	Name          string        `env:"EVENT_NAME" envDefault:"Seminar Nasional"`
	IDPrefix      string        `env:"EVENT_ID_PREFIX" envDefault:"EVT"`
	DefaultLocale string        `env:"DEFAULT_LOCALE" envDefault:"en"`
	PollInterval  time.Duration `env:"DASHBOARD_POLL_INTERVAL" envDefault:"3s"`
}

// SMTPEnabled reports whether SMTP delivery is configured.
func (c EmailConfig) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// S3Enabled reports whether S3 exports are configured.
func (c AWSConfig) S3Enabled() bool {
	return c.ExportsBucket != ""
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	if p := strings.TrimSuffix(strings.TrimSpace(c.Event.IDPrefix), "-"); !prefixPattern.MatchString(p) {
		errs = append(errs, fmt.Errorf("EVENT_ID_PREFIX %q is invalid", c.Event.IDPrefix))
	}
	if c.Event.PollInterval <= 0 {
		errs = append(errs, errors.New("DASHBOARD_POLL_INTERVAL must be positive"))
	}
	if c.Email.SMTPEnabled() && c.Email.SMTPPort <= 0 {
		errs = append(errs, errors.New("SMTP_PORT must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
