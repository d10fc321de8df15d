package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	DLQ        DLQConfig        `mapstructure:"dlq"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	Table            string        `mapstructure:"table" validate:"required"`
	Columns          ColumnsConfig `mapstructure:"columns"`
	MaxConns         int32         `mapstructure:"max_conns" validate:"min=1"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" validate:"gt=0"`
}

// ColumnsConfig maps each record field to its destination column.
type ColumnsConfig struct {
	NotificationTime   string `mapstructure:"notification_time" validate:"required"`
	ChatIdentifier     string `mapstructure:"chat_identifier" validate:"required"`
	VisitorPhoneNumber string `mapstructure:"visitor_phone_number" validate:"required"`
	Messages           string `mapstructure:"messages" validate:"required"`
	EmployeeFullName   string `mapstructure:"employee_full_name" validate:"required"`
	VisitorName        string `mapstructure:"visitor_name" validate:"required"`
	VisitorID          string `mapstructure:"visitor_id" validate:"required"`
	Status             string `mapstructure:"status" validate:"required"`
}

type NormalizerConfig struct {
	TimestampFormats []string `mapstructure:"timestamp_formats" validate:"min=1,dive,required"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Backend  string        `mapstructure:"backend" validate:"oneof=redis memory"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	Requests int           `mapstructure:"requests" validate:"min=1"`
	Window   time.Duration `mapstructure:"window" validate:"gt=0"`
}

type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Backend  string `mapstructure:"backend" validate:"oneof=file jetstream"`
	BasePath string `mapstructure:"base_path"`
	NatsURL  string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// ErrDatabaseURLMissing is returned by RequireDatabase when no connection string is set.
var ErrDatabaseURLMissing = errors.New("database.url is not set (CGWEBHOOK_DATABASE_URL or DB_URL)")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8005)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_body_bytes", 1048576)
	v.SetDefault("database.url", "")
	v.SetDefault("database.table", "callgear_notifications")
	v.SetDefault("database.columns.notification_time", "notification_time")
	v.SetDefault("database.columns.chat_identifier", "chat_id")
	v.SetDefault("database.columns.visitor_phone_number", "visitor_phone_number")
	v.SetDefault("database.columns.messages", "messages")
	v.SetDefault("database.columns.employee_full_name", "employee_full_name")
	v.SetDefault("database.columns.visitor_name", "visitor_name")
	v.SetDefault("database.columns.visitor_id", "visitor_id")
	v.SetDefault("database.columns.status", "status")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.statement_timeout", "5s")
	v.SetDefault("normalizer.timestamp_formats", []string{"2006-01-02 15:04:05.000000", "2006-01-02 15:04:05"})
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.backend", "redis")
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.backend", "file")
	v.SetDefault("dlq.base_path", "./dlq")
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cg-webhook")
	}

	// Environment variables override (CGWEBHOOK_SERVER_PORT, etc.)
	v.SetEnvPrefix("CGWEBHOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Deployments predating the prefix only set DB_URL.
	if err := v.BindEnv("database.url", "CGWEBHOOK_DATABASE_URL", "DB_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. It does not require a database URL so that
// offline commands can run; see RequireDatabase.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireDatabase reports an error when the store cannot be reached for lack of a URL.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrDatabaseURLMissing
	}
	return nil
}
