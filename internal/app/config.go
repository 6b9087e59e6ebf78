package app

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/buddybot-backend/internal/data/db"
	"github.com/yungbote/buddybot-backend/internal/events/dispatch"
	"github.com/yungbote/buddybot-backend/internal/observability"
)

type Config struct {
	LogMode     string `mapstructure:"LOG_MODE"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	Environment string `mapstructure:"APP_ENV"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	DBDriver         string `mapstructure:"DB_DRIVER"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresName     string `mapstructure:"POSTGRES_NAME"`
	PostgresSSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`

	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	RedisChannel string `mapstructure:"REDIS_CHANNEL"`

	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`

	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `mapstructure:"OUTBOX_RETRY_DELAY"`
	EventDedupeTTL     time.Duration `mapstructure:"EVENT_DEDUPE_TTL"`

	MetricsEnabled  bool    `mapstructure:"METRICS_ENABLED"`
	OtelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OtelExporter    string  `mapstructure:"OTEL_EXPORTER"`
	OtelEndpoint    string  `mapstructure:"OTEL_ENDPOINT"`
	OtelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

var configKeys = map[string]any{
	"LOG_MODE":             "development",
	"HTTP_ADDR":            ":8080",
	"APP_ENV":              "local",
	"CORS_ORIGINS":         "",
	"DB_DRIVER":            "postgres",
	"POSTGRES_HOST":        "localhost",
	"POSTGRES_PORT":        "5432",
	"POSTGRES_USER":        "postgres",
	"POSTGRES_PASSWORD":    "",
	"POSTGRES_NAME":        "buddybot",
	"POSTGRES_SSLMODE":     "disable",
	"SQLITE_PATH":          "buddybot.db",
	"REDIS_ADDR":           "",
	"REDIS_CHANNEL":        "buddybot.events",
	"JWT_SECRET_KEY":       "",
	"OUTBOX_POLL_INTERVAL": time.Second,
	"OUTBOX_BATCH_SIZE":    50,
	"OUTBOX_MAX_ATTEMPTS":  10,
	"OUTBOX_RETRY_DELAY":   5 * time.Second,
	"EVENT_DEDUPE_TTL":     24 * time.Hour,
	"METRICS_ENABLED":      false,
	"OTEL_ENABLED":         false,
	"OTEL_EXPORTER":        "stdout",
	"OTEL_ENDPOINT":        "",
	"OTEL_SAMPLE_RATIO":    1.0,
}

// NewViper returns a viper instance reading the environment and an optional app.env in path.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path == "" {
		path = "."
	}
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	for key, def := range configKeys {
		v.SetDefault(key, def)
		_ = v.BindEnv(key)
	}
	return v
}

func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	if c.OutboxBatchSize < 0 || c.OutboxMaxAttempts < 0 {
		errs = append(errs, errors.New("outbox batch size and max attempts must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresName,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c Config) Dispatch() dispatch.Config {
	return dispatch.Config{
		PollInterval: c.OutboxPollInterval,
		BatchSize:    c.OutboxBatchSize,
		MaxAttempts:  c.OutboxMaxAttempts,
		RetryDelay:   c.OutboxRetryDelay,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: "buddybot",
		Environment: c.Environment,
		Exporter:    c.OtelExporter,
		Endpoint:    c.OtelEndpoint,
		Insecure:    true,
		SampleRatio: c.OtelSampleRatio,
	}
}

func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
