package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Audit     AuditSettings     `mapstructure:"audit"`
	Schedule  ScheduleSettings  `mapstructure:"schedule"`
	Authz     AuthzSettings     `mapstructure:"authz"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the audit publisher. An empty broker list disables publishing.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// JWTSettings configures bearer token verification.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures the per-actor sliding window applied to the API. MaxRequests
// covers roles without a budget of their own. A zero MaxRequests or AnonymousRequests leaves
// those callers unlimited.
type RateLimitSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	MaxRequests       int           `mapstructure:"max_requests"`
	AnonymousRequests int           `mapstructure:"anonymous_requests"`
	Roles             RoleLimits    `mapstructure:"roles"`
}

// RoleLimits holds the request budget per window for each role. Zero defers to MaxRequests.
type RoleLimits struct {
	Admin      int `mapstructure:"admin"`
	Technician int `mapstructure:"technician"`
	Client     int `mapstructure:"client"`
	User       int `mapstructure:"user"`
}

// ByRole keys the budgets by role name.
func (r RoleLimits) ByRole() map[string]int {
	return map[string]int{
		"admin":      r.Admin,
		"technician": r.Technician,
		"client":     r.Client,
		"user":       r.User,
	}
}

// AuditSettings configures the audit buffer.
type AuditSettings struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ScheduleSettings configures the scheduling calendar.
type ScheduleSettings struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (s ScheduleSettings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// AuthzSettings tunes the authorization core.
type AuthzSettings struct {
	OwnerCacheSize int `mapstructure:"owner_cache_size"`
}

// CORSSettings lists browser origins allowed to call the API. Empty disables CORS headers.
type CORSSettings struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MAINT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.log_level",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.issuer",
		"jwt.audience",
		"jwt.leeway",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.enabled",
		"rate_limit.window_duration",
		"rate_limit.max_requests",
		"rate_limit.anonymous_requests",
		"rate_limit.roles.admin",
		"rate_limit.roles.technician",
		"rate_limit.roles.client",
		"rate_limit.roles.user",
		"audit.buffer_size",
		"audit.write_timeout",
		"schedule.timezone",
		"authz.owner_cache_size",
		"cors.allowed_origins",
		"cors.max_age",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.App.Env == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if c.RateLimit.MaxRequests < 0 || c.RateLimit.AnonymousRequests < 0 {
		return fmt.Errorf("rate_limit request budgets must not be negative")
	}
	for role, limit := range c.RateLimit.Roles.ByRole() {
		if limit < 0 {
			return fmt.Errorf("rate_limit.roles.%s must not be negative", role)
		}
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit.buffer_size must not be negative")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "maintenance-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "maintenance")
	v.SetDefault("postgres.password", "maintenance_password")
	v.SetDefault("postgres.database", "maintenance")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "maint:rate_limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "maintenance")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", "30s")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "maintenance-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.anonymous_requests", 30)
	v.SetDefault("rate_limit.roles.admin", 600)
	v.SetDefault("rate_limit.roles.technician", 300)
	v.SetDefault("rate_limit.roles.client", 120)
	v.SetDefault("rate_limit.roles.user", 60)

	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.write_timeout", "5s")

	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("authz.owner_cache_size", 4096)

	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.max_age", "12h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "MAINT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
