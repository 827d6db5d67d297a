package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DB"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY" validate:"required"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Notification  NotificationConfig  `mapstructure:"notification" envconfig:"NOTIFICATION"`
	Discovery     DiscoveryConfig     `mapstructure:"discovery" envconfig:"DISCOVERY"`
	Permission    PermissionConfig    `mapstructure:"permission" envconfig:"PERMISSION"`
	Worker        WorkerConfig        `mapstructure:"worker" envconfig:"WORKER"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" default:"8080" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	RateLimit         int           `mapstructure:"rate_limit" envconfig:"RATE_LIMIT" default:"120" validate:"min=0"`
	OpenAPIPath       string        `mapstructure:"openapi_path" envconfig:"OPENAPI_PATH" default:"./api/openapi.yml"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"20" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required,min=32"`
	JWTIssuer           string        `mapstructure:"jwt_issuer" envconfig:"JWT_ISSUER" default:"audit-management"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" envconfig:"ACCESS_TOKEN_DURATION" default:"15m" validate:"required,min=1m,max=24h"`
	BCryptCost          int           `mapstructure:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"12" validate:"required,min=10,max=15"`
}

type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled" envconfig:"ENABLED" default:"false"`
	Addr          string        `mapstructure:"addr" envconfig:"ADDR" default:"127.0.0.1:6379" validate:"required_if=Enabled true"`
	Password      string        `mapstructure:"password" envconfig:"PASSWORD"`
	DB            int           `mapstructure:"db" envconfig:"DB" default:"0" validate:"min=0"`
	ChannelPrefix string        `mapstructure:"channel_prefix" envconfig:"CHANNEL_PREFIX" default:"notifications"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" envconfig:"DIAL_TIMEOUT" default:"3s"`
}

type NotificationConfig struct {
	FanoutConcurrency int           `mapstructure:"fanout_concurrency" envconfig:"FANOUT_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	DispatchTimeout   time.Duration `mapstructure:"dispatch_timeout" envconfig:"DISPATCH_TIMEOUT" default:"2s"`
	LinkBaseURL       string        `mapstructure:"link_base_url" envconfig:"LINK_BASE_URL" default:"http://localhost:3000" validate:"required,url"`
	Webhook           WebhookConfig `mapstructure:"webhook" envconfig:"WEBHOOK"`
}

// WebhookConfig forwards every emitted event to an external endpoint when URL is set.
type WebhookConfig struct {
	URL     string        `mapstructure:"url" envconfig:"TARGET_URL" validate:"omitempty,url"`
	Secret  string        `mapstructure:"secret" envconfig:"SECRET"`
	Timeout time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT" default:"5s"`
	Retries int           `mapstructure:"retries" envconfig:"RETRIES" default:"2" validate:"min=0,max=10"`
	Backoff time.Duration `mapstructure:"backoff" envconfig:"BACKOFF" default:"200ms"`
}

type DiscoveryConfig struct {
	ConsultOverrides bool `mapstructure:"consult_overrides" envconfig:"CONSULT_OVERRIDES" default:"false"`
}

type PermissionConfig struct {
	CatalogCacheSize int           `mapstructure:"catalog_cache_size" envconfig:"CATALOG_CACHE_SIZE" default:"512" validate:"min=0"`
	CatalogCacheTTL  time.Duration `mapstructure:"catalog_cache_ttl" envconfig:"CATALOG_CACHE_TTL" default:"10m"`
}

type WorkerConfig struct {
	HODSyncSchedule string `mapstructure:"hod_sync_schedule" envconfig:"HOD_SYNC_SCHEDULE" default:"@every 1h"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED" default:"true"`
	Path    string `mapstructure:"path" envconfig:"ENDPOINT" default:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" default:"info" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" default:"json" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv reads the configuration from process environment variables,
// e.g. HTTP_PORT, DB_SOURCE, SECURITY_JWT_SECRET.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
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
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}
