package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	DatabaseConfig    DatabaseConfig  `yaml:"databaseConfig"`
	RedisConfig       RedisConfig     `yaml:"redisConfig"`
	ServerAddr        string          `yaml:"serverAddr"`
	// TrustProxyHeaders : брать IP клиента из X-Forwarded-For/X-Real-IP.
	// Включать только за доверенным прокси, иначе лимит запросов обходится подменой заголовка
	TrustProxyHeaders bool            `yaml:"trustProxyHeaders"`
	Version           string          `yaml:"version"`
	S3Config          S3Config        `yaml:"s3Config"`
	NATS              NATSConfig      `yaml:"nats"`
	JWT               JWTConfig       `yaml:"jwt"`
	Cookies           CookieConfig    `yaml:"cookies"`
	Session           SessionConfig   `yaml:"session"`
	RateLimit         RateLimitConfig `yaml:"rateLimit"`
	Health            HealthConfig    `yaml:"health"`
	Log               LogConfig       `yaml:"log"`
}

// LoadConfig : читает yaml-файл (если он есть) и накладывает переменные окружения.
// Отсутствующий файл не ошибка: сервис можно полностью настроить через окружение.
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		"DATABASE_URL": &c.DatabaseConfig.DSN,
		"REDIS_URL":    &c.RedisConfig.URL,
		"JWT_SECRET":   &c.JWT.SecretKey,
		"NATS_URL":     &c.NATS.URL,
		"SERVER_ADDR":  &c.ServerAddr,
		"LOG_LEVEL":    &c.Log.Level,
		"S3_BUCKET":    &c.S3Config.Bucket,
		"APP_VERSION":  &c.Version,
	}
	for key, target := range overrides {
		if value, ok := lookup(key); ok {
			*target = strings.TrimSpace(value)
		}
	}
	if value, ok := lookup("TRUST_PROXY_HEADERS"); ok {
		if trust, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			c.TrustProxyHeaders = trust
		}
	}
}

func (c *AppConfig) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "fund-directory"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "session.events"
	}
	if c.S3Config.Prefix == "" {
		c.S3Config.Prefix = "incidents"
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 20
	}
	if c.DatabaseConfig.ConnectRetries == 0 {
		c.DatabaseConfig.ConnectRetries = 5
	}
	if c.RedisConfig.MaxReconnectAttempts == 0 {
		c.RedisConfig.MaxReconnectAttempts = 5
	}
}

// Validate : проверяет обязательные поля и формат длительностей
func (c *AppConfig) Validate() error {
	if c.DatabaseConfig.DSN == "" {
		return fmt.Errorf("не задан DSN базы данных (databaseConfig.dsn или DATABASE_URL)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("секрет JWT должен быть не короче 32 символов")
	}

	durations := map[string]string{
		"jwt.access_token_ttl":             c.JWT.AccessTokenTTL,
		"jwt.refresh_token_ttl":            c.JWT.RefreshTokenTTL,
		"databaseConfig.conn_max_lifetime": c.DatabaseConfig.ConnMaxLifetime,
		"databaseConfig.retry_delay":       c.DatabaseConfig.RetryDelay,
		"redisConfig.dial_timeout":         c.RedisConfig.DialTimeout,
		"redisConfig.read_timeout":         c.RedisConfig.ReadTimeout,
		"redisConfig.write_timeout":        c.RedisConfig.WriteTimeout,
		"redisConfig.base_backoff":         c.RedisConfig.BaseBackoff,
		"redisConfig.max_backoff":          c.RedisConfig.MaxBackoff,
		"redisConfig.probe_interval":       c.RedisConfig.ProbeInterval,
		"rateLimit.window":                 c.RateLimit.Window,
		"health.check_timeout":             c.Health.CheckTimeout,
		"health.db_warn_latency":           c.Health.DBWarnLatency,
	}
	for field, value := range durations {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	if c.JWT.AccessTTL() >= c.JWT.RefreshTTL() {
		return fmt.Errorf("access_token_ttl должен быть меньше refresh_token_ttl")
	}

	return nil
}

func SetupServer(serverAddress string, trustProxyHeaders bool) (*http.Server, *chi.Mux) {
	router := chi.NewRouter()
	if trustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.Recoverer)

	server := &http.Server{
		Addr:              serverAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server, router
}

func SetupDatabase(cfg *DatabaseConfig) (*Database, error) {
	return NewDatabaseConnection("postgres", cfg)
}

// SetupRedis : возвращает nil без ошибки, если кэш не настроен
func SetupRedis(cfg *RedisConfig) (*RedisClient, error) {
	return NewRedisClient(cfg)
}
