package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnectRetries  int    `yaml:"connect_retries"`
	RetryDelay      string `yaml:"retry_delay"`
}

// RedisConfig : пустой URL означает, что кэш не настроен (деградированный режим, не ошибка)
type RedisConfig struct {
	URL                  string `yaml:"url"`
	DialTimeout          string `yaml:"dial_timeout"`
	ReadTimeout          string `yaml:"read_timeout"`
	WriteTimeout         string `yaml:"write_timeout"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	BaseBackoff          string `yaml:"base_backoff"`
	MaxBackoff           string `yaml:"max_backoff"`
	ProbeInterval        string `yaml:"probe_interval"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Local    bool   `yaml:"local"`
	Prefix   string `yaml:"prefix"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type JWTConfig struct {
	SecretKey       string `yaml:"secret_key"`
	Issuer          string `yaml:"issuer"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
}

type CookieConfig struct {
	Secure   bool   `yaml:"secure"`
	Domain   string `yaml:"domain"`
	SameSite string `yaml:"same_site"`
}

type SessionConfig struct {
	// RevokeAllOnReuse : при обнаружении повторного использования отзывать все семейства пользователя
	RevokeAllOnReuse bool `yaml:"revoke_all_on_reuse"`
}

type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

type HealthConfig struct {
	CheckTimeout  string `yaml:"check_timeout"`
	DBWarnLatency string `yaml:"db_warn_latency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AccessTTL : пустое или некорректное значение заменяется значением по умолчанию
func (c JWTConfig) AccessTTL() time.Duration {
	return parseDurationOr(c.AccessTokenTTL, 15*time.Minute)
}

func (c JWTConfig) RefreshTTL() time.Duration {
	return parseDurationOr(c.RefreshTokenTTL, 7*24*time.Hour)
}

func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c RateLimitConfig) WindowDuration() time.Duration {
	return parseDurationOr(c.Window, time.Minute)
}

func (c HealthConfig) CheckTimeoutDuration() time.Duration {
	return parseDurationOr(c.CheckTimeout, 2*time.Second)
}

func (c HealthConfig) DBWarnLatencyDuration() time.Duration {
	return parseDurationOr(c.DBWarnLatency, 500*time.Millisecond)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("некорректная длительность %s=%q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("длительность %s должна быть положительной", field)
	}
	return nil
}
