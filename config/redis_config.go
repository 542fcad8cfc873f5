package config

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
	Policy ReconnectPolicy
}

// ReconnectPolicy : параметры переподключения к кэшу
type ReconnectPolicy struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	ProbeInterval time.Duration
}

func (c *RedisConfig) ReconnectPolicy() ReconnectPolicy {
	attempts := c.MaxReconnectAttempts
	if attempts < 1 {
		attempts = 5
	}
	return ReconnectPolicy{
		MaxAttempts:   attempts,
		BaseBackoff:   parseDurationOr(c.BaseBackoff, 200*time.Millisecond),
		MaxBackoff:    parseDurationOr(c.MaxBackoff, 10*time.Second),
		ProbeInterval: parseDurationOr(c.ProbeInterval, 30*time.Second),
	}
}

// NewRedisClient : создаёт клиента без подключения. Подключение выполняет слой кэша.
// Пустой URL - валидная конфигурация, возвращается nil.
func NewRedisClient(cfg *RedisConfig) (*RedisClient, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, nil
	}

	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("некорректный REDIS_URL: %w", err)
	}

	options.DialTimeout = parseDurationOr(cfg.DialTimeout, time.Second)
	options.ReadTimeout = parseDurationOr(cfg.ReadTimeout, 500*time.Millisecond)
	options.WriteTimeout = parseDurationOr(cfg.WriteTimeout, 500*time.Millisecond)
	// повторы делает сам слой кэша по своей схеме
	options.MaxRetries = -1

	return &RedisClient{
		Client: redis.NewClient(options),
		Policy: cfg.ReconnectPolicy(),
	}, nil
}

func (c *RedisClient) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия соединения с Redis: %w", err)
	}
	return nil
}
