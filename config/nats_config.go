package config

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NewNATSConnection : пустой URL - события сессии никуда не публикуются, возвращается nil.
// Сервер может быть недоступен при старте, клиент переподключится сам.
func NewNATSConnection(cfg *NATSConfig) (*nats.Conn, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("fund-directory"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("соединение с NATS потеряно: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("переподключение к NATS: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к NATS: %w", err)
	}

	log.Infof("NATS: %s", cfg.URL)
	return conn, nil
}
