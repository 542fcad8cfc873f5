package service

import (
	"context"
	"encoding/json"
	"fmt"

	"fund-directory/internal/model"
	"fund-directory/internal/util"

	log "github.com/sirupsen/logrus"
)

// natsPublisher : часть *nats.Conn, нужная для публикации
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSEventPublisher : публикует события сессии в <prefix>.<type>
type NATSEventPublisher struct {
	conn   natsPublisher
	prefix string
	log    *log.Entry
}

func NewNATSEventPublisher(conn natsPublisher, prefix string) *NATSEventPublisher {
	return &NATSEventPublisher{
		conn:   conn,
		prefix: prefix,
		log:    util.Component("nats-publisher"),
	}
}

func (p *NATSEventPublisher) Publish(_ context.Context, event model.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	subject := p.subject(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("ошибка публикации в %s: %w", subject, err)
	}

	p.log.WithField("subject", subject).Debug("событие опубликовано")
	return nil
}

func (p *NATSEventPublisher) subject(eventType model.SessionEventType) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}
