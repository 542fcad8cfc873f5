package model

import "time"

type SessionEventType string

const (
	EventLogin         SessionEventType = "login"
	EventRefresh       SessionEventType = "refresh"
	EventLogout        SessionEventType = "logout"
	EventLogoutAll     SessionEventType = "logout_all"
	EventReuseDetected SessionEventType = "reuse_detected"
)

// SessionEvent : событие жизненного цикла сессии для внешних подписчиков
type SessionEvent struct {
	ID          string           `json:"id"`
	Type        SessionEventType `json:"type"`
	UserID      string           `json:"user_id,omitempty"`
	TokenFamily string           `json:"token_family,omitempty"`
	TokenID     string           `json:"token_id,omitempty"`
	IpAddress   string           `json:"ip_address,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
	Revoked     int64            `json:"revoked,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
