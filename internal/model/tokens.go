package model

import "time"

// RefreshToken : строка журнала refresh-токенов. Строки никогда не удаляются физически.
type RefreshToken struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	TokenFamily       string     `db:"token_family" json:"token_family"`
	IssuedAt          time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt         *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	ReplacedByTokenID *string    `db:"replaced_by_token_id" json:"replaced_by_token_id,omitempty"`
	UserAgent         string     `db:"user_agent" json:"user_agent"`
	IpAddress         string     `db:"ip_address" json:"ip_address"`
}

// IsCurrent : токен не отозван и ещё не заменён при ротации
func (t *RefreshToken) IsCurrent() bool {
	return t.RevokedAt == nil && t.ReplacedByTokenID == nil
}

// IsExpiredAt : в момент истечения токен уже считается просроченным
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ClientInfo : сведения о клиенте для аудита
type ClientInfo struct {
	UserAgent string
	IpAddress string
}

// SessionTokens : пара токенов, которая уходит клиенту в cookies
type SessionTokens struct {
	UserID           string
	TokenFamily      string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenKind : тип токена в claim typ
type TokenKind string

const (
	AccessTokenKind  TokenKind = "access"
	RefreshTokenKind TokenKind = "refresh"
)
