package ports

import (
	"time"

	"fund-directory/internal/security"
)

type TokenCodec interface {
	IssueAccessToken(subject, family string, ttl time.Duration) (string, time.Time, error)
	IssueRefreshToken(subject, family, tokenID string, expiresAt time.Time) (string, error)
	Verify(token string) (*security.Claims, error)
	VerifyAccess(token string) (*security.Claims, error)
	VerifyRefresh(token string) (*security.Claims, error)
	DecodeRefreshIgnoringExpiry(token string) (*security.Claims, error)
}
