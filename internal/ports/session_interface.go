package ports

import (
	"context"

	"fund-directory/internal/model"
)

type SessionService interface {
	Login(ctx context.Context, userID string, client model.ClientInfo) (*model.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string, client model.ClientInfo) (*model.SessionTokens, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutEverywhere(ctx context.Context, userID string) (int64, error)
	IsAccessRevoked(ctx context.Context, family string) bool
}

// SessionEventSink : получатель событий сессии. Ошибки получателя не влияют на запрос.
type SessionEventSink interface {
	Publish(ctx context.Context, event model.SessionEvent) error
}
