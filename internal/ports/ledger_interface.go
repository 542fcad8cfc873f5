package ports

import (
	"context"
	"time"

	"fund-directory/internal/model"
)

// RefreshTokenStore : хранилище строк refresh_tokens.
// Rotate обязан быть атомарным: закрыть старую строку и вставить новую одной единицей,
// проигравший гонку получает model.ErrRotationConflict.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token *model.RefreshToken) error
	FindByID(ctx context.Context, id string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, presentedID string, successor *model.RefreshToken) error
	RevokeFamily(ctx context.Context, family string, at time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) ([]string, error)
}

type TokenLedger interface {
	RecordIssuance(ctx context.Context, userID, family string, client model.ClientInfo) (*model.RefreshToken, error)
	Rotate(ctx context.Context, presentedID string, client model.ClientInfo) (*model.RefreshToken, error)
	RevokeFamily(ctx context.Context, family string) (int64, error)
	// RevokeAllForUser : возвращает отозванные семейства
	RevokeAllForUser(ctx context.Context, userID string) ([]string, error)
}
