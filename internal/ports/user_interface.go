package ports

import (
	"context"

	"fund-directory/internal/model"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type UserVerifier interface {
	Verify(ctx context.Context, email, password string) (*model.User, error)
}
