package repository

import (
	"context"
	"database/sql"
	"errors"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/util"

	"github.com/jmoiron/sqlx"
)

// UserRepository : таблица users принадлежит регистрации, здесь только чтение
type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// FindByEmail : ищет пользователя по email. Отсутствие пользователя - model.ErrInvalidCredentials.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT uuid, email, password_hash, role, status, email_verification_token, created_at
				FROM users WHERE lower(email) = lower($1)`
	var user model.User
	err := sqlx.GetContext(ctx, r.DB, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, util.LogError("[UserRepo] не удалось найти пользователя по email", err)
	}
	return &user, nil
}
