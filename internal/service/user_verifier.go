package service

import (
	"context"
	"errors"
	"strings"

	"fund-directory/internal/model"
	"fund-directory/internal/ports"
	"fund-directory/internal/security"
)

// dummyHash : сравнение для несуществующего email занимает столько же, сколько для существующего
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZvRZf0n0s1w8o1nY0l6jK."

type UserVerifier struct {
	userRepository ports.UserRepository
}

func NewUserVerifier(userRepository ports.UserRepository) *UserVerifier {
	return &UserVerifier{userRepository: userRepository}
}

// Verify : проверяет email и пароль, вход разрешён только активным пользователям
func (v *UserVerifier) Verify(ctx context.Context, email, password string) (*model.User, error) {
	user, err := v.userRepository.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			security.CheckPassword(password, dummyHash)
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, model.ErrInvalidCredentials
	}

	if user.Status != model.UserStatusActive {
		return nil, model.ErrUserNotActive
	}

	return user, nil
}
