package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/util"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type RefreshTokenRepository struct {
	*config.Database
}

func NewRefreshTokenRepository(database *config.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{database}
}

// Insert : сохраняет первую строку нового семейства.
// Нарушение уникальности (в семействе уже есть текущий токен) даёт model.ErrFamilyExists.
func (r *RefreshTokenRepository) Insert(ctx context.Context, token *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token_family, issued_at, expires_at, user_agent, ip_address)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.DB.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenFamily,
		token.IssuedAt,
		token.ExpiresAt,
		token.UserAgent,
		token.IpAddress,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrFamilyExists
		}
		return util.LogError("ошибка вставки refresh токена в БД", err)
	}

	return nil
}

// FindByID : ищет строку журнала по id. Отсутствие строки - model.ErrTokenNotFound.
func (r *RefreshTokenRepository) FindByID(ctx context.Context, id string) (*model.RefreshToken, error) {
	query := `SELECT id, user_id, token_family, issued_at, expires_at, revoked_at, replaced_by_token_id, user_agent, ip_address
				FROM refresh_tokens WHERE id = $1`

	token := &model.RefreshToken{}
	if err := r.DB.GetContext(ctx, token, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTokenNotFound
		}
		return nil, util.LogError("ошибка при поиске refresh токена", err)
	}

	return token, nil
}

// Rotate : закрывает предъявленный токен и вставляет преемника в одной транзакции.
// Условный UPDATE срабатывает только для текущего токена, поэтому из двух конкурентных
// ротаций одного токена успешна ровно одна, вторая получает model.ErrRotationConflict.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, presentedID string, successor *model.RefreshToken) (err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return util.LogError("не удалось начать транзакцию ротации", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET replaced_by_token_id = $2
			WHERE id = $1 AND replaced_by_token_id IS NULL AND revoked_at IS NULL`,
		presentedID, successor.ID,
	)
	if err != nil {
		return util.LogError("не удалось обновить refresh токен", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return util.LogError("не удалось проверить, обновлён ли токен", err)
	}
	if rowsAffected == 0 {
		return model.ErrRotationConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_family, issued_at, expires_at, user_agent, ip_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		successor.ID,
		successor.UserID,
		successor.TokenFamily,
		successor.IssuedAt,
		successor.ExpiresAt,
		successor.UserAgent,
		successor.IpAddress,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrRotationConflict
		}
		return util.LogError("ошибка вставки нового refresh токена", err)
	}

	if err = tx.Commit(); err != nil {
		return util.LogError("не удалось зафиксировать ротацию", err)
	}

	return nil
}

// RevokeFamily : идемпотентно, уже отозванные строки не трогает
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, family string, at time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE token_family = $1 AND revoked_at IS NULL`
	return r.revoke(ctx, query, family, at)
}

// RevokeAllForUser : возвращает семейства, в которых были отозваны строки
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) ([]string, error) {
	query := `WITH revoked AS (
			UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL
			RETURNING token_family
		)
		SELECT DISTINCT token_family FROM revoked`

	families := []string{}
	if err := r.DB.SelectContext(ctx, &families, query, userID, at); err != nil {
		return nil, util.LogError("не удалось отозвать refresh токены пользователя", err)
	}
	return families, nil
}

func (r *RefreshTokenRepository) revoke(ctx context.Context, query, arg string, at time.Time) (int64, error) {
	result, err := r.DB.ExecContext(ctx, query, arg, at)
	if err != nil {
		return 0, util.LogError("не удалось отозвать refresh токены", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число отозванных токенов", err)
	}

	return rowsAffected, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

