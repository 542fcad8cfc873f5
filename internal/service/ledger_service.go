package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fund-directory/internal/model"
	"fund-directory/internal/ports"
	"fund-directory/internal/util"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// LedgerService : журнал refresh-токенов, источник истины для ротации и обнаружения кражи
type LedgerService struct {
	store      ports.RefreshTokenStore
	refreshTTL time.Duration
	now        func() time.Time
	log        *log.Entry
}

func NewLedgerService(store ports.RefreshTokenStore, refreshTTL time.Duration) *LedgerService {
	return &LedgerService{
		store:      store,
		refreshTTL: refreshTTL,
		now:        time.Now,
		log:        util.Component("ledger"),
	}
}

func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// RecordIssuance : первая строка нового семейства, только для входа
func (s *LedgerService) RecordIssuance(ctx context.Context, userID, family string, client model.ClientInfo) (*model.RefreshToken, error) {
	if userID == "" {
		return nil, model.ErrInvalidSubject
	}
	if _, err := uuid.Parse(family); err != nil {
		return nil, fmt.Errorf("%w: некорректное семейство токенов", model.ErrInvalidSubject)
	}

	token := s.newToken(userID, family, client)
	if err := s.store.Insert(ctx, token); err != nil {
		if errors.Is(err, model.ErrFamilyExists) {
			return nil, err
		}
		return nil, unavailable(err)
	}

	return token, nil
}

// Rotate : порядок проверок важен. Повторное использование проверяется до срока действия,
// чтобы украденный и уже заменённый токен убивал семейство даже после истечения.
func (s *LedgerService) Rotate(ctx context.Context, presentedID string, client model.ClientInfo) (*model.RefreshToken, error) {
	if _, err := uuid.Parse(presentedID); err != nil {
		return nil, model.ErrTokenNotFound
	}

	presented, err := s.store.FindByID(ctx, presentedID)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			return nil, err
		}
		return nil, unavailable(err)
	}

	if !presented.IsCurrent() {
		return nil, s.reuse(ctx, presented)
	}

	if presented.IsExpiredAt(s.now()) {
		return nil, model.ErrRefreshExpired
	}

	successor := s.newToken(presented.UserID, presented.TokenFamily, client)
	if err := s.store.Rotate(ctx, presented.ID, successor); err != nil {
		if errors.Is(err, model.ErrRotationConflict) {
			return nil, s.reuse(ctx, presented)
		}
		return nil, unavailable(err)
	}

	return successor, nil
}

// RevokeFamily : идемпотентно, возвращает число отозванных строк
func (s *LedgerService) RevokeFamily(ctx context.Context, family string) (int64, error) {
	revoked, err := s.store.RevokeFamily(ctx, family, s.now().UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	return revoked, nil
}

func (s *LedgerService) RevokeAllForUser(ctx context.Context, userID string) ([]string, error) {
	families, err := s.store.RevokeAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, unavailable(err)
	}
	return families, nil
}

// reuse : повторное предъявление отозванного или заменённого токена убивает всё семейство
func (s *LedgerService) reuse(ctx context.Context, presented *model.RefreshToken) error {
	reuseErr := &model.ReuseError{
		TokenID:     presented.ID,
		TokenFamily: presented.TokenFamily,
		UserID:      presented.UserID,
	}

	revoked, err := s.RevokeFamily(ctx, presented.TokenFamily)
	if err != nil {
		return fmt.Errorf("%w (семейство не отозвано: %w)", reuseErr, err)
	}

	s.log.WithFields(log.Fields{
		"family":  presented.TokenFamily,
		"user_id": presented.UserID,
		"revoked": revoked,
	}).Warn("семейство refresh токенов отозвано")

	return reuseErr
}

func (s *LedgerService) newToken(userID, family string, client model.ClientInfo) *model.RefreshToken {
	now := s.now().UTC()
	return &model.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenFamily: family,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.refreshTTL),
		UserAgent:   client.UserAgent,
		IpAddress:   client.IpAddress,
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrLedgerUnavailable, err)
}
