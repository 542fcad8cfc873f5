package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/ports"
	"fund-directory/internal/util"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const revokedFamilyKeyPrefix = "session:revoked_family:"

// SessionService : вход, обновление и выход. Токены выпускает кодек, строки ведёт журнал.
type SessionService struct {
	codec  ports.TokenCodec
	ledger ports.TokenLedger
	cache  ports.CacheRepository
	events ports.SessionEventSink

	accessTTL        time.Duration
	revokeAllOnReuse bool

	now func() time.Time
	log *log.Entry
}

func NewSessionService(
	codec ports.TokenCodec,
	ledger ports.TokenLedger,
	cache ports.CacheRepository,
	events ports.SessionEventSink,
	jwtCfg *config.JWTConfig,
	sessionCfg *config.SessionConfig,
) *SessionService {
	return &SessionService{
		codec:            codec,
		ledger:           ledger,
		cache:            cache,
		events:           events,
		accessTTL:        jwtCfg.AccessTTL(),
		revokeAllOnReuse: sessionCfg.RevokeAllOnReuse,
		now:              time.Now,
		log:              util.Component("session"),
	}
}

func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Login : новое семейство создаётся только здесь
func (s *SessionService) Login(ctx context.Context, userID string, client model.ClientInfo) (*model.SessionTokens, error) {
	family := uuid.NewString()

	accessToken, accessExpiresAt, err := s.codec.IssueAccessToken(userID, family, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска access токена: %w", err)
	}

	row, err := s.ledger.RecordIssuance(ctx, userID, family, client)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи refresh токена: %w", err)
	}

	refreshToken, err := s.codec.IssueRefreshToken(row.UserID, row.TokenFamily, row.ID, row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска refresh токена: %w", err)
	}

	s.publish(ctx, model.SessionEvent{
		Type:        model.EventLogin,
		UserID:      userID,
		TokenFamily: family,
		TokenID:     row.ID,
		IpAddress:   client.IpAddress,
		UserAgent:   client.UserAgent,
	})

	return &model.SessionTokens{
		UserID:           userID,
		TokenFamily:      family,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// Refresh : проверка подписи и срока, затем ротация в журнале.
// При повторном использовании токены не выдаются, возвращается model.ErrTokenReused.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, client model.ClientInfo) (*model.SessionTokens, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	row, err := s.ledger.Rotate(ctx, claims.ID, client)
	if err != nil {
		var reuseErr *model.ReuseError
		if errors.As(err, &reuseErr) {
			s.onReuse(ctx, reuseErr, client)
		}
		return nil, err
	}

	if row.UserID != claims.Subject || row.TokenFamily != claims.Family {
		s.log.WithFields(log.Fields{
			"token_id": claims.ID,
			"family":   claims.Family,
		}).Error("claims refresh токена не совпадают со строкой журнала")
		return nil, model.ErrTokenInvalid
	}

	accessToken, accessExpiresAt, err := s.codec.IssueAccessToken(row.UserID, row.TokenFamily, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска access токена: %w", err)
	}
	newRefreshToken, err := s.codec.IssueRefreshToken(row.UserID, row.TokenFamily, row.ID, row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска refresh токена: %w", err)
	}

	s.publish(ctx, model.SessionEvent{
		Type:        model.EventRefresh,
		UserID:      row.UserID,
		TokenFamily: row.TokenFamily,
		TokenID:     row.ID,
		IpAddress:   client.IpAddress,
		UserAgent:   client.UserAgent,
	})

	return &model.SessionTokens{
		UserID:           row.UserID,
		TokenFamily:      row.TokenFamily,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     newRefreshToken,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// Logout : никогда не возвращает ошибку. Просроченный токен тоже отзывает семейство,
// нечитаемый токен отзывать нечего.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.codec.DecodeRefreshIgnoringExpiry(refreshToken)
	if err != nil {
		s.log.Debugf("выход без валидного refresh токена: %v", err)
		return
	}

	revoked, err := s.ledger.RevokeFamily(ctx, claims.Family)
	if err != nil {
		s.log.WithField("family", claims.Family).Warnf("не удалось отозвать семейство при выходе: %v", err)
	}
	s.markFamilyRevoked(ctx, claims.Family)

	s.publish(ctx, model.SessionEvent{
		Type:        model.EventLogout,
		UserID:      claims.Subject,
		TokenFamily: claims.Family,
		TokenID:     claims.ID,
		Revoked:     revoked,
	})
}

// LogoutEverywhere : отзывает все семейства пользователя, возвращает их число
func (s *SessionService) LogoutEverywhere(ctx context.Context, userID string) (int64, error) {
	families, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.markFamiliesRevoked(ctx, families)
	revoked := int64(len(families))

	s.publish(ctx, model.SessionEvent{
		Type:    model.EventLogoutAll,
		UserID:  userID,
		Revoked: revoked,
	})

	return revoked, nil
}

// IsAccessRevoked : без кэша всегда false, access токен живёт до своего exp.
// Новый вход создаёт новое семейство, поэтому отзыв старых семейств его не задевает.
func (s *SessionService) IsAccessRevoked(ctx context.Context, family string) bool {
	return s.cache.Exists(ctx, revokedFamilyKeyPrefix+family)
}

func (s *SessionService) onReuse(ctx context.Context, reuseErr *model.ReuseError, client model.ClientInfo) {
	s.log.WithFields(log.Fields{
		"event":      "refresh_token_reuse",
		"user_id":    reuseErr.UserID,
		"family":     reuseErr.TokenFamily,
		"token_id":   reuseErr.TokenID,
		"ip_address": client.IpAddress,
		"user_agent": client.UserAgent,
	}).Error("повторное использование refresh токена, семейство отозвано")

	s.markFamilyRevoked(ctx, reuseErr.TokenFamily)

	var revoked int64
	if s.revokeAllOnReuse {
		families, err := s.ledger.RevokeAllForUser(ctx, reuseErr.UserID)
		if err != nil {
			s.log.WithField("user_id", reuseErr.UserID).Errorf("не удалось отозвать все сессии пользователя: %v", err)
		} else {
			s.markFamiliesRevoked(ctx, families)
			revoked = int64(len(families))
		}
	}

	s.publish(ctx, model.SessionEvent{
		Type:        model.EventReuseDetected,
		UserID:      reuseErr.UserID,
		TokenFamily: reuseErr.TokenFamily,
		TokenID:     reuseErr.TokenID,
		IpAddress:   client.IpAddress,
		UserAgent:   client.UserAgent,
		Revoked:     revoked,
	})
}

func (s *SessionService) markFamilyRevoked(ctx context.Context, family string) {
	if !s.cache.Set(ctx, revokedFamilyKeyPrefix+family, true, s.accessTTL) {
		s.log.WithField("family", family).Debug("отзыв семейства не записан в кэш")
	}
}

func (s *SessionService) markFamiliesRevoked(ctx context.Context, families []string) {
	for _, family := range families {
		s.markFamilyRevoked(ctx, family)
	}
}

func (s *SessionService) publish(ctx context.Context, event model.SessionEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()

	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithField("event_type", event.Type).Warnf("не удалось опубликовать событие сессии: %v", err)
	}
}
