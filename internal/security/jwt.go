package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"fund-directory/config"
	"fund-directory/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserContextKey contextKey = "user"

	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"

	maxSubjectLength = 128
)

type Claims struct {
	Family string          `json:"family"`
	Kind   model.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		now:       time.Now,
	}
}

// WithClock : подменяет часы, используется в тестах
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

// IssueAccessToken : подписывает access токен, возвращает момент его истечения
func (s *JWTService) IssueAccessToken(subject, family string, ttl time.Duration) (string, time.Time, error) {
	if err := validateIdentity(subject, family); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: ttl должен быть положительным", model.ErrInvalidSubject)
	}

	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	token, err := s.sign(Claims{
		Family: family,
		Kind:   model.AccessTokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// IssueRefreshToken : jti refresh токена равен id строки в журнале
func (s *JWTService) IssueRefreshToken(subject, family, tokenID string, expiresAt time.Time) (string, error) {
	if err := validateIdentity(subject, family); err != nil {
		return "", err
	}
	if _, err := uuid.Parse(tokenID); err != nil {
		return "", fmt.Errorf("%w: некорректный id токена", model.ErrInvalidSubject)
	}

	return s.sign(Claims{
		Family: family,
		Kind:   model.RefreshTokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

func (s *JWTService) sign(claims Claims) (string, error) {
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := jwtToken.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Verify : сначала проверяется подпись, потом срок действия.
// Возвращает model.ErrTokenInvalid или model.ErrTokenExpired.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if err := validateIdentity(claims.Subject, claims.Family); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}

	return claims, nil
}

func (s *JWTService) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verifyKind(tokenString, model.AccessTokenKind)
}

func (s *JWTService) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := s.verifyKind(tokenString, model.RefreshTokenKind)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: нет jti", model.ErrTokenInvalid)
	}
	return claims, nil
}

// DecodeRefreshIgnoringExpiry : для выхода. Подпись обязательна, срок действия не проверяется.
func (s *JWTService) DecodeRefreshIgnoringExpiry(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if claims.Kind != model.RefreshTokenKind || claims.Issuer != s.issuer {
		return nil, model.ErrTokenInvalid
	}
	if err := validateIdentity(claims.Subject, claims.Family); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}

	return claims, nil
}

func (s *JWTService) verifyKind(tokenString string, kind model.TokenKind) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: ожидался %s токен", model.ErrTokenInvalid, kind)
	}
	return claims, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Header["alg"] != jwt.SigningMethodHS512.Alg() {
		return nil, fmt.Errorf("неверный способ подписи токена: %v", token.Header["alg"])
	}
	return s.secretKey, nil
}

// classifyParseError : истечение срока - штатная ситуация, всё остальное - невалидный токен
func classifyParseError(err error) error {
	invalid := errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) ||
		errors.Is(err, jwt.ErrTokenInvalidIssuer) ||
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
	if !invalid && errors.Is(err, jwt.ErrTokenExpired) {
		return model.ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
}

func validateIdentity(subject, family string) error {
	if subject == "" || len(subject) > maxSubjectLength {
		return model.ErrInvalidSubject
	}
	for _, r := range subject {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return model.ErrInvalidSubject
		}
	}
	if _, err := uuid.Parse(family); err != nil {
		return fmt.Errorf("%w: некорректное семейство токенов", model.ErrInvalidSubject)
	}
	return nil
}

// RevocationChecker : быстрая проверка отзыва семейства по кэшу
type RevocationChecker interface {
	IsAccessRevoked(ctx context.Context, family string) bool
}

func JWTMiddleware(jwtService *JWTService, revocations RevocationChecker) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(handleAuthentication(jwtService, revocations, next))
	}
}

func handleAuthentication(jwtService *JWTService, revocations RevocationChecker, next http.Handler) func(writer http.ResponseWriter, request *http.Request) {
	return func(writer http.ResponseWriter, request *http.Request) {
		token := extractAccessToken(request)
		if token == "" {
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := jwtService.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, model.ErrTokenExpired) {
				log.Debug("access токен просрочен")
			} else {
				log.WithField("remote_addr", request.RemoteAddr).Warnf("невалидный access токен: %v", err)
			}
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}

		if revocations != nil && revocations.IsAccessRevoked(request.Context(), claims.Family) {
			log.WithFields(log.Fields{
				"user_id": claims.Subject,
				"family":  claims.Family,
			}).Info("access токен отозванного семейства")
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}

		req := request.WithContext(context.WithValue(request.Context(), UserContextKey, claims))
		next.ServeHTTP(writer, req)
	}
}

func extractAccessToken(request *http.Request) string {
	authorizationHeader := request.Header.Get("Authorization")
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authorizationHeader, "Bearer "))
	}
	if cookie, err := request.Cookie(AccessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("пользователь не авторизован")
	}
	return claims, nil
}
