package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"fund-directory/internal/model"
	"fund-directory/internal/model/requestresponse"
	"fund-directory/internal/ports"
	"fund-directory/internal/security"

	log "github.com/sirupsen/logrus"
)

type AuthenticationHandler struct {
	ports.SessionService
	ports.UserVerifier
	cookies *CookieWriter
}

func NewAuthenticationHandler(
	sessionService ports.SessionService,
	userVerifier ports.UserVerifier,
	cookies *CookieWriter,
) *AuthenticationHandler {
	return &AuthenticationHandler{
		sessionService,
		userVerifier,
		cookies,
	}
}

// Login godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, открывает новую сессию. Токены выставляются в cookies accessToken и refreshToken.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.SessionResponse "Успешный вход"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или поля"
// @Failure 401 {object} requestresponse.ErrorResponse "Неверный логин или пароль"
// @Failure 403 {object} requestresponse.ErrorResponse "Учётная запись не активна"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Журнал токенов недоступен"
// @Router /api/auth/login [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req requestresponse.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.UserVerifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			sendErrorResponse(w, http.StatusUnauthorized, "неверный логин или пароль")
		case errors.Is(err, model.ErrUserNotActive):
			sendErrorResponse(w, http.StatusForbidden, "учётная запись не активна")
		default:
			log.Errorf("ошибка проверки учётных данных: %v", err)
			sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		}
		return
	}

	tokens, err := h.SessionService.Login(ctx, user.UUID, clientInfo(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	h.cookies.SetSession(w, tokens)
	writeJSON(w, http.StatusOK, sessionResponse(tokens))
}

// RefreshToken godoc
// @Summary Обновление токенов
// @Description Ротация refresh токена из cookie refreshToken (или из тела запроса). Повторное использование уже заменённого токена завершает всё семейство сессий.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.RefreshTokenRequest false "Refresh токен, если cookie недоступна"
// @Success 200 {object} requestresponse.SessionResponse "Новая пара токенов в cookies"
// @Failure 401 {object} requestresponse.ErrorResponse "Сессия завершена или токена нет"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Журнал токенов недоступен"
// @Router /api/auth/refresh [post]
func (h *AuthenticationHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFromRequest(r)
	if err != nil {
		log.Debugf("тело запроса на обновление не разобрано: %v", err)
	}
	if refreshToken == "" {
		h.cookies.Clear(w)
		sendErrorResponse(w, http.StatusUnauthorized, sessionEndedMessage)
		return
	}

	tokens, err := h.SessionService.Refresh(r.Context(), refreshToken, clientInfo(r))
	if err != nil {
		if model.IsSessionEnded(err) {
			h.cookies.Clear(w)
		}
		writeSessionError(w, err)
		return
	}

	h.cookies.SetSession(w, tokens)
	writeJSON(w, http.StatusOK, sessionResponse(tokens))
}

// Logout godoc
// @Summary Выход
// @Description Отзывает семейство refresh токена и очищает cookies. Всегда отвечает 200.
// @Tags Authentication
// @Produce json
// @Success 200 {object} requestresponse.LogoutResponse
// @Router /api/auth/logout [post]
func (h *AuthenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFromRequest(r)
	if err != nil {
		log.Debugf("тело запроса на выход не разобрано: %v", err)
	}

	h.SessionService.Logout(r.Context(), refreshToken)
	h.cookies.Clear(w)

	resp := requestresponse.LogoutResponse{}
	resp.Response.LoggedOut = true
	writeJSON(w, http.StatusOK, resp)
}

// LogoutAll godoc
// @Summary Выход на всех устройствах
// @Description Отзывает все семейства refresh токенов текущего пользователя
// @Tags Authentication
// @Produce json
// @Param Authorization header string false "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.LogoutAllResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 503 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/logout-all [post]
func (h *AuthenticationHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	revoked, err := h.SessionService.LogoutEverywhere(r.Context(), claims.Subject)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	h.cookies.Clear(w)

	resp := requestresponse.LogoutAllResponse{}
	resp.Response.LoggedOut = true
	resp.Response.Revoked = revoked
	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentUser godoc
// @Summary Текущий пользователь
// @Description Возвращает UUID пользователя и семейство токенов текущей сессии
// @Tags Authentication
// @Produce json
// @Param Authorization header string false "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.CurrentUserResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/me [get]
func (h *AuthenticationHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := requestresponse.CurrentUserResponse{}
	resp.Response.UserUUID = claims.Subject
	resp.Response.TokenFamily = claims.Family
	if claims.ExpiresAt != nil {
		resp.Response.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentUserHead godoc
// @Summary Текущий пользователь
// @Description Проверка сессии без тела ответа
// @Tags Authentication
// @Param Authorization header string false "Bearer токен" default(Bearer <access_token>)
// @Success 200
// @Failure 401
// @Security ApiKeyAuth
// @Router /api/auth/me [head]
func (h *AuthenticationHandler) GetCurrentUserHead(w http.ResponseWriter, r *http.Request) {
	h.GetCurrentUser(w, r)
}

// refreshTokenFromRequest : cookie в приоритете, тело запроса необязательно
func refreshTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(security.RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	var req requestresponse.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
	return req.RefreshToken, nil
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case model.IsSessionEnded(err):
		log.Debugf("сессия завершена: %v", err)
		sendErrorResponse(w, http.StatusUnauthorized, sessionEndedMessage)
	case errors.Is(err, model.ErrLedgerUnavailable):
		log.Errorf("журнал токенов недоступен: %v", err)
		sendErrorResponse(w, http.StatusServiceUnavailable, "сервис временно недоступен")
	case errors.Is(err, model.ErrInvalidSubject):
		sendErrorResponse(w, http.StatusBadRequest, "некорректный идентификатор пользователя")
	default:
		log.Errorf("ошибка сессии: %v", err)
		sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}

func sessionResponse(tokens *model.SessionTokens) requestresponse.SessionResponse {
	resp := requestresponse.SessionResponse{}
	resp.Response.UserUUID = tokens.UserID
	resp.Response.AccessExpiresAt = tokens.AccessExpiresAt.UTC().Format(time.RFC3339)
	resp.Response.RefreshExpiresAt = tokens.RefreshExpiresAt.UTC().Format(time.RFC3339)
	return resp
}
