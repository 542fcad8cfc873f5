package handler

import (
	"net/http"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/security"
)

// refreshCookiePath : refresh cookie уходит только на эндпоинты обновления и выхода
const refreshCookiePath = "/api/auth"

type CookieWriter struct {
	secure     bool
	domain     string
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieWriter(cfg *config.CookieConfig, jwtCfg *config.JWTConfig) *CookieWriter {
	return &CookieWriter{
		secure:     cfg.Secure,
		domain:     cfg.Domain,
		sameSite:   cfg.SameSiteMode(),
		accessTTL:  jwtCfg.AccessTTL(),
		refreshTTL: jwtCfg.RefreshTTL(),
	}
}

func (c *CookieWriter) SetSession(w http.ResponseWriter, tokens *model.SessionTokens) {
	http.SetCookie(w, c.cookie(security.AccessCookieName, tokens.AccessToken, "/", int(c.accessTTL.Seconds())))
	http.SetCookie(w, c.cookie(security.RefreshCookieName, tokens.RefreshToken, refreshCookiePath, int(c.refreshTTL.Seconds())))
}

// Clear : удаляет обе cookie независимо от результата операции в журнале
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(security.AccessCookieName, "", "/", -1))
	http.SetCookie(w, c.cookie(security.RefreshCookieName, "", refreshCookiePath, -1))
}

func (c *CookieWriter) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.domain,
		MaxAge:   maxAge,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: c.sameSite,
	}
}
