package requestresponse

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// LoginRequest : тело запроса на аутентификацию
type LoginRequest struct {
	Email    string `json:"email" example:"analyst@fund.example"`
	Password string `json:"password" example:"P@ssw0rd123"`
}

func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), validation.Match(emailRegex).Error("некорректный email")),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
	)
}

// SessionResponse : ответ на вход и обновление, сами токены передаются в cookies
type SessionResponse struct {
	Response struct {
		UserUUID         string `json:"user_uuid" example:"b6a1e1c4-4b1d-4f1e-8b29-1234567890ab"`
		AccessExpiresAt  string `json:"access_expires_at" example:"2025-08-23T12:49:56Z"`
		RefreshExpiresAt string `json:"refresh_expires_at" example:"2025-08-30T12:34:56Z"`
	} `json:"response"`
}

// RefreshTokenRequest : refresh токен можно передать в теле, если cookie недоступна
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJIUzUxMiIsInR5cCI6IkpXVCJ9..."`
}

// CurrentUserResponse : информация о текущем пользователе
type CurrentUserResponse struct {
	Response struct {
		UserUUID    string `json:"user_uuid" example:"b6a1e1c4-4b1d-4f1e-8b29-1234567890ab"`
		TokenFamily string `json:"token_family" example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
		ExpiresAt   string `json:"expires_at" example:"2025-08-23T12:49:56Z"`
	} `json:"response"`
}

// LogoutResponse : ответ на завершение сессии
type LogoutResponse struct {
	Response struct {
		LoggedOut bool `json:"logged_out" example:"true"`
	} `json:"response"`
}

// LogoutAllResponse : ответ на выход со всех устройств
type LogoutAllResponse struct {
	Response struct {
		LoggedOut bool  `json:"logged_out" example:"true"`
		Revoked   int64 `json:"revoked" example:"3"`
	} `json:"response"`
}

// ErrorDetail : детальная информация об ошибке
type ErrorDetail struct {
	Code int    `json:"code" example:"401"`
	Text string `json:"text" example:"сессия завершена, войдите снова"`
}

// ErrorResponse : стандартная структура ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
