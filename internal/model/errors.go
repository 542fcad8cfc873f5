package model

import (
	"errors"
	"fmt"
)

var (
	// кодек
	ErrTokenInvalid   = errors.New("невалидный токен")
	ErrTokenExpired   = errors.New("токен просрочен")
	ErrInvalidSubject = errors.New("некорректный идентификатор субъекта")

	// журнал refresh-токенов
	ErrTokenNotFound     = errors.New("refresh токен не найден")
	ErrTokenReused       = errors.New("повторное использование refresh токена")
	ErrRefreshExpired    = errors.New("refresh токен просрочен")
	ErrFamilyExists      = errors.New("семейство токенов уже существует")
	ErrRotationConflict  = errors.New("токен уже был заменён")
	ErrLedgerUnavailable = errors.New("журнал токенов недоступен")

	// кэш
	ErrCacheNotConfigured = errors.New("кэш не настроен")
	ErrCacheClosed        = errors.New("кэш закрыт")
	ErrCacheProbeInFlight = errors.New("переподключение к кэшу уже выполняется")

	// проверка учётных данных
	ErrInvalidCredentials = errors.New("неверный логин или пароль")
	ErrUserNotActive      = errors.New("пользователь не активен")
)

// ReuseError : несёт семейство и владельца токена, на котором обнаружено повторное использование
type ReuseError struct {
	TokenID     string
	TokenFamily string
	UserID      string
}

func (e *ReuseError) Error() string {
	return fmt.Sprintf("%s: токен %s, семейство %s", ErrTokenReused.Error(), e.TokenID, e.TokenFamily)
}

func (e *ReuseError) Is(target error) bool {
	return target == ErrTokenReused
}

// IsSessionEnded : ошибки, после которых клиент должен войти заново
func IsSessionEnded(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenReused) ||
		errors.Is(err, ErrRefreshExpired)
}
