package model

import "time"

type UserStatus string

const (
	UserStatusPendingApproval UserStatus = "PENDING_APPROVAL"
	UserStatusActive          UserStatus = "ACTIVE"
	UserStatusSuspended       UserStatus = "SUSPENDED"
)

// User : пользователь принадлежит процессам регистрации, здесь только читается
type User struct {
	UUID                   string     `db:"uuid" json:"uuid"`
	Email                  string     `db:"email" json:"email"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	Role                   string     `db:"role" json:"role"`
	Status                 UserStatus `db:"status" json:"status"`
	EmailVerificationToken *string    `db:"email_verification_token" json:"-"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
}
