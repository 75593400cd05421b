package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы аккаунта.
const (
	AccountStatusPending   = "pending"
	AccountStatusActive    = "active"
	AccountStatusSuspended = "suspended"
)

// Роли.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Провайдеры входа.
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// Account описывает покупателя или администратора магазина.
type Account struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FullName       string     `db:"full_name" json:"full_name"`
	Email          string     `db:"email" json:"email"`
	PhoneNumber    *string    `db:"phone_number" json:"phone_number,omitempty"`
	Age            *int       `db:"age" json:"age,omitempty"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	ProfileImage   *string    `db:"profile_image" json:"profile_image,omitempty"`
	Status         string     `db:"status" json:"status"`
	Role           string     `db:"role" json:"role"`
	AuthProvider   string     `db:"auth_provider" json:"auth_provider"`
	OTPCode        *string    `db:"otp_code" json:"-"`
	OTPGeneratedAt *time.Time `db:"otp_generated_at" json:"-"`
	OTPExpiresAt   *time.Time `db:"otp_expires_at" json:"-"`
	VerifiedAt     *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	LastLoginAt    *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive сообщает, подтверждён ли аккаунт.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsAdmin сообщает, есть ли у аккаунта права администратора.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
