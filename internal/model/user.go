package model

import (
	"time"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// User is a staff account. A user can belong to several clinics.
type User struct {
	Base
	Email               string     `json:"email" db:"email"`
	Name                string     `json:"name" db:"name"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	Phone               *string    `json:"phone,omitempty" db:"phone"`
	Status              string     `json:"status" db:"status"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	MFAEnabled          bool       `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecret           *string    `json:"-" db:"mfa_secret"`
	PreferredLanguage   string     `json:"preferred_language" db:"preferred_language"`
}

// IsLocked reports whether the lockout window is still running at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

type RegisterRequest struct {
	Name              string `json:"name" binding:"required,max=200"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8,max=72"`
	PreferredLanguage string `json:"preferred_language" binding:"omitempty,oneof=en pt-BR es"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"omitempty,len=6,numeric"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

type UpdateProfileRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=200"`
	Phone             *string `json:"phone" binding:"omitempty,max=30"`
	PreferredLanguage *string `json:"preferred_language" binding:"omitempty,oneof=en pt-BR es"`
}

type MFACodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// MFAEnrollment is returned once when a user starts MFA setup.
type MFAEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}
