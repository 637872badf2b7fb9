package models

import (
	"time"

	"gorm.io/gorm"
)

// Role represents the access level of a storefront account
type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// IsStaff reports whether the role may access support/admin surfaces
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSupport
}

// User represents a storefront account
type User struct {
	ID       uint    `gorm:"column:id;primaryKey" json:"id"`
	Username string  `gorm:"column:username;uniqueIndex;size:100;not null" json:"username"`
	Email    string  `gorm:"column:email;uniqueIndex;size:255" json:"email"`
	Password string  `gorm:"column:password;size:255;not null" json:"-"`
	Balance  float64 `gorm:"column:balance;default:0;type:decimal(15,2)" json:"balance"`
	Role     Role    `gorm:"column:role;size:20;default:user" json:"role"`
	Blocked  bool    `gorm:"column:blocked;default:false" json:"blocked"`
	Verified bool    `gorm:"column:verified;default:false" json:"verified"`

	// Linked external identities
	PanelUserID *int    `gorm:"column:panel_user_id" json:"panel_user_id"`
	DiscordID   *string `gorm:"column:discord_id;uniqueIndex" json:"discord_id"`

	// 2FA
	TwoFactorEnabled bool   `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string `gorm:"column:two_factor_secret;size:255" json:"-"`

	// Ticket creation cooldown anchor
	LastTicketAt *time.Time `gorm:"column:last_ticket_at" json:"last_ticket_at"`

	// Optimistic lock counter for balance mutations
	Version int `gorm:"column:version;default:0" json:"-"`

	LastLogin *time.Time     `gorm:"column:last_login" json:"last_login"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// VerificationCode is a single-use emailed code for email verification or
// password reset
type VerificationCode struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Code      string    `gorm:"column:code;size:10;not null" json:"-"`
	Type      string    `gorm:"column:type;size:20;not null" json:"type"` // verify, reset
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	Used      bool      `gorm:"column:used;default:false" json:"used"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

// TempToken bridges the gap between a successful password check and the
// TOTP step of a 2FA login
type TempToken struct {
	Token     string    `gorm:"column:token;primaryKey;size:64" json:"token"`
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (TempToken) TableName() string {
	return "temp_tokens"
}
