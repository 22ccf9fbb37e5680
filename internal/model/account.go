package model

import "time"

const (
	UserTypeAdmin  = "admin"
	UserTypeMember = "member"
)

// Account is a login linked to at most one family member.
type Account struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	FamilyID       *int64     `json:"family_id,omitempty"`
	MemberID       *int64     `json:"member_id,omitempty"`
	UserType       string     `json:"user_type"`
	IsActive       bool       `json:"is_active"`
	IsFirstLogin   bool       `json:"is_first_login"`
	FailedAttempts int        `json:"failed_attempts"`
	IsBlocked      bool       `json:"is_blocked"`
	BlockedAt      *time.Time `json:"blocked_at,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (a Account) IsAdmin() bool {
	return a.UserType == UserTypeAdmin
}
