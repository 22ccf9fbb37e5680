package model

import "time"

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	Confirmed bool      `json:"confirmed"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IssuedChallenge is an identity challenge handed to a client and awaiting an
// answer.
type IssuedChallenge struct {
	Token      string    `json:"token"`
	AccountID  int64     `json:"account_id"`
	MemberID   int64     `json:"member_id"`
	Options    []int64   `json:"options"`
	CorrectIDs []int64   `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
