package model

import "time"

// Notification type constants
const (
	NotifTypeBirthday = "birthday"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	FamilyID   int64     `json:"family_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
