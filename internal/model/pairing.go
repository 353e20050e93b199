package model

import "time"

type PairingCode struct {
	Code        string    `db:"code" json:"code"`
	ChildUserID string    `db:"child_user_id" json:"childUserId"`
	ChildName   string    `db:"child_name" json:"childName"`
	DeviceName  string    `db:"device_name" json:"deviceName"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt   time.Time `db:"expires_at" json:"expiresAt"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	IsExpired   bool      `db:"is_expired" json:"isExpired"`
}

type CreatePairingCodeParams struct {
	Code        string
	ChildUserID string
	ChildName   string
	DeviceName  string
	ExpiresAt   time.Time
}
