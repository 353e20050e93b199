package model

import "time"

type User struct {
	ID              string     `db:"id" json:"id"`
	Role            UserRole   `db:"role" json:"role"`
	DisplayName     string     `db:"display_name" json:"displayName"`
	DeviceName      string     `db:"device_name" json:"deviceName"`
	DeviceTokenHash string     `db:"device_token_hash" json:"-"`
	Timezone        string     `db:"timezone" json:"timezone"`
	IsDevicePaired  bool       `db:"is_device_paired" json:"isDevicePaired"`
	LastActiveAt    *time.Time `db:"last_active_at" json:"lastActiveAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	Role            UserRole
	DisplayName     string
	DeviceName      string
	DeviceTokenHash string
	Timezone        string
}

// Location resolves the user's IANA timezone, falling back to UTC when
// the stored name is empty or unknown.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
