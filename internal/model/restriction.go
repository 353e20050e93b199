package model

import "time"

type AppRestriction struct {
	ParentID      string    `db:"parent_id" json:"parentId"`
	BundleID      string    `db:"bundle_id" json:"bundleId"`
	TimeLimit     int       `db:"time_limit_seconds" json:"timeLimitSeconds"`
	IsDisabled    bool      `db:"is_disabled" json:"isDisabled"`
	DailyUsage    int       `db:"daily_usage_seconds" json:"dailyUsageSeconds"`
	LastResetDate string    `db:"last_reset_date" json:"lastResetDate"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertRestrictionParams struct {
	ParentID      string
	BundleID      string
	TimeLimit     int
	IsDisabled    bool
	LastResetDate string
}

// LimitExceeded reports whether a positive limit has been reached.
// A zero limit means disable-only tracking with no time cap.
func (r *AppRestriction) LimitExceeded() bool {
	return r.TimeLimit > 0 && r.DailyUsage >= r.TimeLimit
}
