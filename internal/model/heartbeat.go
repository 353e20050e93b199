package model

import (
	"encoding/json"
	"time"
)

// HeartbeatRecord is the single last-write-wins liveness row per child.
type HeartbeatRecord struct {
	ChildUserID  string          `db:"child_user_id" json:"childUserId"`
	RecordedAt   time.Time       `db:"recorded_at" json:"recordedAt"`
	ActivityType ActivityType    `db:"activity_type" json:"activityType"`
	DeviceInfo   json.RawMessage `db:"device_info" json:"deviceInfo,omitempty"`
	IsActive     bool            `db:"is_active" json:"isActive"`
}

type UpsertHeartbeatParams struct {
	ChildUserID  string
	RecordedAt   time.Time
	ActivityType ActivityType
	DeviceInfo   json.RawMessage
	IsActive     bool
}
