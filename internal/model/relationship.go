package model

import (
	"encoding/json"
	"time"
)

type Relationship struct {
	ID               string          `db:"id" json:"id"`
	ParentUserID     string          `db:"parent_user_id" json:"parentUserId"`
	ChildUserID      string          `db:"child_user_id" json:"childUserId"`
	ChildName        string          `db:"child_name" json:"childName"`
	DeviceName       string          `db:"device_name" json:"deviceName"`
	PairingCode      string          `db:"pairing_code" json:"pairingCode"`
	IsActive         bool            `db:"is_active" json:"isActive"`
	LastSyncAt       *time.Time      `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	LastHeartbeatAt  *time.Time      `db:"last_heartbeat_at" json:"lastHeartbeatAt,omitempty"`
	MissedHeartbeats int             `db:"missed_heartbeats" json:"missedHeartbeats"`
	IsNormalClosure  bool            `db:"is_normal_closure" json:"isNormalClosure"`
	ChildDeviceInfo  json.RawMessage `db:"child_device_info" json:"childDeviceInfo,omitempty"`
	UnlinkedAt       *time.Time      `db:"unlinked_at" json:"unlinkedAt,omitempty"`
	UnlinkedBy       *string         `db:"unlinked_by" json:"unlinkedBy,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}

type CreateRelationshipParams struct {
	ID           string
	ParentUserID string
	ChildUserID  string
	ChildName    string
	DeviceName   string
	PairingCode  string
}

// IsParty reports whether userID is one of the two sides of the link.
func (r *Relationship) IsParty(userID string) bool {
	return userID == r.ParentUserID || userID == r.ChildUserID
}
