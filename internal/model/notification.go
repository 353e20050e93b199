package model

import (
	"encoding/json"
	"time"
)

// Notification is the event shape handed to the delivery boundary.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Data        json.RawMessage  `db:"data" json:"data,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}
