package model

import "time"

// AppDetection records an app bundle seen on the child device that the
// parent has not yet decided to monitor or ignore.
type AppDetection struct {
	ID          string               `db:"id" json:"id"`
	ParentID    string               `db:"parent_id" json:"parentId"`
	BundleID    string               `db:"bundle_id" json:"bundleId"`
	AppName     string               `db:"app_name" json:"appName"`
	DetectedAt  time.Time            `db:"detected_at" json:"detectedAt"`
	IsProcessed bool                 `db:"is_processed" json:"isProcessed"`
	Resolution  *DetectionResolution `db:"resolution" json:"resolution,omitempty"`
}

type CreateDetectionParams struct {
	ID       string
	ParentID string
	BundleID string
	AppName  string
}
