package service

import (
	"context"

	"github.com/nestlink/guardian-server-go/internal/model"
)

// DeviceCache is the write side of the redis mirror the child device
// polls for enforcement state.
type DeviceCache interface {
	PushRestriction(ctx context.Context, r *model.AppRestriction) error
	RemoveRestriction(ctx context.Context, parentID, bundleID string) error
	PushBedtime(ctx context.Context, bt *model.BedtimeSettings, activeNow bool) error
	PurgeUser(ctx context.Context, userID string) error
}
