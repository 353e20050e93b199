package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
)

func newDetectionFixture() (*DetectionService, *memDetectionRepo, *memRestrictionRepo, *memCache, *captureNotifier) {
	detectionRepo := newMemDetectionRepo()
	restrictionRepo := newMemRestrictionRepo()
	cache := newMemCache()
	notifier := &captureNotifier{}
	svc := NewDetectionService(detectionRepo, restrictionRepo, cache, notifier)
	return svc, detectionRepo, restrictionRepo, cache, notifier
}

func TestReportApps(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown bundles become pending detections with one notification each", func(t *testing.T) {
		svc, _, _, _, notifier := newDetectionFixture()

		created, err := svc.ReportApps(ctx, "parent-1", []ReportedApp{
			{BundleID: "com.game.blocks", AppName: "Blocks"},
			{BundleID: "com.video.shorts", AppName: "Shorts"},
		})
		require.NoError(t, err)
		assert.Len(t, created, 2)
		assert.Len(t, notifier.byType(model.NotificationNewAppDetected), 2)

		pending, err := svc.ListPending(ctx, "parent-1")
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("already-restricted bundles are skipped", func(t *testing.T) {
		svc, _, restrictionRepo, _, notifier := newDetectionFixture()
		restrictionRepo.Upsert(ctx, model.UpsertRestrictionParams{
			ParentID: "parent-1",
			BundleID: "com.game.blocks",
		})

		created, err := svc.ReportApps(ctx, "parent-1", []ReportedApp{
			{BundleID: "com.game.blocks", AppName: "Blocks"},
		})
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Empty(t, notifier.sent)
	})

	t.Run("repeated reports do not pile up detections", func(t *testing.T) {
		svc, _, _, _, notifier := newDetectionFixture()
		apps := []ReportedApp{{BundleID: "com.game.blocks", AppName: "Blocks"}}

		_, err := svc.ReportApps(ctx, "parent-1", apps)
		require.NoError(t, err)
		created, err := svc.ReportApps(ctx, "parent-1", apps)
		require.NoError(t, err)

		assert.Empty(t, created)
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("empty bundle ids are ignored", func(t *testing.T) {
		svc, _, _, _, _ := newDetectionFixture()

		created, err := svc.ReportApps(ctx, "parent-1", []ReportedApp{{BundleID: "", AppName: "Ghost"}})
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestResolveDetection(t *testing.T) {
	ctx := context.Background()

	report := func(t *testing.T, svc *DetectionService) model.AppDetection {
		t.Helper()
		created, err := svc.ReportApps(ctx, "parent-1", []ReportedApp{
			{BundleID: "com.game.blocks", AppName: "Blocks"},
		})
		require.NoError(t, err)
		require.Len(t, created, 1)
		return created[0]
	}

	t.Run("monitored spawns a restriction with the default cap", func(t *testing.T) {
		svc, _, restrictionRepo, cache, _ := newDetectionFixture()
		detection := report(t, svc)

		resolved, err := svc.ResolveDetection(ctx, "parent-1", detection.ID, model.DetectionMonitored)
		require.NoError(t, err)
		assert.True(t, resolved.IsProcessed)
		assert.Equal(t, model.DetectionMonitored, *resolved.Resolution)

		restriction, _ := restrictionRepo.Find(ctx, "parent-1", "com.game.blocks")
		require.NotNil(t, restriction)
		assert.Equal(t, 7200, restriction.TimeLimit)
		assert.Contains(t, cache.restrictions, restrictionKey{"parent-1", "com.game.blocks"})
	})

	t.Run("ignored closes the detection without a restriction", func(t *testing.T) {
		svc, _, restrictionRepo, _, _ := newDetectionFixture()
		detection := report(t, svc)

		resolved, err := svc.ResolveDetection(ctx, "parent-1", detection.ID, model.DetectionIgnored)
		require.NoError(t, err)
		assert.True(t, resolved.IsProcessed)

		restriction, _ := restrictionRepo.Find(ctx, "parent-1", "com.game.blocks")
		assert.Nil(t, restriction)

		pending, _ := svc.ListPending(ctx, "parent-1")
		assert.Empty(t, pending)
	})

	t.Run("resolution is terminal", func(t *testing.T) {
		svc, _, _, _, _ := newDetectionFixture()
		detection := report(t, svc)

		_, err := svc.ResolveDetection(ctx, "parent-1", detection.ID, model.DetectionIgnored)
		require.NoError(t, err)

		_, err = svc.ResolveDetection(ctx, "parent-1", detection.ID, model.DetectionMonitored)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("another parent's detection is not found", func(t *testing.T) {
		svc, _, _, _, _ := newDetectionFixture()
		detection := report(t, svc)

		_, err := svc.ResolveDetection(ctx, "parent-2", detection.ID, model.DetectionIgnored)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("rejects unknown resolutions", func(t *testing.T) {
		svc, _, _, _, _ := newDetectionFixture()
		detection := report(t, svc)

		_, err := svc.ResolveDetection(ctx, "parent-1", detection.ID, "banished")
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})
}
