package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
)

func newActivityFixture() (*ActivityService, *memHeartbeatRepo, *memRelRepo, *memUserRepo) {
	heartbeatRepo := newMemHeartbeatRepo()
	relRepo := newMemRelRepo()
	userRepo := newMemUserRepo(
		&model.User{ID: "child-1", Role: model.UserRoleChild, IsDevicePaired: true},
	)
	relRepo.Create(context.Background(), model.CreateRelationshipParams{
		ID:           "rel-1",
		ParentUserID: "parent-1",
		ChildUserID:  "child-1",
	})
	svc := NewActivityService(heartbeatRepo, relRepo, userRepo)
	return svc, heartbeatRepo, relRepo, userRepo
}

func TestRecordActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown activity types", func(t *testing.T) {
		svc, _, _, _ := newActivityFixture()

		err := svc.RecordActivity(ctx, "child-1", "rebooted", nil)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("records the liveness row and touches sync state", func(t *testing.T) {
		svc, heartbeatRepo, relRepo, userRepo := newActivityFixture()
		info := json.RawMessage(`{"battery":80}`)

		require.NoError(t, svc.RecordActivity(ctx, "child-1", model.ActivityAppOpened, info))

		rec, err := heartbeatRepo.FindByChildID(ctx, "child-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.ActivityAppOpened, rec.ActivityType)
		assert.True(t, rec.IsActive)

		rel, _ := relRepo.FindByID(ctx, "rel-1")
		require.NotNil(t, rel.LastSyncAt)
		assert.JSONEq(t, `{"battery":80}`, string(rel.ChildDeviceInfo))
		// app_opened is not a heartbeat and must not move the heartbeat clock
		assert.Nil(t, rel.LastHeartbeatAt)

		child, _ := userRepo.FindByID(ctx, "child-1")
		require.NotNil(t, child.LastActiveAt)
	})

	t.Run("heartbeat advances the relationship heartbeat clock and resets the counter", func(t *testing.T) {
		svc, _, relRepo, _ := newActivityFixture()
		relRepo.SetMissedHeartbeats(ctx, "rel-1", 3)

		require.NoError(t, svc.RecordActivity(ctx, "child-1", model.ActivityHeartbeat, nil))

		rel, _ := relRepo.FindByID(ctx, "rel-1")
		require.NotNil(t, rel.LastHeartbeatAt)
		assert.Equal(t, 0, rel.MissedHeartbeats)
		assert.False(t, rel.IsNormalClosure)
	})

	t.Run("app shutdown flags a graceful closure", func(t *testing.T) {
		svc, heartbeatRepo, relRepo, _ := newActivityFixture()
		relRepo.SetMissedHeartbeats(ctx, "rel-1", 2)

		require.NoError(t, svc.RecordActivity(ctx, "child-1", model.ActivityAppShutdown, nil))

		rel, _ := relRepo.FindByID(ctx, "rel-1")
		assert.True(t, rel.IsNormalClosure)
		assert.Equal(t, 0, rel.MissedHeartbeats)

		rec, _ := heartbeatRepo.FindByChildID(ctx, "child-1")
		assert.False(t, rec.IsActive)
	})

	t.Run("a later heartbeat clears the closure flag", func(t *testing.T) {
		svc, _, relRepo, _ := newActivityFixture()

		require.NoError(t, svc.RecordActivity(ctx, "child-1", model.ActivityAppShutdown, nil))
		require.NoError(t, svc.RecordActivity(ctx, "child-1", model.ActivityHeartbeat, nil))

		rel, _ := relRepo.FindByID(ctx, "rel-1")
		assert.False(t, rel.IsNormalClosure)
	})

	t.Run("an older record never regresses stored liveness", func(t *testing.T) {
		_, heartbeatRepo, _, _ := newActivityFixture()
		now := time.Now()

		require.NoError(t, heartbeatRepo.Upsert(ctx, model.UpsertHeartbeatParams{
			ChildUserID:  "child-1",
			RecordedAt:   now,
			ActivityType: model.ActivityHeartbeat,
			IsActive:     true,
		}))
		// Delayed retry from five minutes ago arrives after the fresh one.
		require.NoError(t, heartbeatRepo.Upsert(ctx, model.UpsertHeartbeatParams{
			ChildUserID:  "child-1",
			RecordedAt:   now.Add(-5 * time.Minute),
			ActivityType: model.ActivityAppBackground,
			IsActive:     true,
		}))

		rec, _ := heartbeatRepo.FindByChildID(ctx, "child-1")
		assert.Equal(t, model.ActivityHeartbeat, rec.ActivityType)
		assert.True(t, rec.RecordedAt.Equal(now))
	})
}
