package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

// ActivityService is the only writer of liveness fields. The sweeps in
// internal/jobs read them but never touch the heartbeat timestamps.
type ActivityService struct {
	heartbeatRepo repository.HeartbeatRepository
	relRepo       repository.RelationshipRepository
	userRepo      repository.UserRepository
}

func NewActivityService(
	heartbeatRepo repository.HeartbeatRepository,
	relRepo repository.RelationshipRepository,
	userRepo repository.UserRepository,
) *ActivityService {
	return &ActivityService{
		heartbeatRepo: heartbeatRepo,
		relRepo:       relRepo,
		userRepo:      userRepo,
	}
}

// RecordActivity upserts the child's liveness record and fans the signal
// out to every active relationship. Updates are last-write-wins on
// timestamp: a delayed retry carrying an older timestamp never regresses
// stored state.
func (s *ActivityService) RecordActivity(ctx context.Context, childUserID string, activityType model.ActivityType, deviceInfo json.RawMessage) error {
	if !activityType.Valid() {
		return apperrors.InvalidInput("activityType", fmt.Sprintf("unknown type %q", activityType))
	}

	now := time.Now()

	if err := s.heartbeatRepo.Upsert(ctx, model.UpsertHeartbeatParams{
		ChildUserID:  childUserID,
		RecordedAt:   now,
		ActivityType: activityType,
		DeviceInfo:   deviceInfo,
		IsActive:     activityType != model.ActivityAppShutdown && activityType != model.ActivityMonitoringStopped,
	}); err != nil {
		return apperrors.Database(err)
	}

	if err := s.userRepo.TouchLastActive(ctx, childUserID, now); err != nil {
		return apperrors.Database(err)
	}

	if err := s.relRepo.TouchSync(ctx, childUserID, now, deviceInfo); err != nil {
		return apperrors.Database(err)
	}

	switch activityType {
	case model.ActivityHeartbeat:
		if err := s.relRepo.RecordHeartbeat(ctx, childUserID, now); err != nil {
			return apperrors.Database(err)
		}
	case model.ActivityAppShutdown:
		// Graceful exit: reset the missed counter so a deliberately
		// closed app is not escalated as a failure.
		if err := s.relRepo.RecordShutdown(ctx, childUserID); err != nil {
			return apperrors.Database(err)
		}
	}

	log.Debug().
		Str("childUserId", childUserID).
		Str("activityType", string(activityType)).
		Msg("activity recorded")

	return nil
}

func (s *ActivityService) LastHeartbeat(ctx context.Context, childUserID string) (*model.HeartbeatRecord, error) {
	return s.heartbeatRepo.FindByChildID(ctx, childUserID)
}
