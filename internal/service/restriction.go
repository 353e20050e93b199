package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

const dateLayout = "2006-01-02"

// RestrictionService owns parent-set app restrictions and mirrors every
// change into the device cache so the child side can enforce offline.
type RestrictionService struct {
	restrictionRepo repository.RestrictionRepository
	userRepo        repository.UserRepository
	cache           DeviceCache
	notifier        Notifier
}

func NewRestrictionService(
	restrictionRepo repository.RestrictionRepository,
	userRepo repository.UserRepository,
	cache DeviceCache,
	notifier Notifier,
) *RestrictionService {
	return &RestrictionService{
		restrictionRepo: restrictionRepo,
		userRepo:        userRepo,
		cache:           cache,
		notifier:        notifier,
	}
}

func (s *RestrictionService) SetAppLimit(ctx context.Context, parent *model.User, bundleID string, seconds int) (*model.AppRestriction, error) {
	if bundleID == "" {
		return nil, apperrors.MissingRequired("bundleId")
	}
	if seconds < 0 {
		return nil, apperrors.InvalidInput("seconds", "must be non-negative")
	}

	restriction, err := s.restrictionRepo.Find(ctx, parent.ID, bundleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if restriction == nil {
		restriction, err = s.restrictionRepo.Upsert(ctx, model.UpsertRestrictionParams{
			ParentID:      parent.ID,
			BundleID:      bundleID,
			TimeLimit:     seconds,
			LastResetDate: localDate(time.Now(), parent.Location()),
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
	} else {
		restriction.TimeLimit = seconds
		if err := s.restrictionRepo.Save(ctx, restriction); err != nil {
			return nil, apperrors.Database(err)
		}
	}

	s.pushToCache(ctx, restriction)
	return restriction, nil
}

func (s *RestrictionService) DisableApp(ctx context.Context, parent *model.User, bundleID string) (*model.AppRestriction, error) {
	restriction, err := s.restrictionRepo.Find(ctx, parent.ID, bundleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if restriction == nil {
		// Disabling an unknown app creates a disable-only record.
		restriction, err = s.restrictionRepo.Upsert(ctx, model.UpsertRestrictionParams{
			ParentID:      parent.ID,
			BundleID:      bundleID,
			IsDisabled:    true,
			LastResetDate: localDate(time.Now(), parent.Location()),
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
	} else {
		restriction.IsDisabled = true
		if err := s.restrictionRepo.Save(ctx, restriction); err != nil {
			return nil, apperrors.Database(err)
		}
	}

	s.pushToCache(ctx, restriction)
	return restriction, nil
}

func (s *RestrictionService) EnableApp(ctx context.Context, parent *model.User, bundleID string) (*model.AppRestriction, error) {
	restriction, err := s.restrictionRepo.Find(ctx, parent.ID, bundleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if restriction == nil {
		return nil, apperrors.NotFound("Restriction")
	}

	restriction.IsDisabled = false
	if err := s.restrictionRepo.Save(ctx, restriction); err != nil {
		return nil, apperrors.Database(err)
	}

	s.pushToCache(ctx, restriction)
	return restriction, nil
}

func (s *RestrictionService) RemoveApp(ctx context.Context, parent *model.User, bundleID string) error {
	restriction, err := s.restrictionRepo.Find(ctx, parent.ID, bundleID)
	if err != nil {
		return apperrors.Database(err)
	}
	if restriction == nil {
		return apperrors.NotFound("Restriction")
	}

	if err := s.restrictionRepo.Delete(ctx, parent.ID, bundleID); err != nil {
		return apperrors.Database(err)
	}

	if err := s.cache.RemoveRestriction(ctx, parent.ID, bundleID); err != nil {
		log.Warn().Err(err).Str("bundleId", bundleID).Msg("failed to remove restriction from device cache")
	}
	return nil
}

func (s *RestrictionService) ListRestrictions(ctx context.Context, parentID string) ([]model.AppRestriction, error) {
	return s.restrictionRepo.ListByParent(ctx, parentID)
}

// RecordUsage adds elapsed seconds to the day's running total, resetting
// first when the calendar day has rolled over in the reporter's local
// timezone. Crossing a positive limit disables the app and emits the
// limit-exceeded notification exactly once per crossing: the increment
// and the disable flip are both guarded writes, so concurrent reports
// never lose an increment or double-notify.
func (s *RestrictionService) RecordUsage(ctx context.Context, reporter *model.User, parentID, bundleID string, elapsed int) (*model.AppRestriction, error) {
	if elapsed < 0 {
		return nil, apperrors.InvalidInput("elapsedSeconds", "must be non-negative")
	}

	today := localDate(time.Now(), reporter.Location())
	restriction, err := s.restrictionRepo.AddUsage(ctx, parentID, bundleID, elapsed, today)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if restriction == nil {
		return nil, apperrors.NotFound("Restriction")
	}

	if !restriction.IsDisabled && restriction.LimitExceeded() {
		flipped, err := s.restrictionRepo.MarkLimitExceeded(ctx, parentID, bundleID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if flipped != nil {
			restriction = flipped
			s.emitLimitExceeded(ctx, restriction)
		} else {
			// A concurrent report won the flip and already notified.
			restriction.IsDisabled = true
		}
	}

	s.pushToCache(ctx, restriction)
	return restriction, nil
}

func (s *RestrictionService) emitLimitExceeded(ctx context.Context, r *model.AppRestriction) {
	err := s.notifier.Notify(ctx, model.Notification{
		RecipientID: r.ParentID,
		Type:        model.NotificationLimitExceeded,
		Title:       "Time limit reached",
		Message:     fmt.Sprintf("%s has reached its daily time limit and has been disabled.", r.BundleID),
		Data: notificationData(map[string]any{
			"bundleId":          r.BundleID,
			"timeLimitSeconds":  r.TimeLimit,
			"dailyUsageSeconds": r.DailyUsage,
		}),
	})
	if err != nil {
		log.Error().Err(err).Str("bundleId", r.BundleID).Msg("failed to emit limit-exceeded notification")
	}
}

// Cache pushes are eventually consistent: a failed push is logged and
// superseded by the next write rather than failing the request.
func (s *RestrictionService) pushToCache(ctx context.Context, r *model.AppRestriction) {
	if err := s.cache.PushRestriction(ctx, r); err != nil {
		log.Warn().Err(err).
			Str("parentId", r.ParentID).
			Str("bundleId", r.BundleID).
			Msg("failed to push restriction to device cache")
	}
}

func localDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}
