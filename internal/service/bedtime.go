package service

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/util"
)

type BedtimeInput struct {
	IsEnabled   bool    `json:"isEnabled"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	EnabledDays []int64 `json:"enabledDays"`
}

type BedtimeService struct {
	bedtimeRepo repository.BedtimeRepository
	userRepo    repository.UserRepository
	cache       DeviceCache
}

func NewBedtimeService(
	bedtimeRepo repository.BedtimeRepository,
	userRepo repository.UserRepository,
	cache DeviceCache,
) *BedtimeService {
	return &BedtimeService{
		bedtimeRepo: bedtimeRepo,
		userRepo:    userRepo,
		cache:       cache,
	}
}

func (s *BedtimeService) SetBedtime(ctx context.Context, user *model.User, input BedtimeInput) (*model.BedtimeSettings, error) {
	// Window bounds are compared as zero-padded strings, so "9:30" must
	// be rejected, not coerced.
	if !util.IsValidClock(input.StartTime) {
		return nil, apperrors.InvalidInput("startTime", "must be HH:mm")
	}
	if !util.IsValidClock(input.EndTime) {
		return nil, apperrors.InvalidInput("endTime", "must be HH:mm")
	}
	for _, d := range input.EnabledDays {
		if d < 0 || d > 6 {
			return nil, apperrors.InvalidInput("enabledDays", "days must be 0 (Sunday) through 6 (Saturday)")
		}
	}

	settings, err := s.bedtimeRepo.Upsert(ctx, &model.BedtimeSettings{
		UserID:      user.ID,
		IsEnabled:   input.IsEnabled,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		EnabledDays: pq.Int64Array(input.EnabledDays),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	activeNow := settings.InWindow(time.Now(), user.Location())
	if err := s.cache.PushBedtime(ctx, settings, activeNow); err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("failed to push bedtime to device cache")
	}

	return settings, nil
}

func (s *BedtimeService) GetBedtime(ctx context.Context, userID string) (*model.BedtimeSettings, error) {
	return s.bedtimeRepo.FindByUserID(ctx, userID)
}

// EvaluateAll derives "is bedtime now" for every enabled schedule and
// re-pushes the disable payload while the window is open. Re-pushing
// identical state is harmless; this never mutates app restrictions.
func (s *BedtimeService) EvaluateAll(ctx context.Context, now time.Time) (int, error) {
	schedules, err := s.bedtimeRepo.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	pushed := 0
	for i := range schedules {
		bt := &schedules[i]

		user, err := s.userRepo.FindByID(ctx, bt.UserID)
		if err != nil {
			log.Error().Err(err).Str("userId", bt.UserID).Msg("bedtime evaluation: load user")
			continue
		}
		if user == nil {
			continue
		}

		if !bt.InWindow(now, user.Location()) {
			continue
		}

		if err := s.cache.PushBedtime(ctx, bt, true); err != nil {
			log.Warn().Err(err).Str("userId", bt.UserID).Msg("bedtime evaluation: push failed")
			continue
		}
		pushed++
	}

	return pushed, nil
}
