package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/config"
	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

type ReportedApp struct {
	BundleID string `json:"bundleId"`
	AppName  string `json:"appName"`
}

// DetectionService turns app reports from the child-side usage source
// into pending detections the parent resolves to "monitor" or "ignore".
type DetectionService struct {
	detectionRepo   repository.DetectionRepository
	restrictionRepo repository.RestrictionRepository
	cache           DeviceCache
	notifier        Notifier
}

func NewDetectionService(
	detectionRepo repository.DetectionRepository,
	restrictionRepo repository.RestrictionRepository,
	cache DeviceCache,
	notifier Notifier,
) *DetectionService {
	return &DetectionService{
		detectionRepo:   detectionRepo,
		restrictionRepo: restrictionRepo,
		cache:           cache,
		notifier:        notifier,
	}
}

// ReportApps records a detection for every bundle id not already known,
// either through an existing restriction or an open detection. Returns
// the newly created detections.
func (s *DetectionService) ReportApps(ctx context.Context, parentID string, apps []ReportedApp) ([]model.AppDetection, error) {
	var created []model.AppDetection

	for _, app := range apps {
		if app.BundleID == "" {
			continue
		}

		existing, err := s.restrictionRepo.Find(ctx, parentID, app.BundleID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if existing != nil {
			continue
		}

		open, err := s.detectionRepo.HasOpenDetection(ctx, parentID, app.BundleID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if open {
			continue
		}

		detection, err := s.detectionRepo.Create(ctx, model.CreateDetectionParams{
			ID:       uuid.NewString(),
			ParentID: parentID,
			BundleID: app.BundleID,
			AppName:  app.AppName,
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		created = append(created, *detection)

		s.emitNewAppDetected(ctx, detection)
	}

	return created, nil
}

// ResolveDetection closes a pending detection. "monitor" spawns a
// restriction with the default time cap and mirrors it to the device;
// "ignore" just closes the record. Either way the detection is terminal.
func (s *DetectionService) ResolveDetection(ctx context.Context, parentID, detectionID string, resolution model.DetectionResolution) (*model.AppDetection, error) {
	if resolution != model.DetectionMonitored && resolution != model.DetectionIgnored {
		return nil, apperrors.InvalidInput("resolution", "must be monitored or ignored")
	}

	detection, err := s.detectionRepo.FindByID(ctx, detectionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if detection == nil || detection.ParentID != parentID {
		return nil, apperrors.NotFound("Detection")
	}
	if detection.IsProcessed {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Detection already resolved")
	}

	if resolution == model.DetectionMonitored {
		restriction, err := s.restrictionRepo.Upsert(ctx, model.UpsertRestrictionParams{
			ParentID:      parentID,
			BundleID:      detection.BundleID,
			TimeLimit:     int(config.DefaultAppTimeLimit.Seconds()),
			LastResetDate: time.Now().UTC().Format(dateLayout),
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if err := s.cache.PushRestriction(ctx, restriction); err != nil {
			log.Warn().Err(err).Str("bundleId", detection.BundleID).Msg("failed to push new restriction to device cache")
		}
	}

	resolved, err := s.detectionRepo.Resolve(ctx, detectionID, resolution)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !resolved {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Detection already resolved")
	}

	detection.IsProcessed = true
	detection.Resolution = &resolution
	return detection, nil
}

func (s *DetectionService) ListPending(ctx context.Context, parentID string) ([]model.AppDetection, error) {
	return s.detectionRepo.ListUnprocessedByParent(ctx, parentID)
}

func (s *DetectionService) emitNewAppDetected(ctx context.Context, d *model.AppDetection) {
	err := s.notifier.Notify(ctx, model.Notification{
		RecipientID: d.ParentID,
		Type:        model.NotificationNewAppDetected,
		Title:       "New app detected",
		Message:     fmt.Sprintf("%s was seen on the device for the first time.", displayName(d)),
		Data: notificationData(map[string]any{
			"detectionId": d.ID,
			"bundleId":    d.BundleID,
			"appName":     d.AppName,
		}),
	})
	if err != nil {
		log.Error().Err(err).Str("bundleId", d.BundleID).Msg("failed to emit new-app notification")
	}
}

func displayName(d *model.AppDetection) string {
	if d.AppName != "" {
		return d.AppName
	}
	return d.BundleID
}
