package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/util"
)

const codeGenerateAttempts = 10

var codeFormat = regexp.MustCompile(`^[0-9]{6}$`)

// TxRunner abstracts database.DB.WithTx so the service can be exercised
// against a fake in tests.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type PairResult struct {
	RelationshipID string `json:"relationshipId"`
	ChildName      string `json:"childName"`
	DeviceName     string `json:"deviceName"`
}

type PairingService struct {
	db       TxRunner
	codeRepo repository.PairingCodeRepository
	relRepo  repository.RelationshipRepository
	userRepo repository.UserRepository
	cache    DeviceCache
	notifier Notifier
	codeTTL  time.Duration
}

func NewPairingService(
	db TxRunner,
	codeRepo repository.PairingCodeRepository,
	relRepo repository.RelationshipRepository,
	userRepo repository.UserRepository,
	cache DeviceCache,
	notifier Notifier,
	codeTTL time.Duration,
) *PairingService {
	return &PairingService{
		db:       db,
		codeRepo: codeRepo,
		relRepo:  relRepo,
		userRepo: userRepo,
		cache:    cache,
		notifier: notifier,
		codeTTL:  codeTTL,
	}
}

// GenerateCode issues a fresh 6-digit pairing code for the child device.
// Uniqueness against other live codes is attempted, not guaranteed; the
// collision odds over a 10-minute window are accepted.
func (s *PairingService) GenerateCode(ctx context.Context, child *model.User) (*model.PairingCode, error) {
	var code string
	for attempts := 0; attempts < codeGenerateAttempts; attempts++ {
		code = generateNumericCode()
		existing, err := s.codeRepo.FindSubmittable(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code collision: %w", err)
		}
		if existing == nil {
			break
		}
	}

	pc, err := s.codeRepo.Create(ctx, model.CreatePairingCodeParams{
		Code:        code,
		ChildUserID: child.ID,
		ChildName:   child.DisplayName,
		DeviceName:  child.DeviceName,
		ExpiresAt:   time.Now().Add(s.codeTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create pairing code: %w", err)
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("childUserId", child.ID).
		Time("expiresAt", pc.ExpiresAt).
		Msg("pairing code created")

	return pc, nil
}

// SubmitCode consumes a pairing code and establishes the relationship.
// Code consumption, relationship creation and the child's paired flag are
// committed as one transaction so two racing submissions cannot both win.
func (s *PairingService) SubmitCode(ctx context.Context, code, parentUserID string) (*PairResult, error) {
	normalized := strings.TrimSpace(code)
	if !codeFormat.MatchString(normalized) {
		return nil, apperrors.InvalidCodeFormat()
	}

	pc, err := s.codeRepo.FindSubmittable(ctx, normalized)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pc == nil {
		return nil, apperrors.CodeNotFound()
	}

	// The sweep may lag; check the deadline against the wall clock too.
	if time.Now().After(pc.ExpiresAt) {
		return nil, apperrors.CodeExpired()
	}

	existing, err := s.relRepo.FindActiveByPair(ctx, parentUserID, pc.ChildUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyPaired()
	}

	relationshipID := uuid.NewString()

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		consumed, err := s.codeRepo.WithTx(tx).Consume(ctx, normalized)
		if err != nil {
			return err
		}
		if !consumed {
			// A concurrent submission won the race between our lookup
			// and this update.
			return apperrors.CodeNotFound()
		}

		if _, err := s.relRepo.WithTx(tx).Create(ctx, model.CreateRelationshipParams{
			ID:           relationshipID,
			ParentUserID: parentUserID,
			ChildUserID:  pc.ChildUserID,
			ChildName:    pc.ChildName,
			DeviceName:   pc.DeviceName,
			PairingCode:  normalized,
		}); err != nil {
			return err
		}

		return s.userRepo.WithTx(tx).SetDevicePaired(ctx, pc.ChildUserID, true)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyPaired()
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("relationshipId", relationshipID).
		Str("parentUserId", parentUserID).
		Str("childUserId", pc.ChildUserID).
		Str("code", util.MaskCode(normalized)).
		Msg("pairing successful")

	return &PairResult{
		RelationshipID: relationshipID,
		ChildName:      pc.ChildName,
		DeviceName:     pc.DeviceName,
	}, nil
}

// Unpair permanently deactivates a relationship. Only a party to the
// relationship may unlink it, and re-establishing supervision requires a
// brand-new pairing code.
func (s *PairingService) Unpair(ctx context.Context, relationshipID, requestingUserID string) error {
	rel, err := s.relRepo.FindByID(ctx, relationshipID)
	if err != nil {
		return apperrors.Database(err)
	}
	if rel == nil || !rel.IsActive {
		return apperrors.NotFound("Relationship")
	}
	if !rel.IsParty(requestingUserID) {
		return apperrors.Forbidden("Only a party to the relationship may unlink it")
	}

	now := time.Now()
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.relRepo.WithTx(tx).Unlink(ctx, relationshipID, requestingUserID, now); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).SetDevicePaired(ctx, rel.ChildUserID, false)
	})
	if err != nil {
		return apperrors.Database(err)
	}

	// The other party learns about the unlink through the notification
	// feed; the actor already knows.
	recipient := rel.ParentUserID
	if requestingUserID == rel.ParentUserID {
		recipient = rel.ChildUserID
	}
	deviceLabel := rel.DeviceName
	if deviceLabel == "" {
		deviceLabel = "this device"
	}
	notifyErr := s.notifier.Notify(ctx, model.Notification{
		RecipientID: recipient,
		Type:        model.NotificationDeviceUnlinked,
		Title:       "Device unlinked",
		Message:     fmt.Sprintf("Supervision of %s has ended.", deviceLabel),
		Data: notificationData(map[string]any{
			"relationshipId": relationshipID,
			"unlinkedBy":     requestingUserID,
		}),
	})
	if notifyErr != nil {
		log.Error().Err(notifyErr).Str("relationshipId", relationshipID).
			Msg("failed to emit unlink notification")
	}

	// Once the parent supervises no devices, their mirrored enforcement
	// state is dead weight. The mirror is a side channel, so a failed
	// purge is logged and left to the cache TTL.
	remaining, err := s.relRepo.FindActiveByUserID(ctx, rel.ParentUserID)
	if err == nil && len(remaining) == 0 {
		if err := s.cache.PurgeUser(ctx, rel.ParentUserID); err != nil {
			log.Warn().Err(err).Str("parentUserId", rel.ParentUserID).
				Msg("failed to purge device cache after unlink")
		}
	}

	log.Info().
		Str("relationshipId", relationshipID).
		Str("unlinkedBy", requestingUserID).
		Msg("relationship unlinked")

	return nil
}

func (s *PairingService) ListRelationships(ctx context.Context, userID string) ([]model.Relationship, error) {
	return s.relRepo.FindActiveByUserID(ctx, userID)
}

func (s *PairingService) ListActiveCodes(ctx context.Context, childUserID string) ([]model.PairingCode, error) {
	return s.codeRepo.FindActiveByChildID(ctx, childUserID)
}

func generateNumericCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(1000000))
	return fmt.Sprintf("%06d", n.Int64())
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
