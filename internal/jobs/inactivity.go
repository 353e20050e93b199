package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/config"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/service"
)

// InactivitySweepJob flags children who have gone quiet for days. Each
// sweep cycle emits at most one notification per relationship for which
// the condition still holds; there is no suppression window across
// cycles beyond the sweep cadence itself.
type InactivitySweepJob struct {
	userRepo repository.UserRepository
	relRepo  repository.RelationshipRepository
	notifier service.Notifier
	interval time.Duration
	done     chan struct{}
}

func NewInactivitySweepJob(
	userRepo repository.UserRepository,
	relRepo repository.RelationshipRepository,
	notifier service.Notifier,
	interval time.Duration,
) *InactivitySweepJob {
	return &InactivitySweepJob{
		userRepo: userRepo,
		relRepo:  relRepo,
		notifier: notifier,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *InactivitySweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("inactivity sweep started")
}

func (j *InactivitySweepJob) Stop() {
	close(j.done)
	log.Info().Msg("inactivity sweep stopped")
}

func (j *InactivitySweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep(time.Now())
		}
	}
}

func (j *InactivitySweepJob) sweep(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := j.SweepOnce(ctx, now); err != nil {
		log.Error().Err(err).Msg("inactivity sweep failed")
	}
}

// SweepOnce emits one notification per active relationship whose child
// has been silent past the threshold, and returns the emission count.
func (j *InactivitySweepJob) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	inactive, err := j.userRepo.FindInactiveChildren(ctx, now.Add(-config.InactivityThreshold))
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range inactive {
		child := &inactive[i]

		rels, err := j.relRepo.FindActiveByChildID(ctx, child.ID)
		if err != nil {
			log.Error().Err(err).Str("childUserId", child.ID).Msg("inactivity sweep: load relationships")
			continue
		}

		for k := range rels {
			rel := &rels[k]

			var lastActive string
			if child.LastActiveAt != nil {
				lastActive = child.LastActiveAt.UTC().Format(time.RFC3339)
			}

			err := j.notifier.Notify(ctx, model.Notification{
				RecipientID: rel.ParentUserID,
				Type:        model.NotificationChildInactive,
				Title:       "No activity for 3 days",
				Message:     childDisplayName(rel) + " has not used the device in over 3 days.",
				Data: map2json(map[string]any{
					"relationshipId": rel.ID,
					"childUserId":    child.ID,
					"lastActiveAt":   lastActive,
				}),
			})
			if err != nil {
				log.Error().Err(err).Str("relationshipId", rel.ID).Msg("failed to emit inactivity notification")
				continue
			}
			notified++
		}
	}

	if notified > 0 {
		log.Info().Int("notified", notified).Msg("inactivity sweep complete")
	}
	return notified, nil
}

func childDisplayName(rel *model.Relationship) string {
	if rel.ChildName != "" {
		return rel.ChildName
	}
	return "Your child"
}

func map2json(fields map[string]any) json.RawMessage {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return data
}
