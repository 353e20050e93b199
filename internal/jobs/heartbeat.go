package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/config"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/service"
)

// HeartbeatSweepJob escalates prolonged heartbeat silence. Escalation is
// monotonic per relationship: a level is announced at most once, and the
// stored counter only moves forward until a heartbeat or graceful
// shutdown resets it.
type HeartbeatSweepJob struct {
	relRepo  repository.RelationshipRepository
	notifier service.Notifier
	interval time.Duration
	done     chan struct{}
}

func NewHeartbeatSweepJob(
	relRepo repository.RelationshipRepository,
	notifier service.Notifier,
	interval time.Duration,
) *HeartbeatSweepJob {
	return &HeartbeatSweepJob{
		relRepo:  relRepo,
		notifier: notifier,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *HeartbeatSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("missed-heartbeat sweep started")
}

func (j *HeartbeatSweepJob) Stop() {
	close(j.done)
	log.Info().Msg("missed-heartbeat sweep stopped")
}

func (j *HeartbeatSweepJob) run() {
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

func (j *HeartbeatSweepJob) sweep(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := j.SweepOnce(ctx, now); err != nil {
		log.Error().Err(err).Msg("missed-heartbeat sweep failed")
	}
}

// SweepOnce runs a single escalation pass and returns how many
// notifications were emitted.
func (j *HeartbeatSweepJob) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	overdue, err := j.relRepo.FindHeartbeatOverdue(ctx, now.Add(-config.HeartbeatGraceWindow))
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range overdue {
		rel := &overdue[i]
		if rel.LastHeartbeatAt == nil {
			continue
		}

		elapsed := now.Sub(*rel.LastHeartbeatAt)
		missedCount := int(elapsed / config.HeartbeatInterval)
		if missedCount <= rel.MissedHeartbeats {
			// Already announced at this level or higher.
			continue
		}

		if err := j.relRepo.SetMissedHeartbeats(ctx, rel.ID, missedCount); err != nil {
			log.Error().Err(err).Str("relationshipId", rel.ID).Msg("failed to persist missed-heartbeat count")
			continue
		}

		title, message := escalationText(missedCount, rel.ChildName)
		err := j.notifier.Notify(ctx, model.Notification{
			RecipientID: rel.ParentUserID,
			Type:        model.NotificationMissedHeartbeat,
			Title:       title,
			Message:     message,
			Data: map2json(map[string]any{
				"relationshipId":  rel.ID,
				"childUserId":     rel.ChildUserID,
				"missedCount":     missedCount,
				"lastHeartbeatAt": rel.LastHeartbeatAt.UTC().Format(time.RFC3339),
			}),
		})
		if err != nil {
			log.Error().Err(err).Str("relationshipId", rel.ID).Msg("failed to emit missed-heartbeat notification")
			continue
		}
		notified++
	}

	if notified > 0 {
		log.Info().Int("notified", notified).Msg("missed-heartbeat sweep complete")
	}
	return notified, nil
}

func escalationText(missedCount int, childName string) (string, string) {
	name := childName
	if name == "" {
		name = "Your child's device"
	}

	switch {
	case missedCount <= 1:
		return "Missed check-in",
			name + " missed a scheduled check-in. This can happen when the device briefly loses connectivity."
	case missedCount == 2:
		return "Two missed check-ins",
			name + " has missed two check-ins in a row. The app may have been closed or the device powered off."
	case missedCount <= 4:
		return "Device not responding",
			name + " has missed several check-ins. Please check that the monitoring app is still installed and running."
	default:
		return "Device offline for over 5 hours",
			name + " has not checked in for over 5 hours. The app may have been uninstalled or the device may be off."
	}
}
