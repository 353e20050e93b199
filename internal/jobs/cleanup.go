package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/config"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

// CleanupJob keeps the pairing-code collection tidy: a frequent sweep
// flips expired codes, and an hourly purge deletes records past the
// retention window regardless of state. Both passes are idempotent, so a
// failed run is simply retried on the next tick.
type CleanupJob struct {
	codeRepo      repository.PairingCodeRepository
	sweepInterval time.Duration
	purgeInterval time.Duration
	done          chan struct{}
}

func NewCleanupJob(
	codeRepo repository.PairingCodeRepository,
	sweepInterval, purgeInterval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		codeRepo:      codeRepo,
		sweepInterval: sweepInterval,
		purgeInterval: purgeInterval,
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().
		Dur("sweepInterval", j.sweepInterval).
		Dur("purgeInterval", j.purgeInterval).
		Msg("pairing-code cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("pairing-code cleanup job stopped")
}

func (j *CleanupJob) run() {
	sweep := time.NewTicker(j.sweepInterval)
	defer sweep.Stop()
	purge := time.NewTicker(j.purgeInterval)
	defer purge.Stop()

	j.sweepExpired()

	for {
		select {
		case <-j.done:
			return
		case <-sweep.C:
			j.sweepExpired()
		case <-purge.C:
			j.purgeStale()
		}
	}
}

func (j *CleanupJob) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.codeRepo.MarkExpiredBatch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep expired pairing codes")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("swept expired pairing codes")
	}
}

func (j *CleanupJob) purgeStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.codeRepo.DeleteOlderThan(ctx, time.Now().Add(-config.StalePurgeMaxAge))
	if err != nil {
		log.Error().Err(err).Msg("failed to purge stale pairing codes")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("purged stale pairing codes")
	}
}
