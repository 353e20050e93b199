package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/service"
)

// BedtimeSweepJob re-derives "is bedtime now" on the liveness cadence and
// pushes the disable payload to the device mirror while a window is open.
type BedtimeSweepJob struct {
	bedtime  *service.BedtimeService
	interval time.Duration
	done     chan struct{}
}

func NewBedtimeSweepJob(bedtime *service.BedtimeService, interval time.Duration) *BedtimeSweepJob {
	return &BedtimeSweepJob{
		bedtime:  bedtime,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *BedtimeSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("bedtime sweep started")
}

func (j *BedtimeSweepJob) Stop() {
	close(j.done)
	log.Info().Msg("bedtime sweep stopped")
}

func (j *BedtimeSweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *BedtimeSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pushed, err := j.bedtime.EvaluateAll(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("bedtime sweep failed")
		return
	}
	if pushed > 0 {
		log.Debug().Int("pushed", pushed).Msg("bedtime sweep pushed active windows")
	}
}
