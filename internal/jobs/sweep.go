package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// completer is the slice of the booking service the sweep needs.
type completer interface {
	CompleteDue(ctx context.Context) (int64, error)
}

// expirer is the slice of the verification service the sweep needs.
type expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// SweepJob periodically completes bookings past their end plus grace and
// expires verification windows nobody touched. It backs up the lazy checks
// the request path performs.
type SweepJob struct {
	bookings      completer
	verifications expirer
	interval      time.Duration
	done          chan struct{}
}

func NewSweepJob(bookings completer, verifications expirer, interval time.Duration) *SweepJob {
	return &SweepJob{
		bookings:      bookings,
		verifications: verifications,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
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

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runSweep(ctx, "overdue bookings", j.bookings.CompleteDue)
	j.runSweep(ctx, "expired verification windows", j.verifications.ExpireDue)
}

func (j *SweepJob) runSweep(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to sweep %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("swept %s", name)
	}
}
