package artifact

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper purges expired output artifacts on a cron schedule.
type Sweeper struct {
	store  *Store
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper schedules PurgeExpiredOutputs on the given cron spec
// (e.g. "*/10 * * * *").
func NewSweeper(store *Store, schedule string, logger *slog.Logger) (*Sweeper, error) {
	c := cron.New()
	sweeper := &Sweeper{
		store:  store,
		cron:   c,
		logger: logger,
	}

	_, err := c.AddFunc(schedule, func() {
		if _, err := store.PurgeExpiredOutputs(time.Now()); err != nil {
			logger.Error("Output purge sweep failed",
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		return nil, err
	}

	return sweeper, nil
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Artifact retention sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Artifact retention sweeper stopped")
}
