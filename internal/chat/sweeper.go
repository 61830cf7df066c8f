package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically asks the hub to close expired rooms so clients see the
// transition without having to send anything.
type Sweeper struct {
	cron *cron.Cron
}

func NewSweeper(hub *Hub, spec string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(spec, hub.RequestSweep); err != nil {
		return nil, fmt.Errorf("failed to schedule expiry sweep %q: %w", spec, err)
	}
	return &Sweeper{cron: c}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running sweep
// request has returned.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
