package service

import (
	"context"
	"fmt"
	"time"

	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const staleDepositReason = "expired awaiting gateway confirmation"

// Sweeper fails pending deposits the gateway never confirmed.
type Sweeper struct {
	txRepo   ports.TransactionRepository
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
	log      zerolog.Logger
}

// NewSweeper creates a Sweeper. An empty schedule disables Start.
func NewSweeper(txRepo ports.TransactionRepository, ttl time.Duration, schedule string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		txRepo:   txRepo,
		ttl:      ttl,
		schedule: schedule,
		now:      time.Now,
		log:      log,
	}
}

// Sweep fails every pending deposit older than the TTL and returns how many
// were changed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	n, err := s.txRepo.FailStalePending(ctx, cutoff, staleDepositReason)
	if err != nil {
		return 0, fmt.Errorf("fail stale deposits: %w", err)
	}
	metrics.RecordSweep(n)
	if n > 0 {
		s.log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("stale deposits failed")
	}
	return n, nil
}

// Start schedules Sweep on the configured cron spec.
func (s *Sweeper) Start() error {
	if s.schedule == "" || s.ttl <= 0 {
		s.log.Info().Msg("stale deposit sweeper disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("stale deposit sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron = c
	c.Start()
	s.log.Info().Str("schedule", s.schedule).Dur("ttl", s.ttl).Msg("stale deposit sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
