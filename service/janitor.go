package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
)

// Janitor periodically deletes ledger entries past their expiry. Expired
// entries are already refused at redemption; this only reclaims storage.
type Janitor struct {
	ledger   ports.Ledger
	interval time.Duration
	clock    core.Clock
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewJanitor(ledger ports.Ledger, interval time.Duration) *Janitor {
	return &Janitor{
		ledger:   ledger,
		interval: interval,
		clock:    core.SystemClock{},
		log:      zerolog.Nop(),
	}
}

func (j *Janitor) WithLogger(log zerolog.Logger) *Janitor {
	j.log = log.With().Str("component", "janitor").Logger()
	return j
}

func (j *Janitor) WithClock(clock core.Clock) *Janitor {
	j.clock = clock
	return j
}

func (j *Janitor) WithMetrics(m *metrics.Metrics) *Janitor {
	j.metrics = m
	return j
}

// RunOnce performs a single prune pass
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.ledger.PurgeExpired(ctx, j.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired entries: %w", err)
	}
	j.metrics.LedgerPurged(n)
	j.log.Info().Int64("purged", n).Msg("pruned expired ledger entries")
	return n, nil
}

// Run prunes on every tick until ctx is cancelled. A failed pass is logged
// and retried on the next tick. A non-positive interval disables the loop.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.log.Info().Msg("janitor disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.Error().Err(err).Msg("janitor pass failed")
			}
		}
	}
}
