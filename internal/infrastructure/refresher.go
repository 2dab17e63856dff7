package infrastructure

import (
	"context"
	"time"

	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
)

// Refresher rebuilds the knowledge snapshot on a fixed interval.
type Refresher struct {
	provider interfaces.KnowledgeRefresher
	interval time.Duration
	timeout  time.Duration
	logger   *observability.Logger
}

// NewRefresher builds a refresher; timeout bounds a single pass.
func NewRefresher(provider interfaces.KnowledgeRefresher, interval, timeout time.Duration, logger *observability.Logger) *Refresher {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Refresher{
		provider: provider,
		interval: interval,
		timeout:  timeout,
		logger:   logger.WithComponent("refresher"),
	}
}

// Run refreshes once right away, then every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("starting knowledge refresh scheduler")

	r.refreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshOnce(ctx)
		case <-ctx.Done():
			r.logger.Info().Msg("stopping knowledge refresh scheduler")
			return
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.provider.Refresh(passCtx)
	if err != nil {
		r.logger.Error().Err(err).Msg("scheduled knowledge refresh failed")
		return
	}
	r.logger.Info().Uint64("version", snap.Version).Msg("scheduled knowledge refresh completed")
}
