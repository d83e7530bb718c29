package ddns

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler is implemented by *Client.
type Reconciler interface {
	Reconcile(ctx context.Context) (changed bool, err error)
}

// RunDaemon calls Reconcile, logs the outcome, then sleeps for interval, until ctx is done.
//
// The sleep starts after a cycle has finished, so slow cycles push the next one back instead of overlapping it.
// Failed cycles are logged and the next one starts from scratch; there is no backoff.
// RunDaemon blocks and returns ctx.Err().
func RunDaemon(ctx context.Context, r Reconciler, interval time.Duration, logger zerolog.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	for {
		RunOnce(ctx, r, logger)
		if err := sleepContext(ctx, interval); err != nil {
			return err
		}
	}
}

// RunOnce runs a single logged and measured cycle.
func RunOnce(ctx context.Context, r Reconciler, logger zerolog.Logger) (changed bool, err error) {
	start := time.Now()
	changed, err = r.Reconcile(ctx)
	cycleDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		cyclesTotal.WithLabelValues(resultError).Inc()
		logger.Error().Err(err).Msg("reconciliation failed")
	case changed:
		cyclesTotal.WithLabelValues(resultUpdated).Inc()
		logger.Info().Msg("A record updated")
	default:
		cyclesTotal.WithLabelValues(resultUnchanged).Inc()
		logger.Info().Msg("no update required")
	}
	return changed, err
}
