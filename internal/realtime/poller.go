package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/logger"
	"trip-dispatch/internal/observability"
)

// FetchFunc retrieves the authoritative snapshot of one trip.
type FetchFunc func(ctx context.Context, tripID string) (contracts.TripSnapshot, error)

// Poller periodically re-fetches a trip and feeds the snapshot through the
// same idempotent apply as pushed events. It covers missed pushes; a fetch
// error is logged and retried on the next tick, never fatal.
type Poller struct {
	tripID   string
	view     *TripView
	fetch    FetchFunc
	interval time.Duration
	logger   *logger.Logger

	// OnChange, when set, fires after every poll that advanced the view.
	OnChange func(contracts.TripSnapshot)

	busy atomic.Bool
}

// NewPoller builds a poller bound to one trip view.
func NewPoller(tripID string, view *TripView, fetch FetchFunc, interval time.Duration, logger *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		tripID:   tripID,
		view:     view,
		fetch:    fetch,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled or the trip reaches a terminal status.
func (poller *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(poller.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poller.tick(ctx)
			if poller.view.Terminal() {
				poller.logger.Debug(ctx, "poller_done", "Trip reached terminal status, stopping poller", map[string]any{
					"trip_id": poller.tripID,
				})
				return
			}
		}
	}
}

// tick runs one poll. If the previous poll is still in flight the tick is
// skipped rather than queued, so a slow fetch never piles up requests.
func (poller *Poller) tick(ctx context.Context) {
	if !poller.busy.CompareAndSwap(false, true) {
		observability.PollRuns.WithLabelValues("skipped").Inc()
		return
	}
	defer poller.busy.Store(false)

	snap, err := poller.fetch(ctx, poller.tripID)
	if err != nil {
		observability.PollRuns.WithLabelValues("error").Inc()
		poller.logger.Debug(ctx, "poll_fetch_failed", "Trip poll failed, will retry next tick", map[string]any{
			"trip_id": poller.tripID,
			"error":   err.Error(),
		})
		return
	}

	if poller.view.Apply(snap) {
		observability.PollRuns.WithLabelValues("applied").Inc()
		if poller.OnChange != nil {
			poller.OnChange(snap)
		}
		return
	}
	observability.PollRuns.WithLabelValues("noop").Inc()
}
