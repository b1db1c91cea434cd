package pricing

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/richxcame/pool-matching/internal/observability"
	"github.com/richxcame/pool-matching/pkg/logger"
	"go.uber.org/zap"
)

// PendingCounter supplies the volume of pending requests submitted since
// a point in time
type PendingCounter interface {
	CountPendingSince(ctx context.Context, since time.Time) (int, error)
}

// DemandMonitor periodically samples pending-request volume and
// time-of-day and publishes a normalized [0,2] demand factor. Reads are
// lock-free; a stale factor is served until the next refresh succeeds.
type DemandMonitor struct {
	counter   PendingCounter
	threshold int
	window    time.Duration
	refresh   time.Duration

	factorBits atomic.Uint64
}

// NewDemandMonitor creates a demand monitor. threshold is the pending
// volume at which the volume component saturates.
func NewDemandMonitor(counter PendingCounter, threshold int, window, refresh time.Duration) *DemandMonitor {
	m := &DemandMonitor{
		counter:   counter,
		threshold: threshold,
		window:    window,
		refresh:   refresh,
	}
	m.factorBits.Store(math.Float64bits(0))
	return m
}

// Factor returns the most recently published demand factor
func (m *DemandMonitor) Factor() float64 {
	return math.Float64frombits(m.factorBits.Load())
}

// Run refreshes the factor on a fixed cadence until ctx is cancelled
func (m *DemandMonitor) Run(ctx context.Context) {
	m.Refresh(ctx)

	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh samples the pending volume once and publishes a new factor
func (m *DemandMonitor) Refresh(ctx context.Context) {
	pending, err := m.counter.CountPendingSince(ctx, time.Now().Add(-m.window))
	if err != nil {
		logger.WithContext(ctx).Warn("demand sample failed, keeping last factor", zap.Error(err))
		return
	}

	factor := ComputeDemandFactor(pending, m.threshold, time.Now().Hour())
	m.factorBits.Store(math.Float64bits(factor))
	observability.DemandFactor.Set(factor)

	logger.Debug("demand factor refreshed",
		zap.Int("pending", pending),
		zap.Float64("factor", factor),
	)
}

// ComputeDemandFactor combines request volume with a commute-hour boost
// and clamps the result to [0,2]
func ComputeDemandFactor(pending, threshold, hour int) float64 {
	if threshold <= 0 {
		threshold = 1
	}

	volume := float64(pending) / float64(threshold)
	if volume > 1.5 {
		volume = 1.5
	}

	var peak float64
	if (hour >= 7 && hour < 10) || (hour >= 17 && hour < 20) {
		peak = 0.5
	}

	factor := volume + peak
	if factor > 2 {
		factor = 2
	}
	if factor < 0 {
		factor = 0
	}
	return factor
}
