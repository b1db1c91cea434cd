package pool

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/matching"
	"github.com/richxcame/pool-matching/internal/observability"
	"github.com/richxcame/pool-matching/internal/pricing"
	"github.com/richxcame/pool-matching/internal/route"
	"github.com/richxcame/pool-matching/pkg/logger"
	"go.uber.org/zap"
)

const batchFetchLimit = 200

// RunBatchMatcher periodically sweeps pending requests that never landed
// in a pool and groups them greedily. This is the cold-start and backfill
// path; the submit path normally assigns every request immediately, so
// the sweep only sees requests orphaned by crashes or conflict aborts.
// Blocks until ctx is cancelled.
func (c *Coordinator) RunBatchMatcher(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.BatchInterval)
	defer ticker.Stop()

	logger.Info("batch matcher started",
		zap.Duration("interval", c.cfg.BatchInterval),
		zap.Duration("min_age", c.cfg.BatchMinAge))

	for {
		select {
		case <-ctx.Done():
			logger.Info("batch matcher stopped")
			return
		case <-ticker.C:
			if err := c.RunBatchOnce(ctx); err != nil {
				logger.WithContext(ctx).Error("batch matching sweep failed", zap.Error(err))
			}
		}
	}
}

// RunBatchOnce performs a single backfill sweep
func (c *Coordinator) RunBatchOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.cfg.BatchMinAge)
	orphans, err := c.repo.ListUnassignedPending(ctx, cutoff, batchFetchLimit)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	riders := make([]matching.Rider, 0, len(orphans))
	for _, r := range orphans {
		riders = append(riders, r.MatchingRider())
	}
	groups := c.engine.GenerateOptimalPools(riders)

	created := 0
	for _, group := range groups {
		poolID, err := c.createPoolForGroup(ctx, group)
		if err != nil {
			// One failed group does not abort the sweep; the members stay
			// pending and the next sweep retries them.
			logger.WithContext(ctx).Warn("batch pool creation failed",
				zap.Int("group_size", len(group)), zap.Error(err))
			continue
		}
		if poolID != uuid.Nil {
			created++
		}
	}

	if created > 0 {
		logger.WithContext(ctx).Info("batch matching sweep completed",
			zap.Int("orphans", len(orphans)),
			zap.Int("pools_created", created))
	}
	return nil
}

// createPoolForGroup opens one pool holding a rider group in a single
// transaction. Requests are locked in id order so concurrent sweeps and
// cancellations cannot deadlock; riders cancelled since the scan are
// dropped from the group.
func (c *Coordinator) createPoolForGroup(ctx context.Context, group []matching.Rider) (uuid.UUID, error) {
	ordered := make([]matching.Rider, len(group))
	copy(ordered, group)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].RequestID.String() < ordered[j].RequestID.String()
	})

	var poolID uuid.UUID
	err := c.repo.InTx(ctx, func(tx Tx) error {
		var locked []*RideRequest
		for _, rider := range ordered {
			req, err := tx.LockRequest(ctx, rider.RequestID)
			if err != nil {
				return err
			}
			if req.Status != RequestStatusPending {
				continue
			}
			locked = append(locked, req)
		}
		if len(locked) == 0 {
			return nil
		}

		riders := make([]matching.Rider, 0, len(locked))
		for _, req := range locked {
			riders = append(riders, req.MatchingRider())
		}
		seq := route.Sequence(stopsFor(riders))
		detours := route.Detours(seq)
		routeKm := route.LengthKm(seq)

		now := time.Now().UTC()
		durationMin := routeDurationMin(routeKm)
		id := uuid.New()
		pool := &RidePool{
			ID:               id,
			Code:             NewPoolCode(id),
			Status:           PoolStatusForming,
			MaxPassengers:    c.cfg.MaxPassengers,
			MaxLuggage:       c.cfg.MaxLuggage,
			RouteDistanceKm:  &routeKm,
			RouteDurationMin: &durationMin,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.CreatePool(ctx, pool); err != nil {
			return err
		}
		poolID = pool.ID

		// Discount counts riders sharing the car, not seats booked.
		poolSize := len(locked)
		demand := c.demand.Factor()

		for _, req := range locked {
			tripKm := req.TripKm()
			price := c.pricer.Calculate(tripKm, demand, true, poolSize)
			pickupSeq, dropoffSeq := sequenceIndices(seq, req.ID)

			member := &PoolMember{
				ID:              uuid.New(),
				PoolID:          pool.ID,
				RequestID:       req.ID,
				RiderID:         req.UserID,
				PickupSequence:  pickupSeq,
				DropoffSequence: dropoffSeq,
				DetourKm:        detours[req.ID],
				Price:           price.FinalPrice,
				CreatedAt:       now,
			}
			if err := tx.InsertMember(ctx, member); err != nil {
				return err
			}
			if err := tx.UpdateRequestStatus(ctx, req.ID, RequestStatusMatched); err != nil {
				return err
			}
			if err := tx.InsertPricingHistory(ctx, &pricing.HistoryRecord{
				ID:        uuid.New(),
				RequestID: req.ID,
				Breakdown: price,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if _, _, err := tx.RecomputeCounters(ctx, pool.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if poolID != uuid.Nil {
		observability.BatchPoolsCreated.Inc()
		for _, rider := range group {
			c.cache.InvalidateRequest(ctx, rider.RequestID)
		}
	}
	return poolID, nil
}
