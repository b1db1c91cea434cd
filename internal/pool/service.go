package pool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/geomath"
	"github.com/richxcame/pool-matching/internal/matching"
	"github.com/richxcame/pool-matching/internal/observability"
	"github.com/richxcame/pool-matching/internal/pricing"
	"github.com/richxcame/pool-matching/internal/route"
	"github.com/richxcame/pool-matching/pkg/common"
	"github.com/richxcame/pool-matching/pkg/config"
	"github.com/richxcame/pool-matching/pkg/logger"
	"go.uber.org/zap"
)

// Average in-city speed used to derive a duration estimate from route
// distance, in km/h.
const avgSpeedKmh = 40.0

// DemandSource supplies the current demand factor for surge pricing
type DemandSource interface {
	Factor() float64
}

// Coordinator owns the request and pool lifecycles. Matching runs in two
// phases: a lock-free scan over snapshot reads picks a candidate, then a
// transaction re-validates it under row locks before mutating anything.
type Coordinator struct {
	repo   Repository
	cache  SnapshotCache
	engine *matching.Engine
	pricer *pricing.Engine
	demand DemandSource
	cfg    config.MatchingConfig
}

// NewCoordinator creates a pool coordinator
func NewCoordinator(repo Repository, cache SnapshotCache, engine *matching.Engine, pricer *pricing.Engine, demand DemandSource, cfg config.MatchingConfig) *Coordinator {
	return &Coordinator{
		repo:   repo,
		cache:  cache,
		engine: engine,
		pricer: pricer,
		demand: demand,
		cfg:    cfg,
	}
}

// Submit creates a ride request and assigns it to a pool: the best
// feasible existing pool when one passes all filters, otherwise a new
// pool holding only this request. Finding no match is a normal outcome,
// not an error.
func (c *Coordinator) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &RideRequest{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		Passengers:  req.Passengers,
		Luggage:     req.Luggage,
		MaxDetourKm: req.MaxDetourKm,
		Status:      RequestStatusPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := c.repo.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	// Lock-free candidate scan over snapshot reads. The winner is
	// re-validated under locks before any mutation; stale snapshots cost
	// a wasted evaluation, never a corrupted pool.
	snapshots, err := c.repo.ListOpenPools(ctx, c.cfg.CandidatePoolLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([]matching.PoolCandidate, 0, len(snapshots))
	for _, s := range snapshots {
		candidates = append(candidates, s.MatchingCandidate())
	}

	rider := request.MatchingRider()
	match, matched := c.engine.FindBestMatch(rider, candidates)

	var result *SubmitResult
	err = c.repo.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockRequest(ctx, request.ID)
		if err != nil {
			return err
		}
		if locked.Status != RequestStatusPending {
			// Cancelled between create and lock; matching a terminal
			// request is a no-op.
			result = &SubmitResult{Outcome: OutcomeAlreadyTerminal, Request: locked}
			return nil
		}

		if matched {
			joined, err := c.joinLockedPool(ctx, tx, locked, match.Candidate.PoolID)
			if err != nil {
				return err
			}
			if joined != nil {
				result = joined
				return nil
			}
			// The pool changed under us and no longer fits; fall through
			// to opening a new pool in the same transaction.
		}

		created, err := c.openPool(ctx, tx, locked)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Pool != nil {
		c.cache.InvalidatePool(ctx, result.Pool.ID)
	}
	c.cache.InvalidateRequest(ctx, request.ID)
	observability.MatchesTotal.WithLabelValues(result.Outcome).Inc()

	logger.WithContext(ctx).Info("ride request submitted",
		zap.String("request_id", request.ID.String()),
		zap.String("outcome", result.Outcome))
	return result, nil
}

// joinLockedPool re-validates the scanned match under row locks and adds
// the request to the pool. Returns (nil, nil) when the pool no longer
// fits, which sends the caller down the new-pool path.
func (c *Coordinator) joinLockedPool(ctx context.Context, tx Tx, request *RideRequest, poolID uuid.UUID) (*SubmitResult, error) {
	lockedPool, err := tx.LockPool(ctx, poolID)
	if err != nil {
		if common.IsCode(err, common.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !lockedPool.Status.IsOpen() {
		return nil, nil
	}

	members, err := tx.MemberRequests(ctx, poolID)
	if err != nil {
		return nil, err
	}

	// Re-run the full filter pipeline on locked state; the snapshot scan
	// may have raced a join or cancel.
	fresh := &PoolWithMembers{Pool: *lockedPool, Members: derefMembers(members)}
	match, ok := c.engine.Evaluate(request.MatchingRider(), fresh.MatchingCandidate())
	if !ok {
		return nil, nil
	}

	demand := c.demand.Factor()
	tripKm := geomath.DistanceKm(request.Pickup, request.Dropoff)
	// Discount scales with co-riders sharing the car, not with seats
	// booked: a party of four on one request still rides alone.
	poolSize := len(members) + 1
	price := c.pricer.Calculate(tripKm, demand, true, poolSize)

	pickupSeq, dropoffSeq := sequenceIndices(match.Sequence, request.ID)
	member := &PoolMember{
		ID:              uuid.New(),
		PoolID:          poolID,
		RequestID:       request.ID,
		RiderID:         request.UserID,
		PickupSequence:  pickupSeq,
		DropoffSequence: dropoffSeq,
		DetourKm:        match.Detours[request.ID],
		Price:           price.FinalPrice,
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.InsertMember(ctx, member); err != nil {
		return nil, err
	}

	// The new stop order shifts existing members' sequences and detours.
	for _, m := range members {
		pSeq, dSeq := sequenceIndices(match.Sequence, m.Request.ID)
		if err := tx.UpdateMemberRoute(ctx, poolID, m.Request.ID, pSeq, dSeq, match.Detours[m.Request.ID]); err != nil {
			return nil, err
		}
	}

	passengers, luggage, err := tx.RecomputeCounters(ctx, poolID)
	if err != nil {
		return nil, err
	}
	// The counters are rebuilt from membership rows inside the same
	// transaction, so an overflow here means the scan filters and the
	// stored counters disagree. Abort rather than commit an overfull pool.
	if passengers > lockedPool.MaxPassengers || luggage > lockedPool.MaxLuggage {
		return nil, common.NewCapacityExceededError("pool capacity exceeded after recount")
	}
	if err := tx.UpdatePoolRoute(ctx, poolID, match.RouteKm, routeDurationMin(match.RouteKm)); err != nil {
		return nil, err
	}
	if err := tx.UpdateRequestStatus(ctx, request.ID, RequestStatusMatched); err != nil {
		return nil, err
	}
	if err := tx.InsertPricingHistory(ctx, &pricing.HistoryRecord{
		ID:        uuid.New(),
		RequestID: request.ID,
		Breakdown: price,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	pool := *lockedPool
	pool.Passengers = passengers
	pool.Luggage = luggage
	routeKm := match.RouteKm
	durationMin := routeDurationMin(match.RouteKm)
	pool.RouteDistanceKm = &routeKm
	pool.RouteDurationMin = &durationMin

	request.Status = RequestStatusMatched
	return &SubmitResult{
		Outcome: OutcomeMatched,
		Request: request,
		Pool:    &pool,
		Member:  member,
		Price:   price,
	}, nil
}

// openPool creates a fresh pool holding only this request
func (c *Coordinator) openPool(ctx context.Context, tx Tx, request *RideRequest) (*SubmitResult, error) {
	now := time.Now().UTC()
	tripKm := geomath.DistanceKm(request.Pickup, request.Dropoff)
	durationMin := routeDurationMin(tripKm)

	id := uuid.New()
	pool := &RidePool{
		ID:               id,
		Code:             NewPoolCode(id),
		Status:           PoolStatusForming,
		MaxPassengers:    c.cfg.MaxPassengers,
		MaxLuggage:       c.cfg.MaxLuggage,
		RouteDistanceKm:  &tripKm,
		RouteDurationMin: &durationMin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.CreatePool(ctx, pool); err != nil {
		return nil, err
	}

	// Sole rider: pooled pricing still applies since later riders may
	// join, but with no co-riders the discount stays at the base rate.
	price := c.pricer.Calculate(tripKm, c.demand.Factor(), true, 1)

	member := &PoolMember{
		ID:              uuid.New(),
		PoolID:          pool.ID,
		RequestID:       request.ID,
		RiderID:         request.UserID,
		PickupSequence:  0,
		DropoffSequence: 1,
		DetourKm:        0,
		Price:           price.FinalPrice,
		CreatedAt:       now,
	}
	if err := tx.InsertMember(ctx, member); err != nil {
		return nil, err
	}

	passengers, luggage, err := tx.RecomputeCounters(ctx, pool.ID)
	if err != nil {
		return nil, err
	}
	pool.Passengers = passengers
	pool.Luggage = luggage

	if err := tx.UpdateRequestStatus(ctx, request.ID, RequestStatusMatched); err != nil {
		return nil, err
	}
	if err := tx.InsertPricingHistory(ctx, &pricing.HistoryRecord{
		ID:        uuid.New(),
		RequestID: request.ID,
		Breakdown: price,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	request.Status = RequestStatusMatched
	return &SubmitResult{
		Outcome: OutcomePoolCreated,
		Request: request,
		Pool:    pool,
		Member:  member,
		Price:   price,
	}, nil
}

// Cancel transitions a request to cancelled and removes it from its pool.
// Cancelling an already-terminal request is idempotent: it reports the
// current state and mutates nothing.
func (c *Coordinator) Cancel(ctx context.Context, requestID uuid.UUID) (*CancelResult, error) {
	var result *CancelResult
	var poolID *uuid.UUID

	err := c.repo.InTx(ctx, func(tx Tx) error {
		request, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status.IsTerminal() {
			result = &CancelResult{Outcome: OutcomeAlreadyTerminal, Status: request.Status}
			return nil
		}

		member, err := tx.MemberByRequest(ctx, requestID)
		if err != nil && !common.IsCode(err, common.CodeNotFound) {
			return err
		}
		if member != nil {
			if err := c.removeFromPool(ctx, tx, member); err != nil {
				return err
			}
			poolID = &member.PoolID
		}

		if err := tx.UpdateRequestStatus(ctx, requestID, RequestStatusCancelled); err != nil {
			return err
		}
		result = &CancelResult{Outcome: OutcomeCancelled, Status: RequestStatusCancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomeCancelled {
		c.cache.InvalidateRequest(ctx, requestID)
		if poolID != nil {
			c.cache.InvalidatePool(ctx, *poolID)
		}
		logger.WithContext(ctx).Info("ride request cancelled",
			zap.String("request_id", requestID.String()))
	}
	observability.CancellationsTotal.WithLabelValues(result.Outcome).Inc()
	return result, nil
}

// Confirm moves a matched request to confirmed. When the last unconfirmed
// member of a forming pool confirms, the pool itself moves to confirmed.
// Confirming a request in any other state is rejected as invalid_state.
func (c *Coordinator) Confirm(ctx context.Context, requestID uuid.UUID) (*ConfirmResult, error) {
	var result *ConfirmResult
	var poolID uuid.UUID

	err := c.repo.InTx(ctx, func(tx Tx) error {
		request, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusMatched {
			return common.NewInvalidStateError("only a matched request can be confirmed, status is " + string(request.Status))
		}

		member, err := tx.MemberByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		pool, err := tx.LockPool(ctx, member.PoolID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRequestStatus(ctx, requestID, RequestStatusConfirmed); err != nil {
			return err
		}

		poolStatus := pool.Status
		if pool.Status == PoolStatusForming {
			members, err := tx.MemberRequests(ctx, member.PoolID)
			if err != nil {
				return err
			}
			allConfirmed := true
			for _, m := range members {
				if m.Request.ID != requestID && m.Request.Status != RequestStatusConfirmed {
					allConfirmed = false
					break
				}
			}
			if allConfirmed {
				if err := tx.UpdatePoolStatus(ctx, member.PoolID, PoolStatusConfirmed); err != nil {
					return err
				}
				poolStatus = PoolStatusConfirmed
			}
		}

		request.Status = RequestStatusConfirmed
		poolID = member.PoolID
		result = &ConfirmResult{Request: request, PoolStatus: poolStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.InvalidateRequest(ctx, requestID)
	c.cache.InvalidatePool(ctx, poolID)
	logger.WithContext(ctx).Info("ride request confirmed",
		zap.String("request_id", requestID.String()),
		zap.String("pool_status", string(result.PoolStatus)))
	return result, nil
}

// removeFromPool drops a membership, rewrites counters from the surviving
// rows, and re-sequences the remaining riders. An emptied pool is
// cancelled rather than deleted.
func (c *Coordinator) removeFromPool(ctx context.Context, tx Tx, member *PoolMember) error {
	if _, err := tx.LockPool(ctx, member.PoolID); err != nil {
		return err
	}
	if err := tx.RemoveMember(ctx, member.PoolID, member.RequestID); err != nil {
		return err
	}
	if _, _, err := tx.RecomputeCounters(ctx, member.PoolID); err != nil {
		return err
	}

	remaining, err := tx.MemberRequests(ctx, member.PoolID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return tx.UpdatePoolStatus(ctx, member.PoolID, PoolStatusCancelled)
	}

	riders := make([]matching.Rider, 0, len(remaining))
	for _, m := range remaining {
		riders = append(riders, m.Request.MatchingRider())
	}
	seq := route.Sequence(stopsFor(riders))
	detours := route.Detours(seq)
	for _, m := range remaining {
		pSeq, dSeq := sequenceIndices(seq, m.Request.ID)
		if err := tx.UpdateMemberRoute(ctx, member.PoolID, m.Request.ID, pSeq, dSeq, detours[m.Request.ID]); err != nil {
			return err
		}
	}
	routeKm := route.LengthKm(seq)
	return tx.UpdatePoolRoute(ctx, member.PoolID, routeKm, routeDurationMin(routeKm))
}

// Quote prices a trip without creating any state. Both the solo fare and
// a pooled preview (sharing with one co-rider) are returned.
func (c *Coordinator) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	if !req.Pickup.Valid() || !req.Dropoff.Valid() {
		return nil, common.NewBadRequestError("pickup and dropoff must be valid coordinates", nil)
	}

	distance := geomath.DistanceKm(req.Pickup, req.Dropoff)
	demand := c.demand.Factor()
	return &QuoteResponse{
		DistanceKm: distance,
		Solo:       c.pricer.Calculate(distance, demand, false, 0),
		Pooled:     c.pricer.Calculate(distance, demand, true, 2),
	}, nil
}

// PoolSnapshot returns a pool with its members, served from cache when
// the cached view is fresh.
func (c *Coordinator) PoolSnapshot(ctx context.Context, poolID uuid.UUID) (*PoolWithMembers, error) {
	if snapshot, ok := c.cache.GetPool(ctx, poolID); ok {
		return snapshot, nil
	}
	snapshot, err := c.repo.GetPoolWithMembers(ctx, poolID)
	if err != nil {
		return nil, err
	}
	c.cache.SetPool(ctx, snapshot)
	return snapshot, nil
}

// Request returns a ride request with its pricing history
func (c *Coordinator) Request(ctx context.Context, requestID uuid.UUID) (*RideRequest, []*pricing.HistoryRecord, error) {
	request, err := c.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	history, err := c.repo.ListPricingHistory(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return request, history, nil
}

func validateSubmit(req *SubmitRequest) error {
	if !req.Pickup.Valid() || !req.Dropoff.Valid() {
		return common.NewBadRequestError("pickup and dropoff must be valid coordinates", nil)
	}
	if req.Pickup == req.Dropoff {
		return common.NewBadRequestError("pickup and dropoff must differ", nil)
	}
	if req.Passengers < 1 || req.Passengers > 4 {
		return common.NewBadRequestError("passengers must be between 1 and 4", nil)
	}
	if req.Luggage < 0 || req.Luggage > 4 {
		return common.NewBadRequestError("luggage must be between 0 and 4", nil)
	}
	if req.MaxDetourKm < 0 {
		return common.NewBadRequestError("max_detour_km cannot be negative", nil)
	}
	return nil
}

// sequenceIndices locates a request's pickup and dropoff positions in an
// ordered stop sequence
func sequenceIndices(seq []route.Stop, requestID uuid.UUID) (pickup, dropoff int) {
	for i, s := range seq {
		if s.RequestID != requestID {
			continue
		}
		if s.Kind == route.StopPickup {
			pickup = i
		} else {
			dropoff = i
		}
	}
	return pickup, dropoff
}

func stopsFor(riders []matching.Rider) []route.Stop {
	stops := make([]route.Stop, 0, 2*len(riders))
	for _, r := range riders {
		stops = append(stops,
			route.Stop{RequestID: r.RequestID, RiderID: r.RiderID, Location: r.Pickup, Kind: route.StopPickup},
			route.Stop{RequestID: r.RequestID, RiderID: r.RiderID, Location: r.Dropoff, Kind: route.StopDropoff},
		)
	}
	return stops
}

func derefMembers(members []*MemberDetail) []MemberDetail {
	out := make([]MemberDetail, 0, len(members))
	for _, m := range members {
		out = append(out, *m)
	}
	return out
}

func routeDurationMin(distanceKm float64) int {
	return int(distanceKm / avgSpeedKmh * 60)
}
