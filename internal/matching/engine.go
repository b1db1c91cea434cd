// Package matching evaluates pending ride requests against candidate
// pools and selects the best pool, or signals that a new pool should be
// opened. It is pure compute: no locks are held and no storage is
// touched during a scan.
package matching

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/geomath"
	"github.com/richxcame/pool-matching/internal/route"
)

// Rider is the matching view of a ride request
type Rider struct {
	RequestID   uuid.UUID
	RiderID     uuid.UUID
	Pickup      geomath.Coordinate
	Dropoff     geomath.Coordinate
	Passengers  int
	Luggage     int
	MaxDetourKm float64
	RequestedAt time.Time
}

// PoolCandidate bundles a pool with its current members for evaluation
type PoolCandidate struct {
	PoolID        uuid.UUID
	CreatedAt     time.Time
	Passengers    int
	Luggage       int
	MaxPassengers int
	MaxLuggage    int
	Members       []Rider
}

// Config holds matching tunables
type Config struct {
	GlobalMaxDetourKm float64
	MaxPassengers     int
	MaxLuggage        int
}

// DefaultConfig returns the default matching configuration
func DefaultConfig() Config {
	return Config{
		GlobalMaxDetourKm: 5.0,
		MaxPassengers:     4,
		MaxLuggage:        8,
	}
}

// MatchResult describes the selected pool and the route it implies
type MatchResult struct {
	Candidate PoolCandidate
	Score     float64
	Sequence  []route.Stop
	Detours   map[uuid.UUID]float64
	RouteKm   float64
}

// Engine scores candidate pools for pending requests
type Engine struct {
	cfg Config
}

// NewEngine creates a matching engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// FindBestMatch evaluates a request against candidate pools and returns
// the highest-scoring feasible pool. The boolean is false when no
// candidate passes the filters; that is the normal "open a new pool"
// outcome, not an error. Ties go to the earliest-created pool.
func (e *Engine) FindBestMatch(req Rider, candidates []PoolCandidate) (*MatchResult, bool) {
	ordered := make([]PoolCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var best *MatchResult
	for _, cand := range ordered {
		result, ok := e.Evaluate(req, cand)
		if !ok {
			continue
		}
		// Strict greater keeps the earliest candidate on equal scores
		if best == nil || result.Score > best.Score {
			best = result
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// Evaluate runs the filter pipeline for a single candidate. Callers that
// hold row locks use it to re-validate a selection against fresh state.
func (e *Engine) Evaluate(req Rider, cand PoolCandidate) (*MatchResult, bool) {
	// Capacity filter
	if cand.Passengers+req.Passengers > cand.MaxPassengers {
		return nil, false
	}
	if cand.Luggage+req.Luggage > cand.MaxLuggage {
		return nil, false
	}

	// Coarse location filter. Dropoff divergence is tolerated at twice
	// the pickup tolerance: riders converge at pickup but may disperse
	// at dropoff. A pool with no members always passes.
	if len(cand.Members) > 0 && !e.locationCompatible(req, cand.Members) {
		return nil, false
	}

	// Route feasibility: sequence the combined stop set and check every
	// rider's detour, including the candidate request's own.
	riders := append(append([]Rider(nil), cand.Members...), req)
	seq := route.Sequence(stopsFor(riders))
	detours := route.Detours(seq)

	for _, r := range riders {
		limit := r.MaxDetourKm
		if e.cfg.GlobalMaxDetourKm < limit {
			limit = e.cfg.GlobalMaxDetourKm
		}
		if detours[r.RequestID] > limit {
			return nil, false
		}
	}

	routeKm := route.LengthKm(seq)
	return &MatchResult{
		Candidate: cand,
		Score:     e.score(cand, detours, routeKm),
		Sequence:  seq,
		Detours:   detours,
		RouteKm:   routeKm,
	}, true
}

// locationCompatible reports whether at least one existing member's trip
// runs close enough to the request's
func (e *Engine) locationCompatible(req Rider, members []Rider) bool {
	for _, m := range members {
		pickupOK := geomath.DistanceKm(m.Pickup, req.Pickup) <= req.MaxDetourKm
		dropoffOK := geomath.DistanceKm(m.Dropoff, req.Dropoff) <= 2*req.MaxDetourKm
		if pickupOK && dropoffOK {
			return true
		}
	}
	return false
}

// score weighs utilization below detour below absolute route length:
// rider-experienced delay is the primary quality signal, trip efficiency
// second, with fill as a consolidation tiebreaker.
func (e *Engine) score(cand PoolCandidate, detours map[uuid.UUID]float64, routeKm float64) float64 {
	fill := float64(cand.Passengers) / float64(cand.MaxPassengers)

	var avgDetour float64
	if len(detours) > 0 {
		var sum float64
		for _, d := range detours {
			sum += d
		}
		avgDetour = sum / float64(len(detours))
	}

	detourTerm := 10 - avgDetour
	if detourTerm < 0 {
		detourTerm = 0
	}
	routeTerm := 50 - routeKm
	if routeTerm < 0 {
		routeTerm = 0
	}

	return 30*fill + 40*detourTerm + 30*routeTerm
}

func stopsFor(riders []Rider) []route.Stop {
	stops := make([]route.Stop, 0, 2*len(riders))
	for _, r := range riders {
		stops = append(stops,
			route.Stop{RequestID: r.RequestID, RiderID: r.RiderID, Location: r.Pickup, Kind: route.StopPickup},
			route.Stop{RequestID: r.RequestID, RiderID: r.RiderID, Location: r.Dropoff, Kind: route.StopDropoff},
		)
	}
	return stops
}
