// Package route orders pickup/dropoff stops into a feasible visiting
// order and measures the detour each rider incurs from sharing.
package route

import (
	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/geomath"
)

// StopKind distinguishes pickups from dropoffs
type StopKind string

const (
	StopPickup  StopKind = "pickup"
	StopDropoff StopKind = "dropoff"
)

// Stop is an ephemeral route point derived from a ride request. It only
// exists during sequencing.
type Stop struct {
	RequestID uuid.UUID
	RiderID   uuid.UUID
	Location  geomath.Coordinate
	Kind      StopKind
}

// Sequence orders an unordered stop set using constrained nearest-neighbor:
// starting from a pickup, it repeatedly visits the nearest unvisited stop
// whose constraint holds (a dropoff is only eligible once its rider's
// pickup has been visited). If no eligible stop remains the first
// unvisited stop is taken regardless, so the result always contains every
// input stop exactly once.
func Sequence(stops []Stop) []Stop {
	if len(stops) <= 1 {
		return append([]Stop(nil), stops...)
	}

	visited := make([]bool, len(stops))
	pickedUp := make(map[uuid.UUID]bool, len(stops)/2)

	startIdx := 0
	for i, s := range stops {
		if s.Kind == StopPickup {
			startIdx = i
			break
		}
	}

	ordered := make([]Stop, 0, len(stops))
	visit := func(i int) {
		visited[i] = true
		if stops[i].Kind == StopPickup {
			pickedUp[stops[i].RequestID] = true
		}
		ordered = append(ordered, stops[i])
	}
	visit(startIdx)

	for len(ordered) < len(stops) {
		current := ordered[len(ordered)-1].Location

		best := -1
		bestDist := 0.0
		for i, s := range stops {
			if visited[i] {
				continue
			}
			if s.Kind == StopDropoff && !pickedUp[s.RequestID] {
				continue
			}
			d := geomath.DistanceKm(current, s.Location)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}

		if best == -1 {
			// Constraint deadlock: take the first unvisited stop. The
			// resulting order may place a dropoff ahead of its pickup;
			// Detours clamps the garbage this produces.
			for i := range stops {
				if !visited[i] {
					best = i
					break
				}
			}
		}
		visit(best)
	}

	return ordered
}

// Detours reports, per request, the extra distance its rider travels
// along the ordered sequence compared to a direct pickup-to-dropoff
// trip. Values are clamped to zero: the fallback path in Sequence can
// order stops so that the raw difference goes negative, and a negative
// detour is meaningless to callers.
func Detours(ordered []Stop) map[uuid.UUID]float64 {
	pickupIdx := make(map[uuid.UUID]int)
	dropoffIdx := make(map[uuid.UUID]int)
	for i, s := range ordered {
		switch s.Kind {
		case StopPickup:
			pickupIdx[s.RequestID] = i
		case StopDropoff:
			dropoffIdx[s.RequestID] = i
		}
	}

	detours := make(map[uuid.UUID]float64, len(pickupIdx))
	for reqID, pIdx := range pickupIdx {
		dIdx, ok := dropoffIdx[reqID]
		if !ok {
			continue
		}
		lo, hi := pIdx, dIdx
		if lo > hi {
			lo, hi = hi, lo
		}

		var actual float64
		for i := lo + 1; i <= hi; i++ {
			actual += geomath.DistanceKm(ordered[i-1].Location, ordered[i].Location)
		}
		direct := geomath.DistanceKm(ordered[pIdx].Location, ordered[dIdx].Location)

		detour := actual - direct
		if detour < 0 {
			detour = 0
		}
		detours[reqID] = detour
	}

	return detours
}

// LengthKm is the total distance of an ordered stop sequence
func LengthKm(ordered []Stop) float64 {
	points := make([]geomath.Coordinate, len(ordered))
	for i, s := range ordered {
		points[i] = s.Location
	}
	return geomath.PathLengthKm(points)
}
