package matching

import "sort"

// GenerateOptimalPools greedily groups unassigned pending requests into
// prospective pools: the earliest-submitted unassigned request seeds a
// group, then later unassigned requests that pass the same location and
// capacity checks are absorbed until the caps are hit. This is the
// cold-start and backfill path; it is in-memory only and never touches
// persistence.
func (e *Engine) GenerateOptimalPools(requests []Rider) [][]Rider {
	ordered := make([]Rider, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RequestedAt.Before(ordered[j].RequestedAt)
	})

	assigned := make(map[int]bool, len(ordered))
	var groups [][]Rider

	for i := range ordered {
		if assigned[i] {
			continue
		}
		group := []Rider{ordered[i]}
		passengers := ordered[i].Passengers
		luggage := ordered[i].Luggage
		assigned[i] = true

		for j := i + 1; j < len(ordered); j++ {
			if assigned[j] {
				continue
			}
			cand := ordered[j]
			if passengers+cand.Passengers > e.cfg.MaxPassengers {
				continue
			}
			if luggage+cand.Luggage > e.cfg.MaxLuggage {
				continue
			}
			if !e.locationCompatible(cand, group) {
				continue
			}
			group = append(group, cand)
			passengers += cand.Passengers
			luggage += cand.Luggage
			assigned[j] = true

			if passengers >= e.cfg.MaxPassengers {
				break
			}
		}

		groups = append(groups, group)
	}

	return groups
}
