package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/geomath"
)

func makeBenchCandidates(n int) []PoolCandidate {
	candidates := make([]PoolCandidate, n)
	for i := range candidates {
		member := Rider{
			RequestID:   uuid.New(),
			RiderID:     uuid.New(),
			Pickup:      geomath.Coordinate{Latitude: 37.7749 + float64(i%20)*0.002, Longitude: -122.4194},
			Dropoff:     geomath.Coordinate{Latitude: 37.8044 + float64(i%20)*0.002, Longitude: -122.2712},
			Passengers:  1 + i%3,
			Luggage:     i % 2,
			MaxDetourKm: 5.0,
		}
		candidates[i] = PoolCandidate{
			PoolID:        uuid.New(),
			CreatedAt:     time.Now().Add(-time.Duration(i) * time.Minute),
			Passengers:    member.Passengers,
			Luggage:       member.Luggage,
			MaxPassengers: 4,
			MaxLuggage:    8,
			Members:       []Rider{member},
		}
	}
	return candidates
}

func BenchmarkEngine_FindBestMatch_10(b *testing.B) {
	benchmarkFindBestMatchN(b, 10)
}

func BenchmarkEngine_FindBestMatch_50(b *testing.B) {
	benchmarkFindBestMatchN(b, 50)
}

func BenchmarkEngine_FindBestMatch_200(b *testing.B) {
	benchmarkFindBestMatchN(b, 200)
}

func benchmarkFindBestMatchN(b *testing.B, n int) {
	engine := NewEngine(DefaultConfig())
	candidates := makeBenchCandidates(n)
	req := Rider{
		RequestID:   uuid.New(),
		RiderID:     uuid.New(),
		Pickup:      geomath.Coordinate{Latitude: 37.7760, Longitude: -122.4190},
		Dropoff:     geomath.Coordinate{Latitude: 37.8050, Longitude: -122.2710},
		Passengers:  1,
		Luggage:     1,
		MaxDetourKm: 5.0,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.FindBestMatch(req, candidates)
	}
}

func BenchmarkEngine_GenerateOptimalPools_40(b *testing.B) {
	engine := NewEngine(DefaultConfig())
	riders := make([]Rider, 40)
	for i := range riders {
		riders[i] = Rider{
			RequestID:   uuid.New(),
			RiderID:     uuid.New(),
			Pickup:      geomath.Coordinate{Latitude: 37.7749 + float64(i%10)*0.001, Longitude: -122.4194},
			Dropoff:     geomath.Coordinate{Latitude: 37.8044 + float64(i%10)*0.001, Longitude: -122.2712},
			Passengers:  1,
			MaxDetourKm: 5.0,
			RequestedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.GenerateOptimalPools(riders)
	}
}
