package pricing

import (
	"time"

	"github.com/google/uuid"
)

// PriceBreakdown is an immutable pricing result. Persisted as an
// append-only history row per pricing event, never mutated.
type PriceBreakdown struct {
	BaseFare            float64 `json:"base_fare"`
	DistanceFare        float64 `json:"distance_fare"`
	SurgeMultiplier     float64 `json:"surge_multiplier"`
	PoolDiscountPercent float64 `json:"pool_discount_percent"`
	FinalPrice          float64 `json:"final_price"`
	DemandFactor        float64 `json:"demand_factor"`
	DistanceKm          float64 `json:"distance_km"`
}

// HistoryRecord is one persisted pricing event
type HistoryRecord struct {
	ID        uuid.UUID      `json:"id"`
	RequestID uuid.UUID      `json:"request_id"`
	Breakdown PriceBreakdown `json:"breakdown"`
	CreatedAt time.Time      `json:"created_at"`
}

// Params holds the fare calculation constants
type Params struct {
	BaseFare        float64
	PerKmRate       float64
	SurgeMax        float64
	BaseDiscountPct float64
	MaxDiscountPct  float64
}

// DefaultParams is the global fallback used when no configuration is loaded
var DefaultParams = Params{
	BaseFare:        50.0,
	PerKmRate:       15.0,
	SurgeMax:        2.0,
	BaseDiscountPct: 15.0,
	MaxDiscountPct:  30.0,
}
