// Package pricing converts a trip distance and a demand signal into a
// fare breakdown. Calculation is pure; persisting history rows and
// sampling demand are caller concerns.
package pricing

import "math"

// Engine calculates fare breakdowns
type Engine struct {
	params Params
}

// NewEngine creates a pricing engine with the given parameters
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Calculate produces a price breakdown for a trip. demandFactor is a
// normalized [0,2] signal supplied by the demand monitor; poolSize is the
// number of riders sharing the pool including this one, not the seats
// they book, and is ignored unless isPooled is set. Intermediate values
// keep full float precision; only
// the final price is rounded to currency precision.
func (e *Engine) Calculate(distanceKm, demandFactor float64, isPooled bool, poolSize int) PriceBreakdown {
	subtotal := e.params.BaseFare + distanceKm*e.params.PerKmRate

	surge := 1.0 + demandFactor*0.5
	if surge > e.params.SurgeMax {
		surge = e.params.SurgeMax
	}
	surgeAmount := subtotal * (surge - 1.0)

	var discountPct float64
	if isPooled {
		discountPct = e.params.BaseDiscountPct + float64(poolSize-1)*5.0
		if discountPct > e.params.MaxDiscountPct {
			discountPct = e.params.MaxDiscountPct
		}
	}
	poolDiscount := (subtotal + surgeAmount) * discountPct / 100.0

	finalPrice := subtotal + surgeAmount - poolDiscount
	if finalPrice < 0 {
		finalPrice = 0
	}

	return PriceBreakdown{
		BaseFare:            e.params.BaseFare,
		DistanceFare:        distanceKm * e.params.PerKmRate,
		SurgeMultiplier:     surge,
		PoolDiscountPercent: discountPct,
		FinalPrice:          roundCurrency(finalPrice),
		DemandFactor:        demandFactor,
		DistanceKm:          distanceKm,
	}
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
