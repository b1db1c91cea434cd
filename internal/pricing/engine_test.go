package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return NewEngine(DefaultParams)
}

func TestCalculate_SoloNoSurge(t *testing.T) {
	// base 50 + 10km * 15 = 200, no surge, no discount
	b := testEngine().Calculate(10, 0, false, 0)

	require.Equal(t, 50.0, b.BaseFare)
	require.Equal(t, 150.0, b.DistanceFare)
	require.Equal(t, 1.0, b.SurgeMultiplier)
	require.Equal(t, 0.0, b.PoolDiscountPercent)
	require.Equal(t, 200.00, b.FinalPrice)
}

func TestCalculate_PooledTwoRiders(t *testing.T) {
	// poolSize=2 => discount 15 + 5 = 20%, 200 * 0.20 = 40 off
	b := testEngine().Calculate(10, 0, true, 2)

	require.Equal(t, 20.0, b.PoolDiscountPercent)
	require.Equal(t, 160.00, b.FinalPrice)
}

func TestCalculate_DiscountCapped(t *testing.T) {
	// poolSize=8 would give 50%; capped at 30%
	b := testEngine().Calculate(10, 0, true, 8)
	require.Equal(t, 30.0, b.PoolDiscountPercent)
}

func TestCalculate_SurgeCapped(t *testing.T) {
	// demand 2.0 => raw surge 2.0, within cap; demand above cap clamps
	b := testEngine().Calculate(10, 2.0, false, 0)
	require.Equal(t, 2.0, b.SurgeMultiplier)
	require.Equal(t, 400.00, b.FinalPrice)

	capped := NewEngine(Params{
		BaseFare:        50,
		PerKmRate:       15,
		SurgeMax:        1.5,
		BaseDiscountPct: 15,
		MaxDiscountPct:  30,
	}).Calculate(10, 2.0, false, 0)
	require.Equal(t, 1.5, capped.SurgeMultiplier)
}

func TestCalculate_Deterministic(t *testing.T) {
	a := testEngine().Calculate(7.3, 0.8, true, 3)
	b := testEngine().Calculate(7.3, 0.8, true, 3)
	require.Equal(t, a, b)
}

func TestCalculate_RoundsFinalPriceOnly(t *testing.T) {
	// subtotal 166.55, surge 1.15 => raw final 191.5325, rounded 191.53
	b := testEngine().Calculate(7.77, 0.3, false, 0)
	require.Equal(t, 191.53, b.FinalPrice)
	// distance fare keeps full precision
	require.InDelta(t, 116.55, b.DistanceFare, 1e-9)
}

func TestCalculate_ZeroDistance(t *testing.T) {
	b := testEngine().Calculate(0, 0, false, 0)
	require.Equal(t, 50.00, b.FinalPrice)
}

func TestComputeDemandFactor(t *testing.T) {
	tests := []struct {
		name      string
		pending   int
		threshold int
		hour      int
		want      float64
	}{
		{"quiet midday", 0, 50, 13, 0},
		{"half volume midday", 25, 50, 13, 0.5},
		{"saturated midday", 50, 50, 13, 1.0},
		{"over-saturated clamps volume", 200, 50, 13, 1.5},
		{"morning peak adds boost", 25, 50, 8, 1.0},
		{"evening peak adds boost", 25, 50, 18, 1.0},
		{"never exceeds two", 500, 50, 18, 2.0},
		{"zero threshold does not divide by zero", 10, 0, 13, 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, ComputeDemandFactor(tc.pending, tc.threshold, tc.hour), 1e-9)
		})
	}
}

type stubCounter struct {
	pending int
	err     error
}

func (s *stubCounter) CountPendingSince(context.Context, time.Time) (int, error) {
	return s.pending, s.err
}

func TestDemandMonitor_RefreshPublishesFactor(t *testing.T) {
	m := NewDemandMonitor(&stubCounter{pending: 25}, 50, 15*time.Minute, time.Minute)
	require.Zero(t, m.Factor())

	m.Refresh(context.Background())
	require.Greater(t, m.Factor(), 0.0)
	require.LessOrEqual(t, m.Factor(), 2.0)
}

func TestDemandMonitor_KeepsLastFactorOnError(t *testing.T) {
	counter := &stubCounter{pending: 25}
	m := NewDemandMonitor(counter, 50, 15*time.Minute, time.Minute)

	m.Refresh(context.Background())
	last := m.Factor()

	counter.err = errors.New("db down")
	m.Refresh(context.Background())
	require.Equal(t, last, m.Factor())
}
