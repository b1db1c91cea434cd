package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// LifecycleTestSuite drives a full pooling flow through the coordinator:
// several riders submit similar trips, share a pool, and one cancels.
type LifecycleTestSuite struct {
	suite.Suite
	repo  *fakeRepo
	coord *Coordinator
	ctx   context.Context
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}

func (s *LifecycleTestSuite) SetupTest() {
	s.repo = newFakeRepo()
	s.coord = newTestCoordinator(s.repo, 0)
	s.ctx = context.Background()
}

func (s *LifecycleTestSuite) TestSharedRideLifecycle() {
	t := s.T()

	// First rider opens a pool
	first, err := s.coord.Submit(s.ctx, submitReq(sfPickup, sfDropoff, 1))
	require.NoError(t, err)
	require.Equal(t, OutcomePoolCreated, first.Outcome)

	// Two riders on similar routes join it
	second, err := s.coord.Submit(s.ctx, submitReq(nearPickup, nearDropoff, 1))
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, second.Outcome)
	require.Equal(t, first.Pool.ID, second.Pool.ID)

	third, err := s.coord.Submit(s.ctx, submitReq(sfPickup, sfDropoff, 1))
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, third.Outcome)
	require.Equal(t, first.Pool.ID, third.Pool.ID)

	snapshot, err := s.coord.PoolSnapshot(s.ctx, first.Pool.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 3)
	require.Equal(t, 3, snapshot.Pool.Passengers)
	require.NotNil(t, snapshot.Pool.RouteDistanceKm)

	// Stop order interleaves but every rider boards before alighting
	for _, m := range snapshot.Members {
		require.Less(t, m.Member.PickupSequence, m.Member.DropoffSequence)
	}

	// The later joiner pays less than a solo trip would cost
	soloQuote, err := s.coord.Quote(s.ctx, &QuoteRequest{
		Pickup: nearPickup, Dropoff: nearDropoff, Passengers: 1,
	})
	require.NoError(t, err)
	require.Less(t, second.Price.FinalPrice, soloQuote.Solo.FinalPrice)

	// One rider cancels; the pool shrinks and stays open
	cancel, err := s.coord.Cancel(s.ctx, second.Request.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCancelled, cancel.Outcome)

	snapshot, err = s.coord.PoolSnapshot(s.ctx, first.Pool.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 2)
	require.Equal(t, 2, snapshot.Pool.Passengers)
	require.True(t, snapshot.Pool.Status.IsOpen())

	// Pricing history is append-only across the lifecycle
	_, history, err := s.coord.Request(s.ctx, second.Request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func (s *LifecycleTestSuite) TestEveryRiderLandsExactlyOnce() {
	t := s.T()

	for i := 0; i < 9; i++ {
		_, err := s.coord.Submit(s.ctx, submitReq(sfPickup, sfDropoff, 1))
		require.NoError(t, err)
	}

	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	assigned := 0
	for poolID, members := range s.repo.members {
		var passengers int
		for _, m := range members {
			passengers += s.repo.requests[m.RequestID].Passengers
			assigned++
		}
		require.Equal(t, passengers, s.repo.pools[poolID].Passengers)
		require.LessOrEqual(t, passengers, s.repo.pools[poolID].MaxPassengers)
	}
	require.Equal(t, 9, assigned)
}
