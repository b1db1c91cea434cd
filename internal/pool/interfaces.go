package pool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/pricing"
)

// Repository is the persistence boundary for requests and pools. Reads
// outside InTx are snapshot reads and may be stale; every mutation goes
// through InTx so that row locks and counter recomputation happen under
// one transaction.
type Repository interface {
	CreateRequest(ctx context.Context, req *RideRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*RideRequest, error)
	GetPoolWithMembers(ctx context.Context, id uuid.UUID) (*PoolWithMembers, error)
	ListOpenPools(ctx context.Context, limit int) ([]*PoolWithMembers, error)
	ListUnassignedPending(ctx context.Context, olderThan time.Time, limit int) ([]*RideRequest, error)
	ListPricingHistory(ctx context.Context, requestID uuid.UUID) ([]*pricing.HistoryRecord, error)

	// InTx runs fn inside a transaction; a non-nil error rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the mutations available inside a transaction. Lock order is
// always request before pool; both lock methods block on conflicting
// row locks until commit or abort.
type Tx interface {
	LockRequest(ctx context.Context, id uuid.UUID) (*RideRequest, error)
	LockPool(ctx context.Context, id uuid.UUID) (*RidePool, error)

	CreatePool(ctx context.Context, p *RidePool) error
	InsertMember(ctx context.Context, m *PoolMember) error
	UpdateMemberRoute(ctx context.Context, poolID, requestID uuid.UUID, pickupSeq, dropoffSeq int, detourKm float64) error
	RemoveMember(ctx context.Context, poolID, requestID uuid.UUID) error
	MemberByRequest(ctx context.Context, requestID uuid.UUID) (*PoolMember, error)
	MemberRequests(ctx context.Context, poolID uuid.UUID) ([]*MemberDetail, error)

	// RecomputeCounters rewrites the pool's passenger and luggage counters
	// from its membership rows and returns the fresh values.
	RecomputeCounters(ctx context.Context, poolID uuid.UUID) (passengers, luggage int, err error)

	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error
	UpdatePoolStatus(ctx context.Context, id uuid.UUID, status PoolStatus) error
	UpdatePoolRoute(ctx context.Context, id uuid.UUID, distanceKm float64, durationMin int) error

	InsertPricingHistory(ctx context.Context, rec *pricing.HistoryRecord) error
}

// SnapshotCache caches read views. Implementations must degrade to a
// miss on any backend error; the cache is never authoritative.
type SnapshotCache interface {
	GetPool(ctx context.Context, id uuid.UUID) (*PoolWithMembers, bool)
	SetPool(ctx context.Context, snapshot *PoolWithMembers)
	InvalidatePool(ctx context.Context, id uuid.UUID)
	InvalidateRequest(ctx context.Context, id uuid.UUID)
}
