package pool

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/pool-matching/internal/observability"
	"github.com/richxcame/pool-matching/internal/pricing"
	"github.com/richxcame/pool-matching/pkg/common"
)

// PostgresRepository handles request and pool persistence
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new pool repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// mapDBError translates driver errors into application errors.
// Serialization failures (40001), deadlocks (40P01) and lock timeouts
// (55P03) all become a retryable concurrency conflict.
func mapDBError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFoundError(notFoundMsg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			observability.ConcurrencyConflicts.Inc()
			return common.NewConflictError("transaction conflicted, retry against fresh state", err)
		}
	}
	return common.NewInternalServerError("database error", err)
}

const requestColumns = `id, user_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	passengers, luggage, max_detour_km, status, requested_at, updated_at`

func scanRequest(row pgx.Row) (*RideRequest, error) {
	var req RideRequest
	err := row.Scan(
		&req.ID, &req.UserID,
		&req.Pickup.Latitude, &req.Pickup.Longitude,
		&req.Dropoff.Latitude, &req.Dropoff.Longitude,
		&req.Passengers, &req.Luggage, &req.MaxDetourKm,
		&req.Status, &req.RequestedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

const poolColumns = `id, code, status, current_passenger_count, current_luggage_count,
	max_passengers, max_luggage, route_distance_km, route_duration_min, created_at, updated_at`

func scanPool(row pgx.Row) (*RidePool, error) {
	var p RidePool
	err := row.Scan(
		&p.ID, &p.Code, &p.Status, &p.Passengers, &p.Luggage,
		&p.MaxPassengers, &p.MaxLuggage,
		&p.RouteDistanceKm, &p.RouteDurationMin,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateRequest inserts a new ride request
func (r *PostgresRepository) CreateRequest(ctx context.Context, req *RideRequest) error {
	query := `
		INSERT INTO ride_requests (
			id, user_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			passengers, luggage, max_detour_km, status, requested_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		req.ID, req.UserID,
		req.Pickup.Latitude, req.Pickup.Longitude,
		req.Dropoff.Latitude, req.Dropoff.Longitude,
		req.Passengers, req.Luggage, req.MaxDetourKm,
		req.Status, req.RequestedAt, req.UpdatedAt,
	)
	return mapDBError(err, "ride request not found")
}

// GetRequest fetches a ride request by id
func (r *PostgresRepository) GetRequest(ctx context.Context, id uuid.UUID) (*RideRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM ride_requests WHERE id = $1`
	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapDBError(err, "ride request not found")
	}
	return req, nil
}

// GetPoolWithMembers fetches a pool and its membership in one snapshot
func (r *PostgresRepository) GetPoolWithMembers(ctx context.Context, id uuid.UUID) (*PoolWithMembers, error) {
	query := `SELECT ` + poolColumns + ` FROM ride_pools WHERE id = $1`
	pool, err := scanPool(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapDBError(err, "ride pool not found")
	}
	members, err := r.queryMembers(ctx, r.db, id)
	if err != nil {
		return nil, mapDBError(err, "ride pool not found")
	}
	return &PoolWithMembers{Pool: *pool, Members: members}, nil
}

// ListOpenPools returns pools that can still accept members, oldest
// first. Full pools are excluded here, not just in the matching filters:
// the candidate list is bounded, and a full pool occupying a slot would
// crowd out a joinable one.
func (r *PostgresRepository) ListOpenPools(ctx context.Context, limit int) ([]*PoolWithMembers, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM ride_pools
		WHERE status IN ('forming', 'confirmed')
		  AND current_passenger_count < max_passengers
		  AND current_luggage_count < max_luggage
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, mapDBError(err, "ride pools not found")
	}
	defer rows.Close()

	var pools []*RidePool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, mapDBError(err, "ride pools not found")
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err, "ride pools not found")
	}

	out := make([]*PoolWithMembers, 0, len(pools))
	for _, p := range pools {
		members, err := r.queryMembers(ctx, r.db, p.ID)
		if err != nil {
			return nil, mapDBError(err, "ride pools not found")
		}
		out = append(out, &PoolWithMembers{Pool: *p, Members: members})
	}
	return out, nil
}

// ListUnassignedPending returns pending requests with no pool membership,
// oldest first. Used by the batch backfill matcher.
func (r *PostgresRepository) ListUnassignedPending(ctx context.Context, olderThan time.Time, limit int) ([]*RideRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM ride_requests r
		WHERE r.status = 'pending'
		  AND r.requested_at <= $1
		  AND NOT EXISTS (SELECT 1 FROM pool_members m WHERE m.request_id = r.id)
		ORDER BY r.requested_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, mapDBError(err, "ride requests not found")
	}
	defer rows.Close()

	var requests []*RideRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, mapDBError(err, "ride requests not found")
		}
		requests = append(requests, req)
	}
	return requests, mapDBError(rows.Err(), "ride requests not found")
}

// ListPricingHistory returns the append-only pricing events for a request
func (r *PostgresRepository) ListPricingHistory(ctx context.Context, requestID uuid.UUID) ([]*pricing.HistoryRecord, error) {
	query := `
		SELECT id, request_id, base_fare, distance_fare, surge_multiplier,
			pool_discount_percent, final_price, demand_factor, distance_km, created_at
		FROM pricing_history
		WHERE request_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, mapDBError(err, "pricing history not found")
	}
	defer rows.Close()

	var records []*pricing.HistoryRecord
	for rows.Next() {
		var rec pricing.HistoryRecord
		err := rows.Scan(
			&rec.ID, &rec.RequestID,
			&rec.Breakdown.BaseFare, &rec.Breakdown.DistanceFare,
			&rec.Breakdown.SurgeMultiplier, &rec.Breakdown.PoolDiscountPercent,
			&rec.Breakdown.FinalPrice, &rec.Breakdown.DemandFactor,
			&rec.Breakdown.DistanceKm, &rec.CreatedAt,
		)
		if err != nil {
			return nil, mapDBError(err, "pricing history not found")
		}
		records = append(records, &rec)
	}
	return records, mapDBError(rows.Err(), "pricing history not found")
}

// InTx runs fn inside a transaction, rolling back on any error
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := r.db.Begin(ctx)
	if err != nil {
		return mapDBError(err, "")
	}
	defer pgtx.Rollback(ctx)

	if err := fn(&postgresTx{tx: pgtx, repo: r}); err != nil {
		return err
	}
	return mapDBError(pgtx.Commit(ctx), "")
}

// queryMembers loads membership rows joined with their requests; q is
// either the pool or an open transaction.
func (r *PostgresRepository) queryMembers(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, poolID uuid.UUID) ([]MemberDetail, error) {
	query := `
		SELECT m.id, m.pool_id, m.request_id, m.rider_id,
			m.pickup_sequence, m.dropoff_sequence, m.detour_km, m.price, m.created_at,
			r.id, r.user_id, r.pickup_lat, r.pickup_lng, r.dropoff_lat, r.dropoff_lng,
			r.passengers, r.luggage, r.max_detour_km, r.status, r.requested_at, r.updated_at
		FROM pool_members m
		JOIN ride_requests r ON r.id = m.request_id
		WHERE m.pool_id = $1
		ORDER BY m.pickup_sequence ASC
	`
	rows, err := q.Query(ctx, query, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberDetail
	for rows.Next() {
		var d MemberDetail
		err := rows.Scan(
			&d.Member.ID, &d.Member.PoolID, &d.Member.RequestID, &d.Member.RiderID,
			&d.Member.PickupSequence, &d.Member.DropoffSequence,
			&d.Member.DetourKm, &d.Member.Price, &d.Member.CreatedAt,
			&d.Request.ID, &d.Request.UserID,
			&d.Request.Pickup.Latitude, &d.Request.Pickup.Longitude,
			&d.Request.Dropoff.Latitude, &d.Request.Dropoff.Longitude,
			&d.Request.Passengers, &d.Request.Luggage, &d.Request.MaxDetourKm,
			&d.Request.Status, &d.Request.RequestedAt, &d.Request.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		members = append(members, d)
	}
	return members, rows.Err()
}

// postgresTx implements Tx over an open pgx transaction
type postgresTx struct {
	tx   pgx.Tx
	repo *PostgresRepository
}

// LockRequest reads a request under FOR UPDATE, blocking on conflicting locks
func (t *postgresTx) LockRequest(ctx context.Context, id uuid.UUID) (*RideRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM ride_requests WHERE id = $1 FOR UPDATE`
	req, err := scanRequest(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapDBError(err, "ride request not found")
	}
	return req, nil
}

// LockPool reads a pool under FOR UPDATE, blocking on conflicting locks
func (t *postgresTx) LockPool(ctx context.Context, id uuid.UUID) (*RidePool, error) {
	query := `SELECT ` + poolColumns + ` FROM ride_pools WHERE id = $1 FOR UPDATE`
	pool, err := scanPool(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapDBError(err, "ride pool not found")
	}
	return pool, nil
}

// CreatePool inserts a new pool
func (t *postgresTx) CreatePool(ctx context.Context, p *RidePool) error {
	query := `
		INSERT INTO ride_pools (
			id, code, status, current_passenger_count, current_luggage_count,
			max_passengers, max_luggage, route_distance_km, route_duration_min,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := t.tx.Exec(ctx, query,
		p.ID, p.Code, p.Status, p.Passengers, p.Luggage,
		p.MaxPassengers, p.MaxLuggage, p.RouteDistanceKm, p.RouteDurationMin,
		p.CreatedAt, p.UpdatedAt,
	)
	return mapDBError(err, "ride pool not found")
}

// InsertMember adds a membership row
func (t *postgresTx) InsertMember(ctx context.Context, m *PoolMember) error {
	query := `
		INSERT INTO pool_members (
			id, pool_id, request_id, rider_id,
			pickup_sequence, dropoff_sequence, detour_km, price, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.Exec(ctx, query,
		m.ID, m.PoolID, m.RequestID, m.RiderID,
		m.PickupSequence, m.DropoffSequence, m.DetourKm, m.Price, m.CreatedAt,
	)
	return mapDBError(err, "ride pool not found")
}

// UpdateMemberRoute rewrites a member's stop positions and detour
func (t *postgresTx) UpdateMemberRoute(ctx context.Context, poolID, requestID uuid.UUID, pickupSeq, dropoffSeq int, detourKm float64) error {
	query := `
		UPDATE pool_members
		SET pickup_sequence = $3, dropoff_sequence = $4, detour_km = $5
		WHERE pool_id = $1 AND request_id = $2
	`
	_, err := t.tx.Exec(ctx, query, poolID, requestID, pickupSeq, dropoffSeq, detourKm)
	return mapDBError(err, "pool member not found")
}

// RemoveMember deletes a membership row
func (t *postgresTx) RemoveMember(ctx context.Context, poolID, requestID uuid.UUID) error {
	query := `DELETE FROM pool_members WHERE pool_id = $1 AND request_id = $2`
	_, err := t.tx.Exec(ctx, query, poolID, requestID)
	return mapDBError(err, "pool member not found")
}

// MemberByRequest finds the membership row for a request, if any
func (t *postgresTx) MemberByRequest(ctx context.Context, requestID uuid.UUID) (*PoolMember, error) {
	query := `
		SELECT id, pool_id, request_id, rider_id,
			pickup_sequence, dropoff_sequence, detour_km, price, created_at
		FROM pool_members
		WHERE request_id = $1
	`
	var m PoolMember
	err := t.tx.QueryRow(ctx, query, requestID).Scan(
		&m.ID, &m.PoolID, &m.RequestID, &m.RiderID,
		&m.PickupSequence, &m.DropoffSequence, &m.DetourKm, &m.Price, &m.CreatedAt,
	)
	if err != nil {
		return nil, mapDBError(err, "pool member not found")
	}
	return &m, nil
}

// MemberRequests loads the pool's membership with requests, in stop order
func (t *postgresTx) MemberRequests(ctx context.Context, poolID uuid.UUID) ([]*MemberDetail, error) {
	members, err := t.repo.queryMembers(ctx, t.tx, poolID)
	if err != nil {
		return nil, mapDBError(err, "ride pool not found")
	}
	out := make([]*MemberDetail, 0, len(members))
	for i := range members {
		out = append(out, &members[i])
	}
	return out, nil
}

// RecomputeCounters rewrites pool counters from membership rows. Counters
// are derived state: this is the only statement that ever writes them.
func (t *postgresTx) RecomputeCounters(ctx context.Context, poolID uuid.UUID) (int, int, error) {
	query := `
		UPDATE ride_pools p
		SET current_passenger_count = agg.passengers,
			current_luggage_count = agg.luggage,
			updated_at = now()
		FROM (
			SELECT COALESCE(SUM(r.passengers), 0) AS passengers,
				COALESCE(SUM(r.luggage), 0) AS luggage
			FROM pool_members m
			JOIN ride_requests r ON r.id = m.request_id
			WHERE m.pool_id = $1
		) agg
		WHERE p.id = $1
		RETURNING p.current_passenger_count, p.current_luggage_count
	`
	var passengers, luggage int
	err := t.tx.QueryRow(ctx, query, poolID).Scan(&passengers, &luggage)
	if err != nil {
		return 0, 0, mapDBError(err, "ride pool not found")
	}
	return passengers, luggage, nil
}

// UpdateRequestStatus transitions a request's status
func (t *postgresTx) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus) error {
	query := `UPDATE ride_requests SET status = $2, updated_at = now() WHERE id = $1`
	_, err := t.tx.Exec(ctx, query, id, status)
	return mapDBError(err, "ride request not found")
}

// UpdatePoolStatus transitions a pool's status
func (t *postgresTx) UpdatePoolStatus(ctx context.Context, id uuid.UUID, status PoolStatus) error {
	query := `UPDATE ride_pools SET status = $2, updated_at = now() WHERE id = $1`
	_, err := t.tx.Exec(ctx, query, id, status)
	return mapDBError(err, "ride pool not found")
}

// UpdatePoolRoute rewrites the pool's route summary
func (t *postgresTx) UpdatePoolRoute(ctx context.Context, id uuid.UUID, distanceKm float64, durationMin int) error {
	query := `
		UPDATE ride_pools
		SET route_distance_km = $2, route_duration_min = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := t.tx.Exec(ctx, query, id, distanceKm, durationMin)
	return mapDBError(err, "ride pool not found")
}

// InsertPricingHistory appends a pricing event
func (t *postgresTx) InsertPricingHistory(ctx context.Context, rec *pricing.HistoryRecord) error {
	query := `
		INSERT INTO pricing_history (
			id, request_id, base_fare, distance_fare, surge_multiplier,
			pool_discount_percent, final_price, demand_factor, distance_km, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.Exec(ctx, query,
		rec.ID, rec.RequestID,
		rec.Breakdown.BaseFare, rec.Breakdown.DistanceFare,
		rec.Breakdown.SurgeMultiplier, rec.Breakdown.PoolDiscountPercent,
		rec.Breakdown.FinalPrice, rec.Breakdown.DemandFactor,
		rec.Breakdown.DistanceKm, rec.CreatedAt,
	)
	return mapDBError(err, "ride request not found")
}
