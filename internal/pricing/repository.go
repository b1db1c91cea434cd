package pricing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the request volume the demand monitor samples
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new pricing repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CountPendingSince counts ride requests still pending that were
// submitted after the given time
func (r *Repository) CountPendingSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ride_requests
		WHERE status = 'pending' AND requested_at >= $1
	`, since).Scan(&count)
	return count, err
}
