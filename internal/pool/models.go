package pool

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/internal/geomath"
	"github.com/richxcame/pool-matching/internal/matching"
	"github.com/richxcame/pool-matching/internal/pricing"
)

// RequestStatus is the lifecycle state of a ride request
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusMatched    RequestStatus = "matched"
	RequestStatusConfirmed  RequestStatus = "confirmed"
	RequestStatusCancelled  RequestStatus = "cancelled"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusInProgress RequestStatus = "in_progress"
)

// IsTerminal reports whether no further transitions are allowed
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCancelled || s == RequestStatusCompleted
}

// PoolStatus is the lifecycle state of a ride pool
type PoolStatus string

const (
	PoolStatusForming    PoolStatus = "forming"
	PoolStatusConfirmed  PoolStatus = "confirmed"
	PoolStatusInProgress PoolStatus = "in_progress"
	PoolStatusCompleted  PoolStatus = "completed"
	PoolStatusCancelled  PoolStatus = "cancelled"
)

// IsOpen reports whether the pool can still accept members
func (s PoolStatus) IsOpen() bool {
	return s == PoolStatusForming || s == PoolStatusConfirmed
}

// RideRequest is a rider's transportation request. Status transitions are
// its only mutation; requests are never deleted.
type RideRequest struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	Pickup      geomath.Coordinate `json:"pickup"`
	Dropoff     geomath.Coordinate `json:"dropoff"`
	Passengers  int                `json:"passengers"`
	Luggage     int                `json:"luggage"`
	MaxDetourKm float64            `json:"max_detour_km"`
	Status      RequestStatus      `json:"status"`
	RequestedAt time.Time          `json:"requested_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// RidePool is a group of ride requests sharing one vehicle trip. Capacity
// counters are derived from membership and always recomputed, never
// incremented independently.
type RidePool struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	Status           PoolStatus `json:"status"`
	Passengers       int        `json:"current_passenger_count"`
	Luggage          int        `json:"current_luggage_count"`
	MaxPassengers    int        `json:"max_passengers"`
	MaxLuggage       int        `json:"max_luggage"`
	RouteDistanceKm  *float64   `json:"route_distance_km,omitempty"`
	RouteDurationMin *int       `json:"route_duration_min,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PoolMember joins one ride request to one ride pool. Unique per
// (pool, request); created once per request lifetime.
type PoolMember struct {
	ID              uuid.UUID `json:"id"`
	PoolID          uuid.UUID `json:"pool_id"`
	RequestID       uuid.UUID `json:"request_id"`
	RiderID         uuid.UUID `json:"rider_id"`
	PickupSequence  int       `json:"pickup_sequence"`
	DropoffSequence int       `json:"dropoff_sequence"`
	DetourKm        float64   `json:"detour_distance_km"`
	Price           float64   `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
}

// MemberDetail pairs a membership row with its ride request
type MemberDetail struct {
	Member  PoolMember  `json:"member"`
	Request RideRequest `json:"request"`
}

// PoolWithMembers is a pool plus its current membership
type PoolWithMembers struct {
	Pool    RidePool       `json:"pool"`
	Members []MemberDetail `json:"members"`
}

// NewPoolCode derives a human-readable pool code from an id
func NewPoolCode(id uuid.UUID) string {
	return "POOL-" + strings.ToUpper(id.String()[:8])
}

// TripKm is the direct pickup-to-dropoff distance
func (r *RideRequest) TripKm() float64 {
	return geomath.DistanceKm(r.Pickup, r.Dropoff)
}

// MatchingRider converts a request into the matching engine's view
func (r *RideRequest) MatchingRider() matching.Rider {
	return matching.Rider{
		RequestID:   r.ID,
		RiderID:     r.UserID,
		Pickup:      r.Pickup,
		Dropoff:     r.Dropoff,
		Passengers:  r.Passengers,
		Luggage:     r.Luggage,
		MaxDetourKm: r.MaxDetourKm,
		RequestedAt: r.RequestedAt,
	}
}

// MatchingCandidate converts a pool snapshot into the matching engine's view
func (p *PoolWithMembers) MatchingCandidate() matching.PoolCandidate {
	members := make([]matching.Rider, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, m.Request.MatchingRider())
	}
	return matching.PoolCandidate{
		PoolID:        p.Pool.ID,
		CreatedAt:     p.Pool.CreatedAt,
		Passengers:    p.Pool.Passengers,
		Luggage:       p.Pool.Luggage,
		MaxPassengers: p.Pool.MaxPassengers,
		MaxLuggage:    p.Pool.MaxLuggage,
		Members:       members,
	}
}

// SubmitRequest is the submit payload
type SubmitRequest struct {
	UserID      uuid.UUID          `json:"user_id" binding:"required"`
	Pickup      geomath.Coordinate `json:"pickup" binding:"required"`
	Dropoff     geomath.Coordinate `json:"dropoff" binding:"required"`
	Passengers  int                `json:"passengers" binding:"required,min=1,max=4"`
	Luggage     int                `json:"luggage" binding:"min=0,max=4"`
	MaxDetourKm float64            `json:"max_detour_km" binding:"min=0"`
}

// Submit outcomes
const (
	OutcomeMatched     = "matched"
	OutcomePoolCreated = "pool_created"
)

// SubmitResult reports where a request ended up
type SubmitResult struct {
	Outcome string                 `json:"outcome"`
	Request *RideRequest           `json:"request"`
	Pool    *RidePool              `json:"pool"`
	Member  *PoolMember            `json:"member"`
	Price   pricing.PriceBreakdown `json:"price"`
}

// Cancel outcomes
const (
	OutcomeCancelled       = "cancelled"
	OutcomeAlreadyTerminal = "already_terminal"
)

// CancelResult reports the effect of a cancellation
type CancelResult struct {
	Outcome string        `json:"outcome"`
	Status  RequestStatus `json:"status"`
}

// ConfirmResult reports the effect of confirming a matched request
type ConfirmResult struct {
	Request    *RideRequest `json:"request"`
	PoolStatus PoolStatus   `json:"pool_status"`
}

// QuoteRequest is the stateless pricing preview payload
type QuoteRequest struct {
	Pickup     geomath.Coordinate `json:"pickup" binding:"required"`
	Dropoff    geomath.Coordinate `json:"dropoff" binding:"required"`
	Passengers int                `json:"passengers" binding:"required,min=1,max=4"`
	Luggage    int                `json:"luggage" binding:"min=0,max=4"`
}

// QuoteResponse carries solo and pooled previews for the same trip
type QuoteResponse struct {
	DistanceKm float64                `json:"distance_km"`
	Solo       pricing.PriceBreakdown `json:"solo"`
	Pooled     pricing.PriceBreakdown `json:"pooled"`
}
