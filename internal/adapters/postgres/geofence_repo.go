package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// GeofenceRepo implements ports.GeofenceRepository with pgx.
type GeofenceRepo struct {
	db *DB
}

// NewGeofenceRepo creates a new GeofenceRepo.
func NewGeofenceRepo(db *DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

// Upsert registers a geofence, replacing any previous one with the same request ID.
// expires_at is NULL for geofences that never expire.
func (r *GeofenceRepo) Upsert(ctx context.Context, g *domain.Geofence) error {
	var expiresAt *time.Time
	if g.Expires() {
		t := time.Now().Add(g.Expiration)
		expiresAt = &t
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO geofences (request_id, center, radius, transition_types, expiration_ms, expires_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO UPDATE
		SET center = EXCLUDED.center, radius = EXCLUDED.radius,
		    transition_types = EXCLUDED.transition_types,
		    expiration_ms = EXCLUDED.expiration_ms,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`, g.RequestID, g.Region.Longitude, g.Region.Latitude, g.Region.Radius,
		g.TransitionTypes, expirationMillis(g.Expiration), expiresAt)
	return err
}

// GetByRequestID returns the geofence, or nil when none is registered.
func (r *GeofenceRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.Geofence, error) {
	var g domain.Geofence
	var ms int64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT request_id,
		       ST_Y(center::geometry) as lat,
		       ST_X(center::geometry) as lon,
		       radius, transition_types, expiration_ms
		FROM geofences WHERE request_id = $1
	`, requestID).Scan(
		&g.RequestID,
		&g.Region.Latitude, &g.Region.Longitude,
		&g.Region.Radius, &g.TransitionTypes, &ms,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Expiration = durationFromMillis(ms)
	return &g, nil
}

// Delete removes a geofence. Deleting an unknown request ID is not an error.
func (r *GeofenceRepo) Delete(ctx context.Context, requestID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM geofences WHERE request_id = $1`, requestID)
	return err
}

func expirationMillis(d time.Duration) int64 {
	if d == domain.NeverExpire {
		return -1
	}
	return d.Milliseconds()
}

func durationFromMillis(ms int64) time.Duration {
	if ms < 0 {
		return domain.NeverExpire
	}
	return time.Duration(ms) * time.Millisecond
}
