package ports

import (
	"context"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// POIRepository persists points of interest.
type POIRepository interface {
	Upsert(ctx context.Context, poi *domain.POI) error
	UpsertBatch(ctx context.Context, pois []domain.POI) error
	// FindNearby returns POIs ordered by distance from the point, closest first.
	FindNearby(ctx context.Context, lat, lon float64, limit int) ([]domain.POI, error)
}

// GeofenceRepository persists registered geofences.
type GeofenceRepository interface {
	Upsert(ctx context.Context, g *domain.Geofence) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.Geofence, error)
	Delete(ctx context.Context, requestID string) error
}
