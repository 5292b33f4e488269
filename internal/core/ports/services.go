package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// PlacesSDK is the Places collaborator the bridge forwards calls to.
type PlacesSDK interface {
	Clear(ctx context.Context) error
	ExtensionVersion() string
	GetCurrentPointsOfInterest(ctx context.Context) ([]domain.POI, error)
	// GetLastKnownLocation returns nil when no location is known.
	GetLastKnownLocation(ctx context.Context) (*domain.Location, error)
	// GetNearbyPointsOfInterest fails with *domain.RequestError.
	GetNearbyPointsOfInterest(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error)
	ProcessGeofence(ctx context.Context, g domain.Geofence, transitionType int) error
	SetAuthorizationStatus(ctx context.Context, status domain.AuthorizationStatus) error
}

// ResultSink receives the outcome of one dispatched action.
// Exactly one of the methods is called, once.
type ResultSink interface {
	Success(payload string)
	Error(message string)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishGeofenceEvent(ctx context.Context, event *domain.GeofenceEvent) error
	PublishAuthorizationEvent(ctx context.Context, event *domain.AuthorizationEvent) error
}

// GeofenceScheduler arranges for a geofence to be removed once it expires.
type GeofenceScheduler interface {
	ScheduleExpiry(ctx context.Context, g domain.Geofence) error
}

// CacheService provides key/value state storage.
type CacheService interface {
	// Get returns ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttlSeconds <= 0 keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
