// Package places provides the PlacesSDK used by the service binaries. It keeps
// per-device state (last location, current POIs, authorization) in a cache and
// delegates POI lookup and geofence storage to the repositories.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/ports"
	"github.com/samirrijal/placesbridge/internal/pkg/geospatial"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
	"github.com/samirrijal/placesbridge/internal/pkg/metrics"
)

const defaultMaxNearby = 50

// Options configures an Engine.
type Options struct {
	ExtensionVersion string
	KeyPrefix        string
	StateTTL         int // seconds, <= 0 keeps state until cleared
	MaxNearby        int
}

// Engine implements ports.PlacesSDK.
type Engine struct {
	pois      ports.POIRepository
	geofences ports.GeofenceRepository
	cache     ports.CacheService
	publisher ports.EventPublisher    // optional
	scheduler ports.GeofenceScheduler // optional
	opts      Options
	now       func() time.Time
}

// NewEngine creates an Engine. cache, publisher and scheduler may be nil;
// without a cache, state lives in process memory.
func NewEngine(pois ports.POIRepository, geofences ports.GeofenceRepository, cache ports.CacheService,
	publisher ports.EventPublisher, scheduler ports.GeofenceScheduler, opts Options) *Engine {
	if cache == nil {
		cache = NewMemoryStore()
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "places"
	}
	if opts.MaxNearby <= 0 {
		opts.MaxNearby = defaultMaxNearby
	}
	return &Engine{
		pois:      pois,
		geofences: geofences,
		cache:     cache,
		publisher: publisher,
		scheduler: scheduler,
		opts:      opts,
		now:       time.Now,
	}
}

func (e *Engine) key(name string) string {
	return e.opts.KeyPrefix + ":" + name
}

// Clear forgets the last known location and the current POIs.
func (e *Engine) Clear(ctx context.Context) error {
	for _, k := range []string{e.key("current"), e.key("location")} {
		if err := e.cache.Delete(ctx, k); err != nil {
			return fmt.Errorf("clear %s: %w", k, err)
		}
	}
	logging.FromContext(ctx).Info("places state cleared")
	return nil
}

func (e *Engine) ExtensionVersion() string {
	return e.opts.ExtensionVersion
}

// GetCurrentPointsOfInterest returns the POIs the user was inside at the last
// nearby query, or an empty list.
func (e *Engine) GetCurrentPointsOfInterest(ctx context.Context) ([]domain.POI, error) {
	var pois []domain.POI
	found, err := e.load(ctx, "current", &pois)
	if err != nil || !found {
		return []domain.POI{}, err
	}
	return pois, nil
}

// GetLastKnownLocation returns nil when no nearby query has been made since
// the last Clear.
func (e *Engine) GetLastKnownLocation(ctx context.Context) (*domain.Location, error) {
	var loc domain.Location
	found, err := e.load(ctx, "location", &loc)
	if err != nil || !found {
		return nil, err
	}
	return &loc, nil
}

// GetNearbyPointsOfInterest queries the POI library around loc. Failures are
// reported as *domain.RequestError.
func (e *Engine) GetNearbyPointsOfInterest(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
	status, err := e.authorization(ctx)
	if err != nil {
		return nil, &domain.RequestError{Code: domain.ErrServerResponse, Message: err.Error()}
	}
	if !status.Allowed() {
		return nil, &domain.RequestError{Code: domain.ErrPrivacyOptedOut, Message: "location authorization is " + string(status)}
	}
	if err := loc.Validate(); err != nil {
		return nil, &domain.RequestError{Code: domain.ErrInvalidLatLong, Message: err.Error()}
	}
	if e.pois == nil {
		return nil, &domain.RequestError{Code: domain.ErrConfiguration, Message: "no POI library configured"}
	}

	limit = max(1, min(limit, e.opts.MaxNearby))
	pois, err := e.pois.FindNearby(ctx, loc.Latitude, loc.Longitude, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.RequestError{Code: domain.ErrConnectivity, Message: ctx.Err().Error()}
		}
		return nil, &domain.RequestError{Code: domain.ErrServerResponse, Message: err.Error()}
	}

	current := make([]domain.POI, 0)
	for i := range pois {
		p := &pois[i]
		if p.Distance == nil {
			d := geospatial.Haversine(loc.Latitude, loc.Longitude, p.Latitude, p.Longitude)
			p.Distance = &d
		}
		if !p.UserIsWithin {
			p.UserIsWithin = geospatial.Within(loc.Latitude, loc.Longitude, p.Latitude, p.Longitude, p.Radius)
		}
		if p.UserIsWithin {
			current = append(current, *p)
		}
	}

	logger := logging.FromContext(ctx)
	if err := e.store(ctx, "location", loc); err != nil {
		logger.Warn("store last known location failed", "error", err)
	}
	if err := e.store(ctx, "current", current); err != nil {
		logger.Warn("store current POIs failed", "error", err)
	}
	return pois, nil
}

// ProcessGeofence registers g, publishes a "registered" event and arranges
// its expiry.
func (e *Engine) ProcessGeofence(ctx context.Context, g domain.Geofence, transitionType int) error {
	if err := g.Region.Validate(); err != nil {
		return fmt.Errorf("invalid geofence region: %w", err)
	}
	if e.geofences == nil {
		return errors.New("no geofence store configured")
	}
	g.TransitionTypes = transitionType
	if err := e.geofences.Upsert(ctx, &g); err != nil {
		return fmt.Errorf("register geofence %s: %w", g.RequestID, err)
	}

	logger := logging.FromContext(ctx).With("requestId", g.RequestID)
	if e.publisher != nil {
		event := &domain.GeofenceEvent{
			Type:           domain.GeofenceRegistered,
			Geofence:       g,
			TransitionType: transitionType,
			Time:           e.now().UTC(),
		}
		if err := e.publisher.PublishGeofenceEvent(ctx, event); err != nil {
			logger.Warn("publish geofence event failed", "error", err)
		}
	}
	if e.scheduler != nil && g.Expires() {
		if err := e.scheduler.ScheduleExpiry(ctx, g); err != nil {
			logger.Warn("schedule geofence expiry failed", "error", err)
		}
	}
	logger.Info("geofence registered", "transition", transitionType, "expiration", g.Expiration)
	return nil
}

// SetAuthorizationStatus records the status and publishes an AuthorizationEvent.
func (e *Engine) SetAuthorizationStatus(ctx context.Context, status domain.AuthorizationStatus) error {
	if status.Code() < 0 {
		return fmt.Errorf("unknown authorization status %q", status)
	}
	if err := e.store(ctx, "authorization", status); err != nil {
		return fmt.Errorf("store authorization status: %w", err)
	}
	if e.publisher != nil {
		event := &domain.AuthorizationEvent{Status: status, Time: e.now().UTC()}
		if err := e.publisher.PublishAuthorizationEvent(ctx, event); err != nil {
			logging.FromContext(ctx).Warn("publish authorization event failed", "error", err)
		}
	}
	return nil
}

// authorization returns the stored status, UNKNOWN when none was set.
func (e *Engine) authorization(ctx context.Context) (domain.AuthorizationStatus, error) {
	var status domain.AuthorizationStatus
	found, err := e.load(ctx, "authorization", &status)
	if err != nil {
		return "", err
	}
	if !found {
		return domain.AuthorizationUnknown, nil
	}
	return status, nil
}

func (e *Engine) load(ctx context.Context, name string, v any) (bool, error) {
	b, err := e.cache.Get(ctx, e.key(name))
	if errors.Is(err, ports.ErrCacheMiss) {
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", name, err)
	}
	metrics.CacheHits.WithLabelValues(name).Inc()
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (e *Engine) store(ctx context.Context, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.cache.Set(ctx, e.key(name), b, e.opts.StateTTL)
}
