package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/ports"
)

// GeofenceActivities holds the activity implementations for geofence expiry.
type GeofenceActivities struct {
	Geofences ports.GeofenceRepository
	Publisher ports.EventPublisher // optional
}

// ExpireGeofence removes a geofence whose lifetime has elapsed and publishes
// an "expired" event. It reports whether anything was removed. A geofence that
// was re-registered without expiry in the meantime is left alone.
func (a *GeofenceActivities) ExpireGeofence(ctx context.Context, requestID string) (bool, error) {
	logger := activity.GetLogger(ctx)

	g, err := a.Geofences.GetByRequestID(ctx, requestID)
	if err != nil {
		return false, fmt.Errorf("get geofence %s: %w", requestID, err)
	}
	if g == nil {
		logger.Info("geofence already removed", "requestId", requestID)
		return false, nil
	}
	if !g.Expires() {
		logger.Info("geofence no longer expires, keeping it", "requestId", requestID)
		return false, nil
	}

	if err := a.Geofences.Delete(ctx, requestID); err != nil {
		return false, fmt.Errorf("delete geofence %s: %w", requestID, err)
	}

	if a.Publisher != nil {
		event := &domain.GeofenceEvent{
			Type:           domain.GeofenceExpired,
			Geofence:       *g,
			TransitionType: g.TransitionTypes,
			Time:           time.Now().UTC(),
		}
		if err := a.Publisher.PublishGeofenceEvent(ctx, event); err != nil {
			// Record is already deleted, a retry would find nothing.
			logger.Warn("publish expiry event failed", "requestId", requestID, "error", err)
		}
	}
	logger.Info("geofence expired", "requestId", requestID)
	return true, nil
}
