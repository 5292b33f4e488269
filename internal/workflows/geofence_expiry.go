package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// GeofenceExpiryInput is the input for the geofence expiry workflow.
type GeofenceExpiryInput struct {
	RequestID  string
	Expiration time.Duration
}

// WorkflowID returns the workflow ID used for a geofence's expiry timer.
func WorkflowID(requestID string) string {
	return "geofence-expiry-" + requestID
}

// GeofenceExpiryWorkflow waits for the geofence lifetime to elapse, then
// removes it through the ExpireGeofence activity.
func GeofenceExpiryWorkflow(ctx workflow.Context, input GeofenceExpiryInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Waiting for geofence expiry", "requestId", input.RequestID, "expiration", input.Expiration)

	if input.Expiration > 0 {
		if err := workflow.Sleep(ctx, input.Expiration); err != nil {
			return err
		}
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var removed bool
	if err := workflow.ExecuteActivity(ctx, "ExpireGeofence", input.RequestID).Get(ctx, &removed); err != nil {
		return err
	}

	logger.Info("Geofence expiry finished", "requestId", input.RequestID, "removed", removed)
	return nil
}
