package temporaladapter

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/workflows"
)

// workflowClient is the part of client.Client the scheduler uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	TerminateWorkflow(ctx context.Context, workflowID string, runID string, reason string, details ...interface{}) error
}

// Scheduler implements ports.GeofenceScheduler by starting a
// GeofenceExpiryWorkflow per geofence.
type Scheduler struct {
	client    workflowClient
	taskQueue string
}

// NewScheduler creates a Scheduler on an existing Temporal client.
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// ScheduleExpiry starts the expiry timer for g, replacing any pending timer
// for the same request ID. Geofences that never expire are ignored.
func (s *Scheduler) ScheduleExpiry(ctx context.Context, g domain.Geofence) error {
	if !g.Expires() {
		return nil
	}
	id := workflows.WorkflowID(g.RequestID)

	// NotFound means no timer is pending, which is the common case.
	if err := s.client.TerminateWorkflow(ctx, id, "", "geofence re-registered"); err != nil {
		var notFound *serviceerror.NotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("replace expiry workflow %s: %w", id, err)
		}
	}

	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: s.taskQueue,
	}, workflows.GeofenceExpiryWorkflow, workflows.GeofenceExpiryInput{
		RequestID:  g.RequestID,
		Expiration: g.Expiration,
	})
	if err != nil {
		return fmt.Errorf("start expiry workflow %s: %w", id, err)
	}
	return nil
}
