package temporaladapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/workflows"
)

type fakeClient struct {
	started    []client.StartWorkflowOptions
	inputs     []workflows.GeofenceExpiryInput
	terminated []string
	startErr   error
	termErr    error
	running    bool // a timer is pending, so terminate succeeds
}

func (f *fakeClient) ExecuteWorkflow(ctx context.Context, opts client.StartWorkflowOptions, wf interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, opts)
	f.inputs = append(f.inputs, args[0].(workflows.GeofenceExpiryInput))
	return nil, nil
}

func (f *fakeClient) TerminateWorkflow(ctx context.Context, id, runID, reason string, details ...interface{}) error {
	f.terminated = append(f.terminated, id)
	if f.termErr != nil {
		return f.termErr
	}
	if f.running {
		return nil
	}
	return serviceerror.NewNotFound("workflow not found")
}

func TestScheduleExpiry(t *testing.T) {
	fc := &fakeClient{}
	s := &Scheduler{client: fc, taskQueue: "geofence-expiry"}

	err := s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home", Expiration: 90 * time.Second})
	require.NoError(t, err)

	require.Len(t, fc.started, 1)
	assert.Equal(t, "geofence-expiry-home", fc.started[0].ID)
	assert.Equal(t, "geofence-expiry", fc.started[0].TaskQueue)
	assert.Equal(t, workflows.GeofenceExpiryInput{RequestID: "home", Expiration: 90 * time.Second}, fc.inputs[0])
	assert.Equal(t, []string{"geofence-expiry-home"}, fc.terminated)
}

func TestScheduleExpiry_NeverExpires(t *testing.T) {
	fc := &fakeClient{}
	s := &Scheduler{client: fc, taskQueue: "q"}

	require.NoError(t, s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home", Expiration: domain.NeverExpire}))
	require.NoError(t, s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home"}))
	assert.Empty(t, fc.started)
}

func TestScheduleExpiry_StartFails(t *testing.T) {
	fc := &fakeClient{startErr: errors.New("unavailable")}
	s := &Scheduler{client: fc, taskQueue: "q"}

	err := s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home", Expiration: time.Second})
	assert.ErrorContains(t, err, "geofence-expiry-home")
}

func TestScheduleExpiry_ReplacesRunningTimer(t *testing.T) {
	fc := &fakeClient{running: true}
	s := &Scheduler{client: fc, taskQueue: "q"}

	require.NoError(t, s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home", Expiration: time.Minute}))
	assert.Equal(t, []string{"geofence-expiry-home"}, fc.terminated)
	assert.Len(t, fc.started, 1)
}

func TestScheduleExpiry_TerminateFails(t *testing.T) {
	fc := &fakeClient{termErr: serviceerror.NewUnavailable("frontend down")}
	s := &Scheduler{client: fc, taskQueue: "q"}

	err := s.ScheduleExpiry(context.Background(), domain.Geofence{RequestID: "home", Expiration: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace expiry workflow geofence-expiry-home")
	assert.Contains(t, err.Error(), "frontend down")
	assert.Empty(t, fc.started, "no new timer when the old one could not be removed")
}
