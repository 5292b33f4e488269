package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/placesbridge/internal/core/domain"
)

func TestGeofenceExpiryWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	acts := &GeofenceActivities{}
	env.RegisterActivity(acts)
	env.OnActivity(acts.ExpireGeofence, mock.Anything, "gf-1").Return(true, nil).Once()

	env.ExecuteWorkflow(GeofenceExpiryWorkflow, GeofenceExpiryInput{RequestID: "gf-1", Expiration: time.Hour})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestGeofenceExpiryWorkflow_ActivityFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	acts := &GeofenceActivities{}
	env.RegisterActivity(acts)
	env.OnActivity(acts.ExpireGeofence, mock.Anything, "gf-2").Return(false, errors.New("db down"))

	env.ExecuteWorkflow(GeofenceExpiryWorkflow, GeofenceExpiryInput{RequestID: "gf-2", Expiration: time.Minute})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

type memGeofences struct {
	items   map[string]domain.Geofence
	deleted []string
}

func (m *memGeofences) Upsert(ctx context.Context, g *domain.Geofence) error {
	m.items[g.RequestID] = *g
	return nil
}

func (m *memGeofences) GetByRequestID(ctx context.Context, id string) (*domain.Geofence, error) {
	g, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *memGeofences) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type recordingPublisher struct {
	geofence []*domain.GeofenceEvent
}

func (p *recordingPublisher) PublishGeofenceEvent(ctx context.Context, e *domain.GeofenceEvent) error {
	p.geofence = append(p.geofence, e)
	return nil
}

func (p *recordingPublisher) PublishAuthorizationEvent(ctx context.Context, e *domain.AuthorizationEvent) error {
	return nil
}

func TestExpireGeofenceActivity(t *testing.T) {
	repo := &memGeofences{items: map[string]domain.Geofence{
		"finite":  {RequestID: "finite", Expiration: time.Minute, TransitionTypes: domain.TransitionEnter},
		"forever": {RequestID: "forever", Expiration: domain.NeverExpire, TransitionTypes: domain.TransitionExit},
	}}
	pub := &recordingPublisher{}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(&GeofenceActivities{Geofences: repo, Publisher: pub})

	val, err := env.ExecuteActivity("ExpireGeofence", "finite")
	require.NoError(t, err)
	var removed bool
	require.NoError(t, val.Get(&removed))
	assert.True(t, removed)
	assert.Equal(t, []string{"finite"}, repo.deleted)
	require.Len(t, pub.geofence, 1)
	assert.Equal(t, domain.GeofenceExpired, pub.geofence[0].Type)

	val, err = env.ExecuteActivity("ExpireGeofence", "forever")
	require.NoError(t, err)
	require.NoError(t, val.Get(&removed))
	assert.False(t, removed)

	val, err = env.ExecuteActivity("ExpireGeofence", "missing")
	require.NoError(t, err)
	require.NoError(t, val.Get(&removed))
	assert.False(t, removed)
	assert.Len(t, repo.deleted, 1)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "geofence-expiry-home", WorkflowID("home"))
}
