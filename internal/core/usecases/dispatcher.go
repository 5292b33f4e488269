package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/ports"
	"github.com/samirrijal/placesbridge/internal/pkg/logging"
	"github.com/samirrijal/placesbridge/internal/pkg/metrics"
	"github.com/samirrijal/placesbridge/internal/pkg/telemetry"
)

// ErrActionNotHandled is returned by Call for unrecognized action names.
var ErrActionNotHandled = errors.New("action not handled")

const shuttingDownMessage = "Places bridge is shutting down"

// DispatcherOptions tunes the worker pool.
type DispatcherOptions struct {
	Workers     int           // max concurrent actions, default 8
	CallTimeout time.Duration // per-action deadline on the SDK call, default 10s
}

type handlerFunc func(ctx context.Context, args []json.RawMessage) (string, error)

// Dispatcher maps script-layer actions to PlacesSDK calls and runs them with
// at most Workers in flight. Actions beyond that wait for a free slot.
type Dispatcher struct {
	sdk         ports.PlacesSDK
	slots       chan struct{}
	tasks       *conc.WaitGroup
	callTimeout time.Duration
	handlers    map[domain.Action]handlerFunc

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher forwarding to sdk.
func NewDispatcher(sdk ports.PlacesSDK, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		sdk:         sdk,
		slots:       make(chan struct{}, opts.Workers),
		tasks:       conc.NewWaitGroup(),
		callTimeout: opts.CallTimeout,
	}
	d.handlers = map[domain.Action]handlerFunc{
		domain.ActionClear:                      d.clear,
		domain.ActionExtensionVersion:           d.extensionVersion,
		domain.ActionGetCurrentPointsOfInterest: d.getCurrentPointsOfInterest,
		domain.ActionGetLastKnownLocation:       d.getLastKnownLocation,
		domain.ActionGetNearbyPointsOfInterest:  d.getNearbyPointsOfInterest,
		domain.ActionProcessGeofenceEvent:       d.unsupported,
		domain.ActionProcessGeofence:            d.processGeofence,
		domain.ActionProcessRegionEvent:         d.unsupported,
		domain.ActionSetAuthorizationStatus:     d.setAuthorizationStatus,
	}
	return d
}

// Dispatch schedules action on the worker pool and returns true, or returns
// false without touching sink when the action is not recognized. The return
// value says nothing about success: the outcome arrives on sink.
//
// Dispatch never waits for a worker. An action still queued when ctx is done
// is dropped and reported on sink with the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, args []json.RawMessage, sink ports.ResultSink) bool {
	a, ok := domain.ParseAction(action)
	if !ok {
		logging.FromContext(ctx).Debug("action not handled", "component", "bridge", "action", action)
		metrics.DispatchTotal.WithLabelValues("unknown", "unhandled").Inc()
		return false
	}
	sink = &onceSink{sink: sink}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.DispatchTotal.WithLabelValues(string(a), "error").Inc()
		sink.Error(shuttingDownMessage)
		return true
	}

	d.tasks.Go(func() {
		if !d.acquire(ctx) {
			metrics.DispatchTotal.WithLabelValues(string(a), "error").Inc()
			logging.FromContext(ctx).Warn("action dropped before start",
				"component", "bridge", "action", string(a), "error", ctx.Err())
			sink.Error(ctx.Err().Error())
			return
		}
		defer func() { <-d.slots }()

		metrics.Inflight.Inc()
		defer metrics.Inflight.Dec()
		// Once started the task outlives the caller; keep its values, drop its cancellation.
		d.run(context.WithoutCancel(ctx), a, args, sink)
	})
	return true
}

// acquire takes a worker slot, waiting until ctx is done. A free slot wins
// over an already cancelled ctx.
func (d *Dispatcher) acquire(ctx context.Context) bool {
	select {
	case d.slots <- struct{}{}:
		return true
	default:
	}
	select {
	case d.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Call dispatches action and waits for its reply.
func (d *Dispatcher) Call(ctx context.Context, action string, args []json.RawMessage) (Result, error) {
	reply := NewReply()
	if !d.Dispatch(ctx, action, args, reply) {
		return Result{}, fmt.Errorf("%w: %s", ErrActionNotHandled, action)
	}
	return reply.Wait(ctx)
}

// Shutdown stops accepting work and waits for accepted actions to reply.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, a domain.Action, args []json.RawMessage, sink ports.ResultSink) {
	ctx, span := telemetry.Tracer().Start(ctx, "bridge."+string(a))
	defer span.End()
	span.SetAttributes(attribute.Int("bridge.args", len(args)))

	logger := logging.FromContext(ctx).With("component", "bridge", "action", string(a))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("action panicked", "panic", r)
			span.SetStatus(codes.Error, "panic")
			metrics.DispatchTotal.WithLabelValues(string(a), "error").Inc()
			sink.Error(fmt.Sprintf("Internal error while running %s", a))
		}
	}()

	payload, err := d.handlers[a](ctx, args)
	metrics.DispatchDuration.WithLabelValues(string(a)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DispatchTotal.WithLabelValues(string(a), "error").Inc()
		logAttrs := []any{"error", err, "latency", time.Since(start).String()}
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			logger.Warn("rejected arguments", logAttrs...)
		} else {
			logger.Error("action failed", logAttrs...)
		}
		sink.Error(err.Error())
		return
	}

	metrics.DispatchTotal.WithLabelValues(string(a), "success").Inc()
	logger.Debug("action completed", "latency", time.Since(start).String())
	sink.Success(payload)
}

// sdkContext bounds one SDK call.
func (d *Dispatcher) sdkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.callTimeout)
}

func (d *Dispatcher) clear(ctx context.Context, _ []json.RawMessage) (string, error) {
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	if err := d.sdk.Clear(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (d *Dispatcher) extensionVersion(_ context.Context, _ []json.RawMessage) (string, error) {
	v := d.sdk.ExtensionVersion()
	if v == "" {
		return "", errors.New("Extension version is null or empty")
	}
	return v, nil
}

func (d *Dispatcher) getCurrentPointsOfInterest(ctx context.Context, _ []json.RawMessage) (string, error) {
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	pois, err := d.sdk.GetCurrentPointsOfInterest(ctx)
	if err != nil {
		return "", err
	}
	return EncodePOIs(pois)
}

func (d *Dispatcher) getLastKnownLocation(ctx context.Context, _ []json.RawMessage) (string, error) {
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	loc, err := d.sdk.GetLastKnownLocation(ctx)
	if err != nil {
		return "", err
	}
	if loc == nil {
		return "", errors.New("Last known location is null")
	}
	return EncodeLocation(*loc)
}

func (d *Dispatcher) getNearbyPointsOfInterest(ctx context.Context, args []json.RawMessage) (string, error) {
	loc, limit, err := nearbyArgs(args)
	if err != nil {
		return "", err
	}
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	pois, err := d.sdk.GetNearbyPointsOfInterest(ctx, loc, limit)
	if err != nil {
		return "", err
	}
	return EncodePOIs(pois)
}

func (d *Dispatcher) processGeofence(ctx context.Context, args []json.RawMessage) (string, error) {
	g, transition, err := geofenceArgs(args)
	if err != nil {
		return "", err
	}
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	if err := d.sdk.ProcessGeofence(ctx, g, transition); err != nil {
		return "", err
	}
	return "", nil
}

func (d *Dispatcher) setAuthorizationStatus(ctx context.Context, args []json.RawMessage) (string, error) {
	status, err := authorizationArgs(args)
	if err != nil {
		return "", err
	}
	ctx, cancel := d.sdkContext(ctx)
	defer cancel()
	if err := d.sdk.SetAuthorizationStatus(ctx, status); err != nil {
		return "", err
	}
	return "", nil
}

// unsupported acknowledges events that have no counterpart on this platform.
func (d *Dispatcher) unsupported(ctx context.Context, _ []json.RawMessage) (string, error) {
	logging.FromContext(ctx).Debug("event not supported on this platform, ignoring", "component", "bridge")
	return "", nil
}
