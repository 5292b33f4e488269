package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/placesbridge/internal/adapters/http"
	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
)

// ---- Mock SDK ----

type mockSDK struct {
	clearFn     func(ctx context.Context) error
	version     string
	currentFn   func(ctx context.Context) ([]domain.POI, error)
	lastKnownFn func(ctx context.Context) (*domain.Location, error)
	nearbyFn    func(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error)
	geofenceFn  func(ctx context.Context, g domain.Geofence, transition int) error
	authFn      func(ctx context.Context, s domain.AuthorizationStatus) error
}

func (m *mockSDK) Clear(ctx context.Context) error {
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return nil
}
func (m *mockSDK) ExtensionVersion() string { return m.version }
func (m *mockSDK) GetCurrentPointsOfInterest(ctx context.Context) ([]domain.POI, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx)
	}
	return nil, nil
}
func (m *mockSDK) GetLastKnownLocation(ctx context.Context) (*domain.Location, error) {
	if m.lastKnownFn != nil {
		return m.lastKnownFn(ctx)
	}
	return nil, nil
}
func (m *mockSDK) GetNearbyPointsOfInterest(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, loc, limit)
	}
	return nil, nil
}
func (m *mockSDK) ProcessGeofence(ctx context.Context, g domain.Geofence, transition int) error {
	if m.geofenceFn != nil {
		return m.geofenceFn(ctx, g, transition)
	}
	return nil
}
func (m *mockSDK) SetAuthorizationStatus(ctx context.Context, s domain.AuthorizationStatus) error {
	if m.authFn != nil {
		return m.authFn(ctx, s)
	}
	return nil
}

// ---- Test helpers ----

func setupApp(t *testing.T, sdk *mockSDK, opts ...func(*handler.Dependencies)) *fiber.App {
	t.Helper()
	d := usecases.NewDispatcher(sdk, usecases.DispatcherOptions{Workers: 2, CallTimeout: time.Second})
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	deps := &handler.Dependencies{Bridge: d, ReplyTimeout: 2 * time.Second}
	for _, o := range opts {
		o(deps)
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func decodeAPIError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

// ---- Bridge endpoint ----

func TestBridge_Success(t *testing.T) {
	app := setupApp(t, &mockSDK{nearbyFn: func(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
		if loc.Latitude != 10 || loc.Longitude != 20 || limit != 5 {
			t.Errorf("unexpected query %+v limit=%d", loc, limit)
		}
		return []domain.POI{{Identifier: "p1", Name: "Mercado de la Ribera", Latitude: 10, Longitude: 20}}, nil
	}})

	req := httptest.NewRequest("POST", "/v1/bridge/getNearbyPointsOfInterest",
		strings.NewReader(`[{"latitude":10.0,"longitude":20.0},5]`))
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var env usecases.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Status != "ok" || env.Payload == nil {
		t.Fatalf("unexpected envelope %+v", env)
	}
	want := `[{"POI":"Mercado de la Ribera","Latitude":10,"Longitude":20,"Identifier":"p1"}]`
	if *env.Payload != want {
		t.Errorf("payload = %s, want %s", *env.Payload, want)
	}
}

func TestBridge_EmptyBodyMeansNoArgs(t *testing.T) {
	app := setupApp(t, &mockSDK{version: "3.1.0"})

	req := httptest.NewRequest("POST", "/v1/bridge/extensionVersion", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := string(readBody(t, resp.Body))
	if body != `{"status":"ok","payload":"3.1.0"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestBridge_UnknownAction(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	req := httptest.NewRequest("POST", "/v1/bridge/unknown", strings.NewReader(`[]`))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); apiErr.Code != "unsupported_action" {
		t.Errorf("expected unsupported_action, got %s", apiErr.Code)
	}
}

func TestBridge_ErrorReply(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	req := httptest.NewRequest("POST", "/v1/bridge/setAuthorizationStatus", strings.NewReader(`[99]`))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	apiErr := decodeAPIError(t, resp.Body)
	if apiErr.Code != "bridge_error" {
		t.Errorf("expected bridge_error, got %s", apiErr.Code)
	}
	if apiErr.Message != "Invalid authorization status 99, expected 0-4" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestBridge_ArgsMustBeArray(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	req := httptest.NewRequest("POST", "/v1/bridge/clear", strings.NewReader(`{"a":1}`))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBridge_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	app := setupApp(t, &mockSDK{clearFn: func(ctx context.Context) error {
		<-release
		return nil
	}}, func(d *handler.Dependencies) {
		d.ReplyTimeout = 50 * time.Millisecond
	})

	req := httptest.NewRequest("POST", "/v1/bridge/clear", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 504 {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
}

func TestBridge_DeprecatedEvent(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	req := httptest.NewRequest("POST", "/v1/bridge/processGeofenceEvent", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(resp.Header.Get("Link"), "/v1/bridge/processGeofence") {
		t.Errorf("unexpected Link header %q", resp.Header.Get("Link"))
	}
}

// ---- REST conveniences ----

func TestExtensionVersion(t *testing.T) {
	app := setupApp(t, &mockSDK{version: "2.4.0"})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/version", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Version string `json:"version"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Version != "2.4.0" {
		t.Errorf("expected 2.4.0, got %q", body.Version)
	}
	if resp.Header.Get("Cache-Control") != "public, max-age=3600" {
		t.Errorf("unexpected Cache-Control %q", resp.Header.Get("Cache-Control"))
	}
}

func TestExtensionVersion_Empty(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/version", nil), -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); apiErr.Message != "Extension version is null or empty" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestCurrentPointsOfInterest_Empty(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/current", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := string(readBody(t, resp.Body)); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("device state must not be cached, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestLastKnownLocation(t *testing.T) {
	app := setupApp(t, &mockSDK{lastKnownFn: func(ctx context.Context) (*domain.Location, error) {
		return &domain.Location{Latitude: 43.2569, Longitude: -2.9236}, nil
	}})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/location", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := string(readBody(t, resp.Body)); body != `{"Latitude":43.2569,"Longitude":-2.9236}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestNearby_PassesQuery(t *testing.T) {
	var gotLimit int
	app := setupApp(t, &mockSDK{nearbyFn: func(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
		gotLimit = limit
		return nil, nil
	}})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=43.26&lon=-2.93&limit=7", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotLimit != 7 {
		t.Errorf("expected limit 7, got %d", gotLimit)
	}
}

func TestNearby_MissingParams(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=43.26", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestNearby_BadNumber(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=north&lon=-2.93", nil), -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); !strings.HasPrefix(apiErr.Message, "Error while parsing arguments, Error ") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestNearby_RequestError(t *testing.T) {
	app := setupApp(t, &mockSDK{nearbyFn: func(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
		return nil, &domain.RequestError{Code: domain.ErrServerResponse, Message: "upstream 503"}
	}})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/nearby?lat=1&lon=2", nil), -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); apiErr.Message != "SERVER_RESPONSE_ERROR: upstream 503" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestClearState(t *testing.T) {
	cleared := make(chan struct{}, 1)
	app := setupApp(t, &mockSDK{clearFn: func(ctx context.Context) error {
		cleared <- struct{}{}
		return nil
	}})

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/v1/places/state", nil), -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	select {
	case <-cleared:
	default:
		t.Error("Clear was not called")
	}
}

func TestRegisterGeofence(t *testing.T) {
	got := make(chan domain.Geofence, 1)
	app := setupApp(t, &mockSDK{geofenceFn: func(ctx context.Context, g domain.Geofence, transition int) error {
		if transition != 3 {
			t.Errorf("expected transition 3, got %d", transition)
		}
		got <- g
		return nil
	}})

	body := `{"requestId":"casco-viejo","circularRegion":{"latitude":43.2586,"longitude":-2.9236,"radius":250},"expirationDuration":3600000,"transitionType":3}`
	req := httptest.NewRequest("POST", "/v1/geofences", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	g := <-got
	if g.RequestID != "casco-viejo" || g.Region.Radius != 250 || g.Expiration != time.Hour {
		t.Errorf("unexpected geofence %+v", g)
	}
}

func TestRegisterGeofence_MissingTransition(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	req := httptest.NewRequest("POST", "/v1/geofences", strings.NewReader(`{"requestId":"x"}`))
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRegisterGeofence_InvalidRegion(t *testing.T) {
	called := false
	app := setupApp(t, &mockSDK{geofenceFn: func(ctx context.Context, g domain.Geofence, transition int) error {
		called = true
		return nil
	}})

	body := `{"requestId":"x","circularRegion":"lat:1,lon:2","expirationDuration":-1,"transitionType":1}`
	resp, _ := app.Test(httptest.NewRequest("POST", "/v1/geofences", strings.NewReader(body)), -1)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if called {
		t.Error("SDK must not be called for an invalid region")
	}
}

func TestSetAuthorization(t *testing.T) {
	got := make(chan domain.AuthorizationStatus, 1)
	app := setupApp(t, &mockSDK{authFn: func(ctx context.Context, s domain.AuthorizationStatus) error {
		got <- s
		return nil
	}})

	resp, _ := app.Test(httptest.NewRequest("PUT", "/v1/authorization", strings.NewReader(`{"status":1}`)), -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if s := <-got; s != domain.AuthorizationAlways {
		t.Errorf("expected ALWAYS, got %s", s)
	}
}

func TestSetAuthorization_BadBody(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("PUT", "/v1/authorization", strings.NewReader(`{}`)), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func TestGraphQL_Query(t *testing.T) {
	app := setupApp(t, &mockSDK{
		version: "1.9.0",
		nearbyFn: func(ctx context.Context, loc domain.Location, limit int) ([]domain.POI, error) {
			return []domain.POI{{Identifier: "p1", Name: "Azkuna Zentroa", Latitude: 43.2597, Longitude: -2.9412}}, nil
		},
	})

	query := `{"query":"{ extensionVersion nearbyPointsOfInterest(latitude: 43.26, longitude: -2.94, limit: 3) { identifier name } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			ExtensionVersion string `json:"extensionVersion"`
			Nearby           []struct {
				Identifier string `json:"identifier"`
				Name       string `json:"name"`
			} `json:"nearbyPointsOfInterest"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if result.Data.ExtensionVersion != "1.9.0" {
		t.Errorf("unexpected version %q", result.Data.ExtensionVersion)
	}
	if len(result.Data.Nearby) != 1 || result.Data.Nearby[0].Name != "Azkuna Zentroa" {
		t.Errorf("unexpected nearby %+v", result.Data.Nearby)
	}
}

func TestGraphQL_MutationError(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	query := `{"query":"mutation { setAuthorizationStatus(status: 7) }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)

	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) != 1 || result.Errors[0].Message != "Invalid authorization status 7, expected 0-4" {
		t.Errorf("unexpected errors %+v", result.Errors)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady_NoDatabase(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupApp(t, &mockSDK{})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(t, &mockSDK{version: "2.4.0"})

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/places/version", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on cacheable response")
	}

	req := httptest.NewRequest("GET", "/v1/places/version", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}
