package http_test

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/placesbridge/internal/adapters/http"
	"github.com/samirrijal/placesbridge/internal/core/domain"
	"github.com/samirrijal/placesbridge/internal/core/usecases"
)

// startServer serves the routes on a loopback listener and returns its ws URL.
func startServer(t *testing.T, sdk *mockSDK) string {
	t.Helper()
	d := usecases.NewDispatcher(sdk, usecases.DispatcherOptions{Workers: 2, CallTimeout: time.Second})
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, &handler.Dependencies{Bridge: d, ReplyTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = d.Shutdown(context.Background())
	})
	return "ws://" + ln.Addr().String() + "/ws"
}

func TestWebSocket_Calls(t *testing.T) {
	url := startServer(t, &mockSDK{
		version: "5.0.0",
		lastKnownFn: func(ctx context.Context) (*domain.Location, error) {
			return nil, nil
		},
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	requests := []string{
		`{"id":"1","action":"extensionVersion","args":[]}`,
		`{"id":"2","action":"getLastKnownLocation"}`,
		`{"id":"3","action":"teleport","args":[]}`,
	}
	for _, r := range requests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(r)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	replies := make(map[string]usecases.Envelope)
	for len(replies) < len(requests) {
		var env usecases.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		replies[env.ID] = env
	}

	if r := replies["1"]; r.Status != "ok" || r.Payload == nil || *r.Payload != "5.0.0" {
		t.Errorf("unexpected reply 1: %+v", r)
	}
	if r := replies["2"]; r.Status != "error" || r.Message != "Last known location is null" {
		t.Errorf("unexpected reply 2: %+v", r)
	}
	if r := replies["3"]; r.Status != "unhandled" {
		t.Errorf("unexpected reply 3: %+v", r)
	}
}

func TestWebSocket_InvalidJSON(t *testing.T) {
	url := startServer(t, &mockSDK{})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	var env usecases.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Status != "error" || env.Message != "invalid JSON" {
		t.Errorf("unexpected reply %+v", env)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(t, &mockSDK{})
	resp, _ := app.Test(httptest.NewRequest("GET", "/ws", nil), -1)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}
