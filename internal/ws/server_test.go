package ws

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/trip-dispatch/internal/auth"
	"github.com/example/trip-dispatch/internal/dispatch"
	"github.com/example/trip-dispatch/internal/gateway"
	"github.com/example/trip-dispatch/internal/location"
	"github.com/example/trip-dispatch/internal/presence"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := gateway.NewHub(logger)
	reg := presence.NewRegistry(hub)
	locs := location.NewMemoryStore()
	ctrl := dispatch.NewController(locs, reg, hub, dispatch.NewMemoryStore(), dispatch.NewTimerScheduler(logger), 30*time.Second, logger)
	a := auth.NewStaticTokens(map[string]string{
		"tok-d1": "d1:driver",
		"tok-d2": "d2:driver",
		"tok-p1": "p1:passenger",
	})
	srv := NewServer(a, hub, reg, locs, ctrl, nil, logger)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return ts, wsURL
}

func dial(t *testing.T, wsURL, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial with token %q: %v", token, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHandshakeRefusesBadToken(t *testing.T) {
	_, wsURL := newTestServer(t)
	for _, token := range []string{"", "bogus"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
		if err == nil {
			t.Fatalf("token %q: expected refusal", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %+v", token, resp)
		}
	}
}

func TestLocationUpdateRoundTrip(t *testing.T) {
	_, wsURL := newTestServer(t)
	driver := dial(t, wsURL, "tok-d1")

	driver.WriteJSON(map[string]any{"action": "update_location", "lat": 4.6, "lon": -74.08})
	if msg := readMsg(t, driver); msg["status"] != "location_updated" {
		t.Fatalf("expected ack, got %+v", msg)
	}

	driver.WriteJSON(map[string]any{"action": "update_location", "lat": 95.0, "lon": 0.0})
	if msg := readMsg(t, driver); msg["error"] == nil {
		t.Fatalf("expected validation error, got %+v", msg)
	}

	// the connection survived the rejected update
	driver.WriteJSON(map[string]any{"action": "update_location", "lat": 4.7, "lon": -74.0})
	if msg := readMsg(t, driver); msg["status"] != "location_updated" {
		t.Fatalf("connection broken after validation error: %+v", msg)
	}
}

func TestTripFlowOverWebsocket(t *testing.T) {
	ts, wsURL := newTestServer(t)
	driver := dial(t, wsURL, "tok-d1")
	passenger := dial(t, wsURL, "tok-p1")

	driver.WriteJSON(map[string]any{"action": "update_location", "lat": 4.60971, "lon": -74.08175})
	readMsg(t, driver) // location ack

	passenger.WriteJSON(map[string]any{
		"action":  "create_trip",
		"origen":  map[string]float64{"lat": 4.60971, "lng": -74.08175},
		"destino": map[string]float64{"lat": 4.65, "lng": -74.05},
	})

	offer := readMsg(t, driver)
	if offer["type"] != "trip_assigned" || offer["trip_id"] == nil {
		t.Fatalf("driver offer missing: %+v", offer)
	}
	tripID := offer["trip_id"].(string)

	notice := readMsg(t, passenger)
	if notice["status"] != "trip_assigned" || notice["driver_id"] != "d1" {
		t.Fatalf("passenger notice missing: %+v", notice)
	}

	driver.WriteJSON(map[string]any{"action": "accept_trip", "trip_id": tripID})
	if ack := readMsg(t, driver); ack["status"] != "trip_accepted" {
		t.Fatalf("driver accept ack missing: %+v", ack)
	}
	if msg := readMsg(t, passenger); msg["status"] != "trip_accepted" {
		t.Fatalf("passenger accept notice missing: %+v", msg)
	}

	// ops surface sees the accepted trip
	resp, err := http.Get(ts.URL + "/api/v1/trips/" + tripID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trip lookup: %d", resp.StatusCode)
	}
}

func TestCreateTripNoDriversOverWebsocket(t *testing.T) {
	_, wsURL := newTestServer(t)
	passenger := dial(t, wsURL, "tok-p1")

	passenger.WriteJSON(map[string]any{
		"action":  "create_trip",
		"origen":  map[string]float64{"lat": 4.6, "lng": -74.08},
		"destino": map[string]float64{"lat": 4.65, "lng": -74.05},
	})
	if msg := readMsg(t, passenger); msg["status"] != "no_drivers_available" {
		t.Fatalf("expected no_drivers_available, got %+v", msg)
	}
}

func TestRejectReassignsOverWebsocket(t *testing.T) {
	_, wsURL := newTestServer(t)
	d1 := dial(t, wsURL, "tok-d1")
	d2 := dial(t, wsURL, "tok-d2")
	passenger := dial(t, wsURL, "tok-p1")

	d1.WriteJSON(map[string]any{"action": "update_location", "lat": 4.60971, "lon": -74.08175})
	readMsg(t, d1)
	d2.WriteJSON(map[string]any{"action": "update_location", "lat": 4.61971, "lon": -74.09175})
	readMsg(t, d2)

	passenger.WriteJSON(map[string]any{
		"action":  "create_trip",
		"origen":  map[string]float64{"lat": 4.60971, "lng": -74.08175},
		"destino": map[string]float64{"lat": 4.65, "lng": -74.05},
	})

	offer := readMsg(t, d1)
	tripID := offer["trip_id"].(string)
	readMsg(t, passenger) // assigned d1

	d1.WriteJSON(map[string]any{"action": "reject_trip", "trip_id": tripID})

	offer2 := readMsg(t, d2)
	if offer2["type"] != "trip_assigned" || offer2["trip_id"] != tripID {
		t.Fatalf("d2 not re-offered: %+v", offer2)
	}
	notice := readMsg(t, passenger)
	if notice["driver_id"] != "d2" {
		t.Fatalf("passenger not told about d2: %+v", notice)
	}
}

func TestCancelEndpoint(t *testing.T) {
	ts, wsURL := newTestServer(t)
	d1 := dial(t, wsURL, "tok-d1")
	passenger := dial(t, wsURL, "tok-p1")

	d1.WriteJSON(map[string]any{"action": "update_location", "lat": 4.6, "lon": -74.08})
	readMsg(t, d1)
	passenger.WriteJSON(map[string]any{
		"action":  "create_trip",
		"origen":  map[string]float64{"lat": 4.6, "lng": -74.08},
		"destino": map[string]float64{"lat": 4.65, "lng": -74.05},
	})
	offer := readMsg(t, d1)
	tripID := offer["trip_id"].(string)

	resp, err := http.Post(ts.URL+"/api/v1/trips/"+tripID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel: %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/v1/trips/nope/cancel", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel unknown trip: %d", resp.StatusCode)
	}
}
