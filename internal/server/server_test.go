package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storewatch/internal/adapter/fake"
	"storewatch/internal/alert"
	"storewatch/internal/monitor"
	"storewatch/internal/registry"
	"storewatch/internal/sweeper"
)

type harness struct {
	srv      *httptest.Server
	store    *fake.Store
	notifier *fake.Notifier
	clock    *fake.Clock
	registry *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := fake.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := fake.NewStore()
	notifier := fake.NewNotifier()
	reg := registry.New()

	d := alert.NewDispatcher(alert.Config{
		Store:      store,
		Recipients: &fake.Recipients{Default: []string{"ops@example.com"}},
		Notifier:   notifier,
		Clock:      clock,
	})
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	sw := &sweeper.Sweeper{
		Registry:   reg,
		Store:      store,
		Dispatcher: d,
		Threshold:  5 * time.Minute,
		Clock:      clock,
	}

	s := New(Config{
		Registry:   reg,
		Store:      store,
		Dispatcher: d,
		Sweeper:    sw,
		Clock:      clock,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		d.Wait()
	})
	return &harness{srv: srv, store: store, notifier: notifier, clock: clock, registry: reg}
}

func (h *harness) postHeartbeat(t *testing.T, path string, hb monitor.Heartbeat) *http.Response {
	t.Helper()
	body, err := json.Marshal(hb)
	if err != nil {
		t.Fatalf("marshal heartbeat: %v", err)
	}
	resp, err := http.Post(h.srv.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func validHeartbeat(id string) monitor.Heartbeat {
	return monitor.Heartbeat{
		StoreID:   id,
		StoreName: "Store " + id,
		Timestamp: time.Date(2026, 3, 1, 8, 59, 0, 0, time.UTC),
	}
}

func TestIngestLiveHeartbeat(t *testing.T) {
	h := newHarness(t)

	resp := h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("ack = %v", body)
	}
	if body["total_stores_monitored"].(float64) != 1 {
		t.Fatalf("total_stores_monitored = %v", body["total_stores_monitored"])
	}
	if h.store.HeartbeatCount() != 1 {
		t.Fatalf("persisted heartbeats = %d", h.store.HeartbeatCount())
	}
}

func TestIngestBufferedHeartbeat(t *testing.T) {
	h := newHarness(t)

	resp := h.postHeartbeat(t, "/heartbeat/buffered", validHeartbeat("s1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	snap, ok := h.registry.Get("s1")
	if !ok || snap.Status != monitor.StatusOnline {
		t.Fatalf("snapshot = %+v, ok = %v", snap, ok)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	t.Run("malformed json", func(t *testing.T) {
		resp, err := http.Post(h.srv.URL+"/heartbeat", "application/json", strings.NewReader("{nope"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("missing store id", func(t *testing.T) {
		resp := h.postHeartbeat(t, "/heartbeat", monitor.Heartbeat{Timestamp: time.Now()})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("impossible camera counts", func(t *testing.T) {
		hb := validHeartbeat("s1")
		hb.CameraStatus = monitor.CameraStatus{TotalCameras: 2, ActiveCameras: 5}
		resp := h.postHeartbeat(t, "/heartbeat", hb)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})
}

func TestIngestAcksDespitePersistFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailSaves = true

	resp := h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("persist failure leaked to the client: status = %d", resp.StatusCode)
	}

	snap, ok := h.registry.Get("s1")
	if !ok || snap.Status != monitor.StatusOnline {
		t.Fatal("heartbeat must still count for liveness when persistence fails")
	}
}

func TestRecoveryAfterSweep(t *testing.T) {
	h := newHarness(t)

	// Store goes online, then silent long enough for the sweeper.
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()
	h.clock.Advance(10 * time.Minute)

	resp, err := http.Get(h.srv.URL + "/trigger-health-check")
	if err != nil {
		t.Fatal(err)
	}
	sweep := decode[map[string]int](t, resp)
	if sweep["transitions"] != 1 {
		t.Fatalf("sweep transitions = %d", sweep["transitions"])
	}

	// A fresh heartbeat recovers the store.
	h.clock.Advance(time.Minute)
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()

	snap, _ := h.registry.Get("s1")
	if snap.Status != monitor.StatusOnline {
		t.Fatalf("status after recovery = %v", snap.Status)
	}

	kinds := h.store.AlertKinds()
	want := []monitor.AlertKind{monitor.AlertStartup, monitor.AlertOffline, monitor.AlertRecovery}
	if len(kinds) != len(want) {
		t.Fatalf("alert kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("alert kinds = %v, want %v", kinds, want)
		}
	}
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s2")).Body.Close()

	resp, err := http.Get(h.srv.URL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[struct {
		Stores  []monitor.StoreSnapshot `json:"stores"`
		Summary struct {
			Total  int `json:"total"`
			Online int `json:"online"`
		} `json:"summary"`
	}](t, resp)

	if body.Summary.Total != 2 || body.Summary.Online != 2 {
		t.Fatalf("summary = %+v", body.Summary)
	}
	if len(body.Stores) != 2 {
		t.Fatalf("stores = %d", len(body.Stores))
	}
	if body.Stores[0].StatusText != "online" {
		t.Fatalf("status text = %q", body.Stores[0].StatusText)
	}
}

func TestStoreEndpoint(t *testing.T) {
	h := newHarness(t)
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()

	t.Run("known store", func(t *testing.T) {
		resp, err := http.Get(h.srv.URL + "/store/s1")
		if err != nil {
			t.Fatal(err)
		}
		body := decode[map[string]any](t, resp)
		if body["is_online"] != true {
			t.Fatalf("is_online = %v", body["is_online"])
		}
	})

	t.Run("unknown store", func(t *testing.T) {
		resp, err := http.Get(h.srv.URL + "/store/nope")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})
}

func TestAlertsEndpoints(t *testing.T) {
	h := newHarness(t)
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()

	resp, err := http.Get(h.srv.URL + "/alerts")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[struct {
		Alerts []monitor.Alert `json:"alerts"`
	}](t, resp)
	if len(body.Alerts) != 1 || body.Alerts[0].Kind != monitor.AlertStartup {
		t.Fatalf("alerts = %+v", body.Alerts)
	}

	resp, err = http.Get(h.srv.URL + "/alerts/other")
	if err != nil {
		t.Fatal(err)
	}
	body = decode[struct {
		Alerts []monitor.Alert `json:"alerts"`
	}](t, resp)
	if len(body.Alerts) != 0 {
		t.Fatalf("alerts for other store = %+v", body.Alerts)
	}
}

func TestTestEmailEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/test-email/s9")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "queued" || body["store_id"] != "s9" {
		t.Fatalf("body = %v", body)
	}

	select {
	case msg := <-h.notifier.Sent:
		if !strings.Contains(msg.Subject, "s9") {
			t.Fatalf("subject = %q", msg.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("test email never delivered")
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	h.postHeartbeat(t, "/heartbeat", validHeartbeat("s1")).Body.Close()

	resp, err := http.Get(h.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[struct {
		Status             string         `json:"status"`
		HeartbeatsAccepted int            `json:"heartbeats_accepted"`
		Stores             map[string]int `json:"stores"`
	}](t, resp)

	if body.Status != "ok" || body.HeartbeatsAccepted != 1 {
		t.Fatalf("health = %+v", body)
	}
	if body.Stores["online"] != 1 {
		t.Fatalf("stores = %v", body.Stores)
	}
}

func TestCORS(t *testing.T) {
	clock := fake.NewClock(time.Now())
	store := fake.NewStore()
	d := alert.NewDispatcher(alert.Config{Store: store, Clock: clock})
	s := New(Config{
		Registry:   registry.New(),
		Store:      store,
		Dispatcher: d,
		Clock:      clock,
		CORSOrigin: "https://dashboard.example.com",
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/dashboard", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
