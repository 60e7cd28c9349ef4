package hass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/config"
	"github.com/AlexHacksAround/ha-rt/internal/registry"
)

// fakeHA is a minimal Home Assistant WebSocket server. It performs the
// auth handshake and answers registry commands from canned data.
type fakeHA struct {
	server *httptest.Server

	token   string
	devices []map[string]any
	areas   []map[string]any

	// eventTrigger, when non-nil, receives the connection once a
	// subscribe_events command has been acknowledged so the test can
	// push event frames.
	eventTrigger chan *websocket.Conn

	// conns, when non-nil, receives each connection after a successful
	// auth handshake so the test can drop it server-side.
	conns chan *websocket.Conn
}

func newFakeHA(t *testing.T) *fakeHA {
	t.Helper()

	f := &fakeHA{token: "valid-token"}
	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.serve(conn)
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeHA) serve(conn *websocket.Conn) {
	if err := conn.WriteJSON(map[string]any{"type": "auth_required"}); err != nil {
		return
	}

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth.AccessToken != f.token {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth_ok"}); err != nil {
		return
	}
	if f.conns != nil {
		f.conns <- conn
	}

	for {
		var cmd struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Type {
		case "config/device_registry/list":
			f.reply(conn, cmd.ID, f.devices)
		case "config/area_registry/list":
			f.reply(conn, cmd.ID, f.areas)
		case "subscribe_events":
			f.reply(conn, cmd.ID, nil)
			if f.eventTrigger != nil {
				f.eventTrigger <- conn
			}
		default:
			conn.WriteJSON(map[string]any{
				"id": cmd.ID, "type": "result", "success": false,
				"error": map[string]any{"code": "unknown_command", "message": "Unknown command."},
			})
		}
	}
}

func (f *fakeHA) reply(conn *websocket.Conn, id int64, result any) {
	conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true, "result": result})
}

func (f *fakeHA) config() config.HAConfig {
	return config.HAConfig{URL: f.server.URL, Token: f.token}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectAuthFailure(t *testing.T) {
	fake := newFakeHA(t)

	_, err := Connect(testContext(t), config.HAConfig{URL: fake.server.URL, Token: "wrong"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(testContext(t), config.HAConfig{URL: "http://127.0.0.1:1", Token: "x"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	fake := newFakeHA(t)
	fake.devices = []map[string]any{
		{
			"id":                "dev-1",
			"name":              "Boiler",
			"name_by_user":      "Cellar Boiler",
			"manufacturer":      "Vaillant",
			"model":             "ecoTEC",
			"serial_number":     "SN-100",
			"sw_version":        "3.1",
			"hw_version":        "rev2",
			"configuration_url": "http://boiler.local",
			"connections":       [][]string{{"mac", "aa:bb:cc:dd:ee:ff"}, {"zigbee"}},
			"area_id":           "cellar",
		},
		{
			"id":         "hub-1",
			"name":       "Zigbee Hub",
			"entry_type": "service",
		},
	}

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	devices, err := client.ListDevices(testContext(t))
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	boiler := devices[0]
	if boiler.ID != "dev-1" || boiler.NameByUser != "Cellar Boiler" {
		t.Errorf("unexpected device: %+v", boiler)
	}
	if boiler.Manufacturer != "Vaillant" || boiler.SerialNumber != "SN-100" {
		t.Errorf("attributes not decoded: %+v", boiler)
	}
	if got := boiler.MAC(); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MAC() = %q, want aa:bb:cc:dd:ee:ff", got)
	}
	if len(boiler.Connections) != 1 {
		t.Errorf("malformed connection pair should be skipped, got %d connections", len(boiler.Connections))
	}

	if devices[1].IsPhysical() {
		t.Error("service entry should not be physical")
	}
}

func TestGetDevice(t *testing.T) {
	fake := newFakeHA(t)
	fake.devices = []map[string]any{
		{"id": "dev-1", "name": "Boiler"},
		{"id": "dev-2", "name": "Valve"},
	}

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	device, err := client.GetDevice(testContext(t), "dev-2")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if device.Name != "Valve" {
		t.Errorf("got device %+v", device)
	}

	_, err = client.GetDevice(testContext(t), "missing")
	if !errors.Is(err, registry.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestGetArea(t *testing.T) {
	fake := newFakeHA(t)
	fake.areas = []map[string]any{
		{"area_id": "cellar", "name": "Cellar"},
		{"area_id": "attic", "name": "Attic"},
	}

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	area, err := client.GetArea(testContext(t), "attic")
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	if area.Name != "Attic" {
		t.Errorf("got area %+v", area)
	}

	_, err = client.GetArea(testContext(t), "garage")
	if !errors.Is(err, registry.ErrAreaNotFound) {
		t.Errorf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestCommandFailure(t *testing.T) {
	fake := newFakeHA(t)

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	_, err = client.call(testContext(t), map[string]any{"type": "no/such/command"})
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
}

func TestSubscribeRegistryEvents(t *testing.T) {
	fake := newFakeHA(t)
	fake.eventTrigger = make(chan *websocket.Conn, 1)

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	events, err := client.SubscribeRegistryEvents(testContext(t))
	if err != nil {
		t.Fatalf("SubscribeRegistryEvents: %v", err)
	}

	conn := <-fake.eventTrigger
	event := map[string]any{
		"id": 0, "type": "event",
		"event": map[string]any{
			"event_type": "device_registry_updated",
			"data":       map[string]any{"action": "update", "device_id": "dev-7"},
		},
	}
	if err := conn.WriteJSON(event); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	select {
	case got := <-events:
		if got.Action != registry.ActionUpdate || got.DeviceID != "dev-7" {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for registry event")
	}
}

func TestEventChannelClosesOnClose(t *testing.T) {
	fake := newFakeHA(t)

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	events, err := client.SubscribeRegistryEvents(testContext(t))
	if err != nil {
		t.Fatalf("SubscribeRegistryEvents: %v", err)
	}

	client.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event channel not closed after Close")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	fake := newFakeHA(t)
	fake.devices = []map[string]any{{"id": "dev-1", "name": "Boiler"}}
	fake.conns = make(chan *websocket.Conn, 2)
	fake.eventTrigger = make(chan *websocket.Conn, 2)

	client, err := Connect(testContext(t), fake.config())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	client.mu.Lock()
	client.reconnectInitial = 10 * time.Millisecond
	client.reconnectMax = 10 * time.Millisecond
	client.mu.Unlock()

	events, err := client.SubscribeRegistryEvents(testContext(t))
	if err != nil {
		t.Fatalf("SubscribeRegistryEvents: %v", err)
	}
	<-fake.eventTrigger

	// Drop the connection server-side; the client should re-dial and
	// restore the registry event subscription on its own.
	first := <-fake.conns
	first.Close()

	var second *websocket.Conn
	select {
	case second = <-fake.eventTrigger:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not restored after reconnect")
	}

	devices, err := client.ListDevices(testContext(t))
	if err != nil {
		t.Fatalf("ListDevices after reconnect: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-1" {
		t.Errorf("unexpected devices after reconnect: %+v", devices)
	}

	// Events keep arriving on the original channel.
	event := map[string]any{
		"id": 0, "type": "event",
		"event": map[string]any{
			"event_type": "device_registry_updated",
			"data":       map[string]any{"action": "remove", "device_id": "dev-1"},
		},
	}
	if err := second.WriteJSON(event); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	select {
	case got := <-events:
		if got.Action != registry.ActionRemove || got.DeviceID != "dev-1" {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event after reconnect")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "http", input: "http://ha.local:8123", want: "ws://ha.local:8123/api/websocket"},
		{name: "https", input: "https://ha.example.com", want: "wss://ha.example.com/api/websocket"},
		{name: "trailing slash", input: "http://ha.local:8123/", want: "ws://ha.local:8123/api/websocket"},
		{name: "already ws", input: "ws://ha.local:8123", want: "ws://ha.local:8123/api/websocket"},
		{name: "bad scheme", input: "ftp://ha.local", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := websocketURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("websocketURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("websocketURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
