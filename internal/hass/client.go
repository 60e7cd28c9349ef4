package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/config"
	"github.com/AlexHacksAround/ha-rt/internal/registry"
)

// Connection constants.
const (
	// handshakeTimeout bounds the WebSocket dial and auth exchange.
	handshakeTimeout = 10 * time.Second

	// eventBuffer is the registry event channel capacity. Events arriving
	// while the buffer is full are dropped with a warning; the periodic
	// full sweep repairs anything missed.
	eventBuffer = 16

	// Reconnect backoff bounds after a dropped connection.
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = time.Minute
)

// Logger is the optional logging interface accepted by SetLogger.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Client is a Home Assistant WebSocket API client.
//
// A dropped connection is re-dialled with exponential backoff; in-flight
// commands fail, the registry event subscription is restored, and the event
// channel keeps delivering. The channel closes only after Close().
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - A single reader goroutine owns the connection's read side; writes
//     are serialised by a mutex.
type Client struct {
	cfg  config.HAConfig
	conn *websocket.Conn

	// writeMu serialises WriteJSON calls and guards conn swaps.
	writeMu sync.Mutex

	// nextID is the monotonically increasing command identifier required
	// by the HA protocol. Guarded by mu.
	nextID int64

	// pending maps in-flight command ids to their reply channels.
	pending map[int64]chan commandResult
	mu      sync.Mutex

	// events receives decoded device_registry_updated notifications once
	// SubscribeRegistryEvents has been called.
	events      chan registry.Event
	closeEvents sync.Once

	// subscribed records that a registry event subscription must be
	// restored after a reconnect. Guarded by mu.
	subscribed bool

	// down means no usable connection right now; commands fail fast.
	// Guarded by mu.
	down bool

	// stopped means Close was called; no further reconnects. Guarded by mu.
	stopped bool

	// Backoff bounds, fields so tests can shorten them.
	reconnectInitial time.Duration
	reconnectMax     time.Duration

	logger Logger
}

// commandResult is one reply to a command frame.
type commandResult struct {
	result json.RawMessage
	err    error
}

// envelope is the wire shape of every server frame this client handles.
type envelope struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Event   json.RawMessage `json:"event"`
	Error   *commandError   `json:"error"`
}

// commandError is the error payload of a failed command.
type commandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wireDevice is a device registry entry as Home Assistant serialises it.
// Connections arrive as two-element arrays, not objects.
type wireDevice struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	NameByUser       string     `json:"name_by_user"`
	Manufacturer     string     `json:"manufacturer"`
	Model            string     `json:"model"`
	SerialNumber     string     `json:"serial_number"`
	SWVersion        string     `json:"sw_version"`
	HWVersion        string     `json:"hw_version"`
	ConfigurationURL string     `json:"configuration_url"`
	Connections      [][]string `json:"connections"`
	AreaID           string     `json:"area_id"`
	EntryType        string     `json:"entry_type"`
}

// toDevice converts the wire shape into the registry type.
func (w wireDevice) toDevice() registry.Device {
	device := registry.Device{
		ID:               w.ID,
		Name:             w.Name,
		NameByUser:       w.NameByUser,
		Manufacturer:     w.Manufacturer,
		Model:            w.Model,
		SerialNumber:     w.SerialNumber,
		SWVersion:        w.SWVersion,
		HWVersion:        w.HWVersion,
		ConfigurationURL: w.ConfigurationURL,
		AreaID:           w.AreaID,
		EntryType:        w.EntryType,
	}
	for _, pair := range w.Connections {
		if len(pair) == 2 {
			device.Connections = append(device.Connections, registry.Connection{
				Type:  pair[0],
				Value: pair[1],
			})
		}
	}
	return device
}

// Connect dials the Home Assistant WebSocket API and completes the
// authentication handshake.
func Connect(ctx context.Context, cfg config.HAConfig) (*Client, error) {
	c := &Client{
		cfg:              cfg,
		pending:          make(map[int64]chan commandResult),
		events:           make(chan registry.Event, eventBuffer),
		reconnectInitial: reconnectInitialDelay,
		reconnectMax:     reconnectMaxDelay,
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	go c.readLoop(conn)
	return c, nil
}

// dial opens and authenticates one connection.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := websocketURL(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %w", ErrConnectionFailed, wsURL, err)
	}

	if err := authenticate(conn, c.cfg.Token); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// websocketURL derives the WebSocket endpoint from the HA base URL.
func websocketURL(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
		// already a websocket URL
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/websocket"
	return parsed.String(), nil
}

// authenticate performs the auth_required / auth / auth_ok exchange.
// Runs before the read loop starts, so it may read the connection directly.
func authenticate(conn *websocket.Conn, token string) error {
	deadline := time.Now().Add(handshakeTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var hello envelope
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("%w: reading auth challenge: %w", ErrConnectionFailed, err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("%w: unexpected frame %q during handshake", ErrConnectionFailed, hello.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": token}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("%w: sending credentials: %w", ErrConnectionFailed, err)
	}

	var reply envelope
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("%w: reading auth reply: %w", ErrConnectionFailed, err)
	}
	switch reply.Type {
	case "auth_ok":
	case "auth_invalid":
		return fmt.Errorf("%w: access token rejected", ErrAuthFailed)
	default:
		return fmt.Errorf("%w: unexpected frame %q during handshake", ErrConnectionFailed, reply.Type)
	}

	// Hand the connection over to the read loop without a deadline.
	return conn.SetReadDeadline(time.Time{})
}

// readLoop is the single reader of one connection. It dispatches command
// replies to their waiters and registry events to the event channel, and
// hands off to the reconnect path when the connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var frame envelope
		if err := conn.ReadJSON(&frame); err != nil {
			c.connectionLost(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}

		switch frame.Type {
		case "result":
			c.deliver(frame)
		case "event":
			c.dispatchEvent(frame.Event)
		default:
			// pong and other frames are ignored
		}
	}
}

// deliver routes a result frame to the goroutine waiting on its id.
func (c *Client) deliver(frame envelope) {
	c.mu.Lock()
	ch, ok := c.pending[frame.ID]
	if ok {
		delete(c.pending, frame.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if !frame.Success {
		msg := "unknown error"
		if frame.Error != nil {
			msg = frame.Error.Message
		}
		ch <- commandResult{err: fmt.Errorf("%w: %s", ErrCommandFailed, msg)}
		return
	}
	ch <- commandResult{result: frame.Result}
}

// dispatchEvent decodes a device_registry_updated event and forwards it.
// Events are dropped when the buffer is full; the periodic sweep catches up.
func (c *Client) dispatchEvent(raw json.RawMessage) {
	var event struct {
		EventType string `json:"event_type"`
		Data      struct {
			Action   string `json:"action"`
			DeviceID string `json:"device_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		c.warn("decoding registry event", "error", err)
		return
	}
	if event.Data.DeviceID == "" {
		return
	}

	select {
	case c.events <- registry.Event{
		Action:   registry.Action(event.Data.Action),
		DeviceID: event.Data.DeviceID,
	}:
	default:
		c.warn("registry event buffer full, dropping event",
			"device_id", event.Data.DeviceID, "action", event.Data.Action)
	}
}

// connectionLost errors out every in-flight command and either shuts down
// (after Close) or starts the reconnect loop.
func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	c.down = true
	stopped := c.stopped
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- commandResult{err: err}
	}
	c.mu.Unlock()

	if stopped {
		c.closeEvents.Do(func() { close(c.events) })
		return
	}

	c.warn("connection lost, reconnecting", "error", err)
	go c.reconnect()
}

// reconnect re-dials with exponential backoff until the connection is back
// or Close is called. A registry event subscription is restored so the
// event channel keeps delivering across drops.
func (c *Client) reconnect() {
	c.mu.Lock()
	delay := c.reconnectInitial
	maxDelay := c.reconnectMax
	c.mu.Unlock()

	for {
		time.Sleep(delay)

		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			c.closeEvents.Do(func() { close(c.events) })
			return
		}

		dialCtx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.dial(dialCtx)
		cancel()
		if err != nil {
			c.warn("reconnect attempt failed", "error", err)
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}

		c.writeMu.Lock()
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			c.writeMu.Unlock()
			conn.Close()
			c.closeEvents.Do(func() { close(c.events) })
			return
		}
		c.conn = conn
		c.down = false
		subscribed := c.subscribed
		c.mu.Unlock()
		c.writeMu.Unlock()

		go c.readLoop(conn)
		c.debug("reconnected")

		if subscribed {
			subCtx, subCancel := context.WithTimeout(context.Background(), handshakeTimeout)
			_, err := c.call(subCtx, map[string]any{
				"type":       "subscribe_events",
				"event_type": "device_registry_updated",
			})
			subCancel()
			if err != nil {
				c.warn("restoring registry event subscription failed", "error", err)
			}
		}
		return
	}
}

// call sends one command frame and waits for its result.
func (c *Client) call(ctx context.Context, command map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan commandResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	command["id"] = id

	c.writeMu.Lock()
	err := c.conn.WriteJSON(command)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ListDevices retrieves the full device registry.
func (c *Client) ListDevices(ctx context.Context) ([]registry.Device, error) {
	raw, err := c.call(ctx, map[string]any{"type": "config/device_registry/list"})
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var wire []wireDevice
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding device registry: %w", err)
	}

	devices := make([]registry.Device, 0, len(wire))
	for _, w := range wire {
		devices = append(devices, w.toDevice())
	}
	return devices, nil
}

// GetDevice retrieves one device by identifier. Home Assistant exposes no
// single-entry fetch, so this lists and scans; registry sizes are small.
func (c *Client) GetDevice(ctx context.Context, id string) (*registry.Device, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].ID == id {
			return &devices[i], nil
		}
	}
	return nil, registry.ErrDeviceNotFound
}

// ListAreas retrieves the full area registry.
func (c *Client) ListAreas(ctx context.Context) ([]registry.Area, error) {
	raw, err := c.call(ctx, map[string]any{"type": "config/area_registry/list"})
	if err != nil {
		return nil, fmt.Errorf("listing areas: %w", err)
	}

	var areas []registry.Area
	if err := json.Unmarshal(raw, &areas); err != nil {
		return nil, fmt.Errorf("decoding area registry: %w", err)
	}
	return areas, nil
}

// GetArea resolves one area by identifier.
func (c *Client) GetArea(ctx context.Context, id string) (*registry.Area, error) {
	areas, err := c.ListAreas(ctx)
	if err != nil {
		return nil, err
	}
	for i := range areas {
		if areas[i].ID == id {
			return &areas[i], nil
		}
	}
	return nil, registry.ErrAreaNotFound
}

// SubscribeRegistryEvents subscribes to device_registry_updated events and
// returns the channel they are delivered on. The subscription survives
// reconnects; the channel is closed only after Close.
func (c *Client) SubscribeRegistryEvents(ctx context.Context) (<-chan registry.Event, error) {
	_, err := c.call(ctx, map[string]any{
		"type":       "subscribe_events",
		"event_type": "device_registry_updated",
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to registry events: %w", err)
	}

	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()
	return c.events, nil
}

// SetLogger attaches a logger. Optional.
func (c *Client) SetLogger(l Logger) {
	c.logger = l
}

// Close shuts the client down for good. The read loop then fails any
// in-flight commands and the event channel is closed; no reconnect follows.
func (c *Client) Close() error {
	c.mu.Lock()
	c.stopped = true
	conn := c.conn
	down := c.down
	c.mu.Unlock()

	err := conn.Close()
	if down {
		// The connection was already gone; the reconnect loop will notice
		// stopped and close the event channel.
		return nil
	}
	return err
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
