package hass

import "errors"

// Domain errors for the hass package.
var (
	// ErrConnectionFailed is returned when the WebSocket connection or
	// handshake cannot be established.
	ErrConnectionFailed = errors.New("hass: connection failed")

	// ErrAuthFailed is returned when Home Assistant rejects the access token.
	ErrAuthFailed = errors.New("hass: authentication failed")

	// ErrCommandFailed is returned when Home Assistant answers a command
	// with success=false.
	ErrCommandFailed = errors.New("hass: command failed")

	// ErrClosed is returned for operations while the connection is down,
	// either mid-reconnect or after Close.
	ErrClosed = errors.New("hass: connection closed")
)
