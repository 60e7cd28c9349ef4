// Package hass is a Home Assistant WebSocket API client providing the
// bridge's device/area inventory.
//
// This package manages:
//   - The authentication handshake (auth_required / auth / auth_ok)
//   - Request/response correlation over the single WebSocket connection
//   - Device and area registry queries (config/device_registry/list,
//     config/area_registry/list)
//   - Subscription to device_registry_updated events, surfaced as
//     registry.Event values
//   - Automatic reconnection with backoff after a dropped connection,
//     restoring the registry event subscription
//
// The client implements registry.Source. Lookups fetch fresh registry
// state from Home Assistant on every call; nothing is cached between
// invocations.
//
// # Usage
//
//	client, err := hass.Connect(ctx, cfg.HomeAssistant)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	events, err := client.SubscribeRegistryEvents(ctx)
package hass
