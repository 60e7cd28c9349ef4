// Package rt provides a client for the Request Tracker REST2 API.
//
// This package manages:
//   - TicketSQL query construction with injection-safe escaping
//   - Endpoint URL validation (scheme and address-space policy)
//   - Stateless HTTP operations: connectivity probe, ticket and asset
//     search, asset create/update, ticket create, comments, linking
//
// # Error Policy
//
// Operations central to the caller's intent (Probe, CreateTicket, AddComment,
// ticket search) return errors. Best-effort enrichments (SearchAsset,
// GetAsset, LinkTicketToAsset) degrade gracefully: they log a warning and
// report "not found" or false instead of failing, so an asset-side outage
// never blocks ticket filing.
//
// # Security Considerations
//
//   - Every untrusted string embedded in a TicketSQL literal must pass
//     through EscapeLiteral; the query builders in this package do this for
//     all operands
//   - ValidateEndpoint must run before a Client is constructed, at initial
//     configuration and on every configuration change
//   - DNS resolution of an accepted hostname to a blocked address is not
//     checked; that residual risk is documented on ValidateEndpoint
//
// # Usage
//
//	base, err := rt.ValidateEndpoint("https://rt.example.com", false)
//	if err != nil {
//	    return err
//	}
//	client := rt.NewClient(base, token)
//	if err := client.Probe(ctx); err != nil {
//	    return err
//	}
package rt
