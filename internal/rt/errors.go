package rt

import "errors"

// Domain errors for the rt package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, rt.ErrInvalidAuth) {
//	    // credential rejected, surface to operator
//	}
var (
	// ErrCannotConnect is returned when the RT server cannot be reached at
	// the transport level. Retrying is the caller's decision.
	ErrCannotConnect = errors.New("rt: cannot connect")

	// ErrInvalidAuth is returned when the API token is rejected (401) or
	// lacks the required permissions (403). Fatal to the configuration,
	// never retried automatically.
	ErrInvalidAuth = errors.New("rt: invalid authentication")

	// ErrAPI is returned when RT responds with a non-success status for an
	// operation expected to succeed.
	ErrAPI = errors.New("rt: api error")

	// ErrInvalidEndpoint is returned when a candidate base URL fails the
	// scheme or address-space policy. Fatal at configuration time.
	ErrInvalidEndpoint = errors.New("rt: invalid endpoint")
)
