package tickets

import "errors"

// ErrInvalidInput is returned when a filing request is missing required
// fields. Check with errors.Is to distinguish caller mistakes from RT
// failures.
var ErrInvalidInput = errors.New("tickets: invalid input")
