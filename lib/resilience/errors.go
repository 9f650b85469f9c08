package resilience

import apperrors "github.com/go-i2p/wgadmin/lib/errors"

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = apperrors.ErrCircuitOpen
