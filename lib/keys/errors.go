package keys

import (
	"fmt"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
)

// ErrMalformedKey indicates a tool produced output that is not a key.
var ErrMalformedKey = fmt.Errorf("%w: malformed key", apperrors.ErrCommandFailed)
