package chains

import "errors"

// ErrUnsupportedChain is returned for chain keys absent from the registry.
var ErrUnsupportedChain = errors.New("chain not supported")
