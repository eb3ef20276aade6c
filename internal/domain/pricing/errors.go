package pricing

import "errors"

var (
	ErrUnknownTier = errors.New("unknown pricing tier")
	ErrUnknownSize = errors.New("unknown print size")
)
