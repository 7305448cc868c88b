// Package guard serializes concurrent work on the same key. The order
// placement flow uses it so that two requests for one order id never run the
// validate-then-write sequence at the same time.
package guard

import (
	"context"
	"errors"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("guard: key is held")

// ReleaseFunc gives up a held key. It is safe to call more than once.
type ReleaseFunc func(ctx context.Context) error

// Guard hands out exclusive, expiring holds on keys. Acquire never blocks
// waiting for a holder: it fails fast with ErrHeld.
type Guard interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}
