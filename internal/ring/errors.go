package ring

import "errors"

// ErrFull and ErrEmpty are steady-state signals, not failures: the
// producer back-pressures (spins or yields) on ErrFull, the consumer
// spins or briefly sleeps on ErrEmpty.
var (
	ErrFull  = errors.New("ring: full")
	ErrEmpty = errors.New("ring: empty")
)
