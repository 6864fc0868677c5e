package command

import "errors"

// Stable error kinds. These are sentinel values so callers can compare
// with errors.Is across package boundaries.
var (
	ErrDuplicateOrderID = errors.New("command: duplicate order id")
	ErrUnknownOrderID   = errors.New("command: unknown order id")
	ErrPoolExhausted    = errors.New("command: order arena exhausted")
	ErrInvalidCommand   = errors.New("command: invalid command")
	ErrWalIntegrity     = errors.New("command: wal integrity violation")
	ErrSnapshotIntegrity = errors.New("command: snapshot integrity violation")
)
