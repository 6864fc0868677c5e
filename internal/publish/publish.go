// Package publish implements a one-way boundary: the core calls
// Publish(report) once per execution report and never learns whether,
// or to whom, it arrived. Gap recovery is external and reads the WAL
// directly.
package publish

import "github.com/trnahnh/velocity-match/internal/command"

// Publisher is the core's only outbound collaborator.
type Publisher interface {
	Publish(report command.ExecutionReport) error
	Close() error
}

// Noop discards every report — used in recovery mode, where
// publishing must stay suppressed while replayed commands are
// reapplied so a restarted process never re-announces old fills.
type Noop struct{}

func (Noop) Publish(command.ExecutionReport) error { return nil }
func (Noop) Close() error                          { return nil }
