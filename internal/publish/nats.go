package publish

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/codec"
	"github.com/trnahnh/velocity-match/internal/command"
)

// NATSPublisher is the alternate transport for execution reports: core
// NATS publish (not JetStream — the spec treats the publisher as a
// best-effort, fire-and-forget boundary, so there is nothing for
// durable delivery semantics to buy here).
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	log     *zap.Logger
}

// NewNATSPublisher connects to url and returns a publisher that sends
// every report to subject.
func NewNATSPublisher(url, subject string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("publish: nats connect %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, subject: subject, log: log}, nil
}

// Publish encodes report and publishes it to the configured subject.
func (p *NATSPublisher) Publish(report command.ExecutionReport) error {
	var buf [codec.ExecutionReportSize]byte
	codec.EncodeExecutionReport(buf[:], report)
	if err := p.conn.Publish(p.subject, buf[:]); err != nil {
		p.log.Warn("publish: nats publish failed", zap.Error(err), zap.Uint64("seq", report.Seq))
		return err
	}
	return nil
}

// Close closes the NATS connection; it does not drain it.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
