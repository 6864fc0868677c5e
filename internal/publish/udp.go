package publish

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/codec"
	"github.com/trnahnh/velocity-match/internal/command"
)

// UDPPublisher sends each execution report as one non-blocking UDP
// datagram to a multicast or unicast group — the fire-and-forget,
// connectionless send style a feed simulator uses for market data: no
// delivery confirmation, no retry, no backpressure on the matcher.
type UDPPublisher struct {
	conn *net.UDPConn
	log  *zap.Logger
	buf  [codec.ExecutionReportSize]byte
}

// NewUDPPublisher dials addr (e.g. "239.0.0.1:9999" for multicast, or
// any unicast host:port) and returns a ready-to-use publisher.
func NewUDPPublisher(addr string, log *zap.Logger) (*UDPPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("publish: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("publish: dial %s: %w", addr, err)
	}
	return &UDPPublisher{conn: conn, log: log}, nil
}

// Publish encodes report into the publisher's own scratch buffer and
// sends it as a single datagram. A send error is logged and returned;
// the engine only logs a returned error, so a failed send never trips
// the matcher's book mutation path.
func (p *UDPPublisher) Publish(report command.ExecutionReport) error {
	codec.EncodeExecutionReport(p.buf[:], report)
	if _, err := p.conn.Write(p.buf[:]); err != nil {
		p.log.Warn("publish: udp send failed", zap.Error(err), zap.Uint64("seq", report.Seq))
		return err
	}
	return nil
}

// Close releases the UDP socket.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}
