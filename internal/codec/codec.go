// Package codec implements the fixed-size little-endian wire format
// shared by the network boundary and the write-ahead log. It is
// deliberately the one package in this module with no opinion about
// the engine: it only turns command/command.go values into bytes and
// back.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/trnahnh/velocity-match/internal/command"
)

const (
	KindNewOrder        byte = 0x01
	KindCancelOrder     byte = 0x02
	KindExecutionReport byte = 0x03

	NewOrderSize        = 40
	CancelOrderSize     = 16
	ExecutionReportSize = 48
)

func sideByte(s command.Side) byte {
	if s == command.Ask {
		return 1
	}
	return 0
}

func byteSide(b byte) command.Side {
	if b == 1 {
		return command.Ask
	}
	return command.Bid
}

// EncodeNewOrder writes o into buf (which must be at least
// NewOrderSize bytes) in the §6 NewOrder layout and returns the number
// of bytes written.
func EncodeNewOrder(buf []byte, o command.NewOrder) int {
	_ = buf[:NewOrderSize]
	buf[0] = KindNewOrder
	buf[1] = sideByte(o.Side)
	for i := 2; i < 8; i++ {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint64(buf[8:16], o.ID)
	binary.LittleEndian.PutUint64(buf[16:24], o.TraderID)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(o.Price))
	binary.LittleEndian.PutUint64(buf[32:40], o.Quantity)
	return NewOrderSize
}

// DecodeNewOrder reads a §6 NewOrder frame from buf.
func DecodeNewOrder(buf []byte) (command.NewOrder, error) {
	if len(buf) < NewOrderSize {
		return command.NewOrder{}, fmt.Errorf("codec: NewOrder frame too short: %d bytes", len(buf))
	}
	if buf[0] != KindNewOrder {
		return command.NewOrder{}, fmt.Errorf("codec: expected NewOrder kind 0x%02x, got 0x%02x", KindNewOrder, buf[0])
	}
	return command.NewOrder{
		Side:     byteSide(buf[1]),
		ID:       binary.LittleEndian.Uint64(buf[8:16]),
		TraderID: binary.LittleEndian.Uint64(buf[16:24]),
		Price:    int64(binary.LittleEndian.Uint64(buf[24:32])),
		Quantity: binary.LittleEndian.Uint64(buf[32:40]),
	}, nil
}

// EncodeCancelOrder writes c into buf (at least CancelOrderSize bytes)
// in the §6 CancelOrder layout.
func EncodeCancelOrder(buf []byte, c command.CancelOrder) int {
	_ = buf[:CancelOrderSize]
	buf[0] = KindCancelOrder
	for i := 1; i < 8; i++ {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint64(buf[8:16], c.OrderID)
	return CancelOrderSize
}

// DecodeCancelOrder reads a §6 CancelOrder frame from buf.
func DecodeCancelOrder(buf []byte) (command.CancelOrder, error) {
	if len(buf) < CancelOrderSize {
		return command.CancelOrder{}, fmt.Errorf("codec: CancelOrder frame too short: %d bytes", len(buf))
	}
	if buf[0] != KindCancelOrder {
		return command.CancelOrder{}, fmt.Errorf("codec: expected CancelOrder kind 0x%02x, got 0x%02x", KindCancelOrder, buf[0])
	}
	return command.CancelOrder{OrderID: binary.LittleEndian.Uint64(buf[8:16])}, nil
}

// EncodeExecutionReport writes r into buf (at least
// ExecutionReportSize bytes) in the §6 ExecutionReport layout.
func EncodeExecutionReport(buf []byte, r command.ExecutionReport) int {
	_ = buf[:ExecutionReportSize]
	buf[0] = KindExecutionReport
	buf[1], buf[2], buf[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Seq))
	binary.LittleEndian.PutUint64(buf[8:16], r.TakerID)
	binary.LittleEndian.PutUint64(buf[16:24], r.MakerID)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(r.Price))
	binary.LittleEndian.PutUint64(buf[32:40], r.Quantity)
	binary.LittleEndian.PutUint64(buf[40:48], r.Timestamp)
	return ExecutionReportSize
}

// DecodeExecutionReport reads a §6 ExecutionReport frame from buf.
func DecodeExecutionReport(buf []byte) (command.ExecutionReport, error) {
	if len(buf) < ExecutionReportSize {
		return command.ExecutionReport{}, fmt.Errorf("codec: ExecutionReport frame too short: %d bytes", len(buf))
	}
	if buf[0] != KindExecutionReport {
		return command.ExecutionReport{}, fmt.Errorf("codec: expected ExecutionReport kind 0x%02x, got 0x%02x", KindExecutionReport, buf[0])
	}
	return command.ExecutionReport{
		Seq:       uint64(binary.LittleEndian.Uint32(buf[4:8])),
		TakerID:   binary.LittleEndian.Uint64(buf[8:16]),
		MakerID:   binary.LittleEndian.Uint64(buf[16:24]),
		Price:     int64(binary.LittleEndian.Uint64(buf[24:32])),
		Quantity:  binary.LittleEndian.Uint64(buf[32:40]),
		Timestamp: binary.LittleEndian.Uint64(buf[40:48]),
	}, nil
}

// PeekKind returns the first byte of any frame without decoding it —
// used by the decoder loop to dispatch to the right Decode* function.
func PeekKind(buf []byte) (byte, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("codec: empty frame")
	}
	return buf[0], nil
}
