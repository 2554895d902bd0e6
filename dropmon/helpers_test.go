package dropmon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	dnl "github.com/scitags/dropwatch-go/netlink"
	"github.com/scitags/dropwatch-go/types"
)

const testFamily uint16 = 0x1d

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

	errSend = errors.New("no buffer space available")
)

type sentRequest struct {
	seq   uint32
	cmd   dnl.Command
	frame []byte
}

// fakeTransport hands out queued frames and blocks until the context is
// cancelled once there are none left, just like a quiet socket would.
type fakeTransport struct {
	sent    []sentRequest
	inbound [][]byte
	sendErr error

	// autoAck queues an acknowledgement carrying ackCode for every
	// request sent.
	autoAck bool
	ackCode int32
}

func (t *fakeTransport) Send(m *dnl.Message) error {
	if t.sendErr != nil {
		return t.sendErr
	}

	t.sent = append(t.sent, sentRequest{seq: m.Sequence(), cmd: m.Command(), frame: bytes.Clone(m.Bytes())})
	if t.autoAck {
		t.inbound = append(t.inbound, ackFrame(testFamily, m.Sequence(), t.ackCode))
	}

	return nil
}

func (t *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	if len(t.inbound) > 0 {
		f := t.inbound[0]
		t.inbound = t.inbound[1:]
		return f, nil
	}

	<-ctx.Done()
	return nil, dnl.ErrInterrupted
}

func (t *fakeTransport) Close() error {
	return nil
}

type scriptedPrompter struct {
	lines []string
}

func (p *scriptedPrompter) ReadCommand() (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	l := p.lines[0]
	p.lines = p.lines[1:]
	return l, nil
}

type ackRecord struct {
	cmd  dnl.Command
	code int32
}

type recorder struct {
	points      []types.DropPoint
	acks        []ackRecord
	discards    []string
	transitions []State
}

func (r *recorder) Alert(points []types.DropPoint) {
	r.points = append(r.points, points...)
}

func (r *recorder) Ack(cmd dnl.Command, code int32) {
	r.acks = append(r.acks, ackRecord{cmd: cmd, code: code})
}

func (r *recorder) Discard(reason string) {
	r.discards = append(r.discards, reason)
}

func (r *recorder) Transition(from, to State) {
	r.transitions = append(r.transitions, to)
}

func putHeader(b []byte, h netlink.Header) {
	nlenc.PutUint32(b[0:4], h.Length)
	nlenc.PutUint16(b[4:6], uint16(h.Type))
	nlenc.PutUint16(b[6:8], uint16(h.Flags))
	nlenc.PutUint32(b[8:12], h.Sequence)
	nlenc.PutUint32(b[12:16], h.PID)
}

func ackFrame(family uint16, seq uint32, code int32) []byte {
	b := make([]byte, 36)
	putHeader(b, netlink.Header{Length: uint32(len(b)), Type: netlink.Error, Sequence: seq})
	nlenc.PutInt32(b[16:20], code)
	putHeader(b[20:], netlink.Header{
		Length:   20,
		Type:     netlink.HeaderType(family),
		Flags:    netlink.Request | netlink.Acknowledge,
		Sequence: seq,
	})
	return b
}

func genlFrame(family uint16, cmd dnl.Command, payload []byte) []byte {
	n := 16 + 4 + len(payload)
	b := make([]byte, (n+3)&^3)
	putHeader(b, netlink.Header{Length: uint32(n), Type: netlink.HeaderType(family)})
	b[16] = byte(cmd)
	b[17] = dnl.FAMILY_VERSION
	copy(b[20:], payload)
	return b
}

func alertFrame(family uint16, points []types.DropPoint) []byte {
	payload := make([]byte, 4+12*len(points))
	native.Endian.PutUint32(payload[0:4], uint32(len(points)))
	for i, p := range points {
		off := 4 + 12*i
		native.Endian.PutUint64(payload[off:off+8], p.PC)
		native.Endian.PutUint32(payload[off+8:off+12], p.Count)
	}
	return genlFrame(family, dnl.NET_DM_CMD_ALERT, payload)
}

// kernelAlertFrame wraps the alert in an NLA_UNSPEC attribute, which is what
// net/core/drop_monitor.c sends.
func kernelAlertFrame(family uint16, points []types.DropPoint) []byte {
	bare := alertFrame(family, points)[16+4:]
	payload := make([]byte, 4+len(bare))
	native.Endian.PutUint16(payload[0:2], uint16(len(payload)))
	native.Endian.PutUint16(payload[2:4], 0)
	copy(payload[4:], bare)
	return genlFrame(family, dnl.NET_DM_CMD_ALERT, payload)
}
