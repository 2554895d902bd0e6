package netlink

import (
	"fmt"
	"sync/atomic"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/valyala/bytebufferpool"
)

// Message is a reference-counted handle on a single netlink frame. The frame
// lives in a pooled buffer that's handed back to its Allocator exactly once:
// when the last reference is released. Messages are not safe for concurrent
// use; they're meant to be owned by a single goroutine.
type Message struct {
	buf   *bytebufferpool.ByteBuffer
	refs  int
	seq   uint32
	cmd   Command
	alloc *Allocator
}

// Bytes returns the whole frame, netlink header included. It returns nil once
// the message has been released.
func (m *Message) Bytes() []byte {
	if m.buf == nil {
		return nil
	}
	return m.buf.B
}

func (m *Message) Sequence() uint32 {
	return m.seq
}

// Command returns the generic netlink command a request was built for. It's
// NET_DM_CMD_UNSPEC for wrapped (i.e. received) messages.
func (m *Message) Command() Command {
	return m.cmd
}

func (m *Message) Refs() int {
	return m.refs
}

// Header decodes the netlink header at the start of the frame.
func (m *Message) Header() netlink.Header {
	b := m.Bytes()
	if len(b) < sizeofNlMsgHdr {
		return netlink.Header{}
	}
	return netlink.Header{
		Length:   nlenc.Uint32(b[0:4]),
		Type:     netlink.HeaderType(nlenc.Uint16(b[4:6])),
		Flags:    netlink.HeaderFlags(nlenc.Uint16(b[6:8])),
		Sequence: nlenc.Uint32(b[8:12]),
		PID:      nlenc.Uint32(b[12:16]),
	}
}

// Data returns the payload following the netlink header, bounded by the
// length the header claims.
func (m *Message) Data() []byte {
	b := m.Bytes()
	if len(b) < sizeofNlMsgHdr {
		return nil
	}
	end := int(nlenc.Uint32(b[0:4]))
	if end > len(b) || end < sizeofNlMsgHdr {
		end = len(b)
	}
	return b[sizeofNlMsgHdr:end]
}

// Retain takes an additional reference on the message.
func (m *Message) Retain() *Message {
	if m.refs <= 0 {
		panic("netlink: retain on a released message")
	}
	m.refs++
	return m
}

// Release drops a reference and returns how many are left. The underlying
// buffer goes back to the pool when that count reaches 0.
func (m *Message) Release() int {
	if m.refs <= 0 {
		panic("netlink: release on a released message")
	}
	m.refs--
	if m.refs == 0 {
		m.alloc.free(m)
	}
	return m.refs
}

// Allocator builds command messages for a single generic netlink family and
// wraps received frames. It hands out strictly increasing sequence numbers.
type Allocator struct {
	family uint16

	// seq is the last sequence number handed out. Note 0 is never used
	// as mdlayher/netlink rewrites zeroed sequence numbers on send.
	seq uint32

	pool        bytebufferpool.Pool
	outstanding atomic.Int64
}

func NewAllocator(family uint16) *Allocator {
	return &Allocator{family: family}
}

func (a *Allocator) Family() uint16 {
	return a.family
}

// Outstanding returns the number of messages whose buffers are still live.
func (a *Allocator) Outstanding() int64 {
	return a.outstanding.Load()
}

func (a *Allocator) nextSequence() uint32 {
	a.seq++
	if a.seq == 0 {
		a.seq++
	}
	return a.seq
}

// Command crafts a request for cmd carrying payload right after the generic
// netlink header. The returned message holds a single reference.
func (a *Allocator) Command(cmd Command, flags netlink.HeaderFlags, payload []byte) (*Message, error) {
	gm := genetlink.Message{
		Header: genetlink.Header{
			Command: uint8(cmd),
			Version: FAMILY_VERSION,
		},
		Data: payload,
	}

	data, err := gm.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("error marshalling the genetlink header: %w", err)
	}

	seq := a.nextSequence()
	nm := netlink.Message{
		Header: netlink.Header{
			Length:   uint32(nlmsgAlign(sizeofNlMsgHdr + len(data))),
			Type:     netlink.HeaderType(a.family),
			Flags:    flags,
			Sequence: seq,
		},
		Data: data,
	}

	b, err := nm.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("error marshalling the netlink message: %w", err)
	}

	return a.newMessage(b, seq, cmd), nil
}

// Wrap copies a frame handed over by the transport into a message holding a
// single reference. The frame can be reused by the caller afterwards.
func (a *Allocator) Wrap(frame []byte) (*Message, error) {
	if len(frame) < sizeofNlMsgHdr {
		return nil, fmt.Errorf("%w: got %d bytes; want at least %d", ErrShortFrame, len(frame), sizeofNlMsgHdr)
	}
	return a.newMessage(frame, nlenc.Uint32(frame[8:12]), NET_DM_CMD_UNSPEC), nil
}

func (a *Allocator) newMessage(b []byte, seq uint32, cmd Command) *Message {
	buf := a.pool.Get()
	buf.B = append(buf.B[:0], b...)
	a.outstanding.Add(1)

	return &Message{
		buf:   buf,
		refs:  1,
		seq:   seq,
		cmd:   cmd,
		alloc: a,
	}
}

func (a *Allocator) free(m *Message) {
	a.pool.Put(m.buf)
	m.buf = nil
	a.outstanding.Add(-1)
}

func nlmsgAlign(n int) int {
	return (n + 3) &^ 3
}
