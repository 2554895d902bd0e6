package netlink

import (
	"fmt"

	"github.com/josharian/native"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/scitags/dropwatch-go/types"
)

// readBuffer walks a byte slice. Callers must check there's enough data
// left before calling Next.
type readBuffer struct {
	Bytes []byte
	pos   int
}

func (b *readBuffer) Next(n int) []byte {
	s := b.Bytes[b.pos : b.pos+n]
	b.pos += n
	return s
}

func (b *readBuffer) Len() int {
	return len(b.Bytes) - b.pos
}

// ParseAck decodes the body of an NLMSG_ERROR message (i.e. struct nlmsgerr).
// Note NLMSG_ERROR is overloaded: a code of 0 is a plain acknowledgement.
// The returned header is the one of the request being acknowledged.
func ParseAck(data []byte) (int32, netlink.Header, error) {
	if len(data) < sizeofNlMsgErr {
		return 0, netlink.Header{}, fmt.Errorf("%w: error body is %d bytes; want %d", ErrShortFrame, len(data), sizeofNlMsgErr)
	}

	rb := readBuffer{Bytes: data}
	code := nlenc.Int32(rb.Next(4))

	h := netlink.Header{}
	h.Length = nlenc.Uint32(rb.Next(4))
	h.Type = netlink.HeaderType(nlenc.Uint16(rb.Next(2)))
	h.Flags = netlink.HeaderFlags(nlenc.Uint16(rb.Next(2)))
	h.Sequence = nlenc.Uint32(rb.Next(4))
	h.PID = nlenc.Uint32(rb.Next(4))

	return code, h, nil
}

// ParseGeneric decodes the generic netlink header and returns it along
// with the command-specific payload.
func ParseGeneric(data []byte) (genetlink.Message, error) {
	gm := genetlink.Message{}
	if len(data) < sizeofGenlMsgHdr {
		return gm, fmt.Errorf("%w: genetlink message is %d bytes; want at least %d", ErrShortFrame, len(data), sizeofGenlMsgHdr)
	}
	if err := gm.UnmarshalBinary(data); err != nil {
		return gm, fmt.Errorf("error unmarshalling the genetlink header: %w", err)
	}
	return gm, nil
}

// ParseAlert decodes a NET_DM_CMD_ALERT payload (struct net_dm_alert_msg).
// The kernel wraps the alert in a single NLA_UNSPEC attribute; payloads
// carrying the bare structure are accepted too. Both the entry count and each
// drop point come in host byte order; the program counter is stored as a raw
// 8 byte array by the kernel.
func ParseAlert(payload []byte) ([]types.DropPoint, error) {
	if body, ok := unwrapAlert(payload); ok {
		payload = body
	}

	if len(payload) < sizeofAlertHdr {
		return nil, fmt.Errorf("%w: alert is %d bytes; want at least %d", ErrShortFrame, len(payload), sizeofAlertHdr)
	}

	rb := readBuffer{Bytes: payload}
	entries := native.Endian.Uint32(rb.Next(4))

	if uint64(entries)*sizeofDropPoint > uint64(rb.Len()) {
		return nil, fmt.Errorf("%w: alert claims %d entries but only carries %d bytes",
			ErrShortFrame, entries, rb.Len())
	}

	points := make([]types.DropPoint, 0, entries)
	for i := uint32(0); i < entries; i++ {
		points = append(points, types.DropPoint{
			PC:    native.Endian.Uint64(rb.Next(8)),
			Count: native.Endian.Uint32(rb.Next(4)),
		})
	}

	return points, nil
}

// unwrapAlert returns the data of the NLA_UNSPEC attribute holding the alert.
// It reports false unless the payload is exactly one such attribute.
func unwrapAlert(payload []byte) ([]byte, bool) {
	ad, err := netlink.NewAttributeDecoder(payload)
	if err != nil || ad.Len() != 1 {
		return nil, false
	}

	if !ad.Next() || ad.Type() != 0 || ad.TypeFlags() != 0 {
		return nil, false
	}

	data := ad.Bytes()
	if nlmsgAlign(sizeofNlAttr+len(data)) != nlmsgAlign(len(payload)) {
		return nil, false
	}

	return data, true
}

// splitFrames breaks a datagram into the netlink messages it carries. It
// returns whatever it managed to split alongside an error if the trailing
// data is bogus.
func splitFrames(b []byte) ([][]byte, error) {
	frames := [][]byte{}
	for len(b) >= sizeofNlMsgHdr {
		l := int(nlenc.Uint32(b[0:4]))
		if l < sizeofNlMsgHdr || l > len(b) {
			return frames, fmt.Errorf("%w: header claims %d bytes with %d left", ErrShortFrame, l, len(b))
		}
		frames = append(frames, b[:l])

		adv := nlmsgAlign(l)
		if adv > len(b) {
			adv = len(b)
		}
		b = b[adv:]
	}
	if len(b) != 0 {
		return frames, fmt.Errorf("%w: %d trailing bytes", ErrShortFrame, len(b))
	}
	return frames, nil
}
