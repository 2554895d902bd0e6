package netlink

import (
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/scitags/dropwatch-go/types"
)

func putHeader(b []byte, h netlink.Header) {
	nlenc.PutUint32(b[0:4], h.Length)
	nlenc.PutUint16(b[4:6], uint16(h.Type))
	nlenc.PutUint16(b[6:8], uint16(h.Flags))
	nlenc.PutUint32(b[8:12], h.Sequence)
	nlenc.PutUint32(b[12:16], h.PID)
}

// ackFrame crafts the NLMSG_ERROR message the kernel sends back for the
// request with sequence number seq.
func ackFrame(family uint16, seq uint32, code int32) []byte {
	b := make([]byte, sizeofNlMsgHdr+sizeofNlMsgErr)
	putHeader(b, netlink.Header{Length: uint32(len(b)), Type: netlink.Error})
	nlenc.PutInt32(b[16:20], code)
	putHeader(b[20:], netlink.Header{
		Length:   sizeofNlMsgHdr + sizeofGenlMsgHdr,
		Type:     netlink.HeaderType(family),
		Flags:    netlink.Request | netlink.Acknowledge,
		Sequence: seq,
	})
	return b
}

func alertPayload(points []types.DropPoint) []byte {
	b := make([]byte, sizeofAlertHdr+len(points)*sizeofDropPoint)
	native.Endian.PutUint32(b[0:4], uint32(len(points)))
	for i, p := range points {
		off := sizeofAlertHdr + i*sizeofDropPoint
		native.Endian.PutUint64(b[off:off+8], p.PC)
		native.Endian.PutUint32(b[off+8:off+12], p.Count)
	}
	return b
}

// nestedAlertPayload lays the alert out the way the kernel does: inside a
// single NLA_UNSPEC attribute.
func nestedAlertPayload(points []types.DropPoint) []byte {
	alert := alertPayload(points)
	b := make([]byte, sizeofNlAttr+len(alert))
	nlenc.PutUint16(b[0:2], uint16(len(b)))
	nlenc.PutUint16(b[2:4], 0)
	copy(b[sizeofNlAttr:], alert)
	return b
}
