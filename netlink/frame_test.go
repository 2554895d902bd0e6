package netlink

import (
	"errors"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"

	"github.com/scitags/dropwatch-go/types"
)

func TestParseAck(t *testing.T) {
	frame := ackFrame(0x1d, 42, -int32(syscall.EPERM))

	code, orig, err := ParseAck(frame[sizeofNlMsgHdr:])
	if err != nil {
		t.Fatalf("error parsing ack: %v", err)
	}

	if code != -int32(syscall.EPERM) {
		t.Errorf("got code %d; want %d", code, -int32(syscall.EPERM))
	}
	if orig.Sequence != 42 || orig.Type != 0x1d {
		t.Errorf("got original header %+v", orig)
	}

	if !errors.Is(ErrnoFromCode(code), syscall.EPERM) {
		t.Errorf("got %v; want %v", ErrnoFromCode(code), syscall.EPERM)
	}
	if ErrnoFromCode(0) != nil {
		t.Errorf("success mapped to an error")
	}

	if _, _, err := ParseAck(frame[sizeofNlMsgHdr : sizeofNlMsgHdr+8]); !errors.Is(err, ErrShortFrame) {
		t.Errorf("got %v; want %v", err, ErrShortFrame)
	}
}

func TestParseAlert(t *testing.T) {
	tests := map[string]struct {
		payload []byte
		want    []types.DropPoint
		err     error
	}{
		"three": {
			payload: alertPayload([]types.DropPoint{{PC: 0x1000, Count: 5}, {PC: 0x2000, Count: 1}, {PC: 0x3000, Count: 9}}),
			want:    []types.DropPoint{{PC: 0x1000, Count: 5}, {PC: 0x2000, Count: 1}, {PC: 0x3000, Count: 9}},
		},
		"empty": {
			payload: alertPayload(nil),
			want:    []types.DropPoint{},
		},
		"nested": {
			payload: nestedAlertPayload([]types.DropPoint{{PC: 0x1000, Count: 5}, {PC: 0x2000, Count: 1}, {PC: 0x3000, Count: 9}}),
			want:    []types.DropPoint{{PC: 0x1000, Count: 5}, {PC: 0x2000, Count: 1}, {PC: 0x3000, Count: 9}},
		},
		"nestedEmpty": {
			payload: nestedAlertPayload(nil),
			want:    []types.DropPoint{},
		},
		"nestedTruncated": {
			payload: func() []byte {
				b := nestedAlertPayload([]types.DropPoint{{PC: 0x1000, Count: 5}})
				native.Endian.PutUint32(b[sizeofNlAttr:sizeofNlAttr+4], 2)
				return b
			}(),
			err: ErrShortFrame,
		},
		"hugeCount": {
			payload: func() []byte {
				b := alertPayload([]types.DropPoint{{PC: 0x1000, Count: 5}})
				native.Endian.PutUint32(b[0:4], 0xffffffff)
				return b
			}(),
			err: ErrShortFrame,
		},
		"noHeader": {
			payload: []byte{1, 0},
			err:     ErrShortFrame,
		},
		"truncated": {
			payload: alertPayload([]types.DropPoint{{PC: 0x1000, Count: 5}, {PC: 0x2000, Count: 1}})[:20],
			err:     ErrShortFrame,
		},
	}

	for name, test := range tests {
		got, err := ParseAlert(test.payload)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: got error %v; want %v", name, err, test.err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: drop points mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestParseGeneric(t *testing.T) {
	if _, err := ParseGeneric([]byte{1, 1}); !errors.Is(err, ErrShortFrame) {
		t.Errorf("got %v; want %v", err, ErrShortFrame)
	}

	gm, err := ParseGeneric([]byte{byte(NET_DM_CMD_ALERT), 1, 0, 0, 0xaa})
	if err != nil {
		t.Fatalf("error parsing: %v", err)
	}
	if Command(gm.Header.Command) != NET_DM_CMD_ALERT || len(gm.Data) != 1 {
		t.Errorf("got %+v", gm)
	}
}

func TestSplitFrames(t *testing.T) {
	a := ackFrame(0x1d, 1, 0)
	b := ackFrame(0x1d, 2, 0)

	// A 17 byte message which is padded up to 20 bytes on the wire.
	odd := make([]byte, 20)
	putHeader(odd, netlink.Header{Length: 17, Type: 0x1d, Sequence: 3})

	datagram := append(append(append([]byte{}, a...), odd...), b...)

	frames, err := splitFrames(datagram)
	if err != nil {
		t.Fatalf("error splitting frames: %v", err)
	}
	if diff := cmp.Diff([][]byte{a, odd[:17], b}, frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	// The length of the second message overflows the datagram.
	bogus := append([]byte{}, a...)
	bogus = append(bogus, b[:20]...)
	frames, err = splitFrames(bogus)
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("got %v; want %v", err, ErrShortFrame)
	}
	if len(frames) != 1 {
		t.Errorf("got %d frames; want the 1 valid one", len(frames))
	}
}

func TestCommandNames(t *testing.T) {
	for c := NET_DM_CMD_UNSPEC; c <= NET_DM_CMD_MAX+1; c++ {
		known := c != NET_DM_CMD_UNSPEC && c != NET_DM_CMD_MAX+1
		if c.Known() != known {
			t.Errorf("%s: got known %t; want %t", c, c.Known(), known)
		}
	}
	if NET_DM_CMD_STATS_NEW.String() != "STATS_NEW" || Command(200).String() != "UNKNOWN_CMD_200" {
		t.Errorf("unexpected command names")
	}
}
