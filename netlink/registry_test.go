package netlink

import (
	"errors"
	"testing"

	"github.com/mdlayher/netlink"
)

func TestRegistry(t *testing.T) {
	a := NewAllocator(0x1d)
	r := NewRegistry()

	m, err := a.Command(NET_DM_CMD_START, netlink.Request|netlink.Acknowledge, nil)
	if err != nil {
		t.Fatalf("error allocating command: %v", err)
	}

	calls := 0
	if err := r.Register(m, func(ack, req *Message, code int32) { calls++ }); err != nil {
		t.Fatalf("error registering: %v", err)
	}
	if m.Refs() != 2 {
		t.Errorf("got %d references after registering; want 2", m.Refs())
	}

	// Our own reference goes away, the registry keeps the message alive.
	m.Release()
	if m.Bytes() == nil {
		t.Fatalf("registered message got freed")
	}

	if _, _, ok := r.Take(m.Sequence() + 1); ok {
		t.Errorf("took a sequence number that was never registered")
	}
	if r.Len() != 1 {
		t.Errorf("a failed take mutated the registry")
	}

	got, cb, ok := r.Take(m.Sequence())
	if !ok {
		t.Fatalf("couldn't take sequence %d", m.Sequence())
	}
	if got != m {
		t.Errorf("took a different message")
	}

	cb(nil, got, 0)
	if calls != 1 {
		t.Errorf("got %d callback invocations; want 1", calls)
	}

	if r.Len() != 0 {
		t.Errorf("registry still holds %d entries", r.Len())
	}
	if _, _, ok := r.Take(m.Sequence()); ok {
		t.Errorf("took the same entry twice")
	}

	if got.Release() != 0 {
		t.Errorf("taken message is still referenced")
	}
	if a.Outstanding() != 0 {
		t.Errorf("got %d outstanding buffers; want 0", a.Outstanding())
	}
}

func TestRegistryRejects(t *testing.T) {
	a := NewAllocator(0x1d)
	r := NewRegistry()

	m, err := a.Command(NET_DM_CMD_STOP, netlink.Request|netlink.Acknowledge, nil)
	if err != nil {
		t.Fatalf("error allocating command: %v", err)
	}
	defer m.Release()

	if err := r.Register(m, nil); !errors.Is(err, ErrNoCallback) {
		t.Errorf("got %v; want %v", err, ErrNoCallback)
	}

	nop := func(ack, req *Message, code int32) {}
	if err := r.Register(m, nop); err != nil {
		t.Fatalf("error registering: %v", err)
	}
	if err := r.Register(m, nop); !errors.Is(err, ErrDuplicateSequence) {
		t.Errorf("got %v; want %v", err, ErrDuplicateSequence)
	}
	if m.Refs() != 2 {
		t.Errorf("a rejected registration took a reference")
	}

	req, _, _ := r.Take(m.Sequence())
	req.Release()
}
