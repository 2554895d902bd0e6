package netlink

import "fmt"

// AckFunc is invoked when the acknowledgement for a request comes in. It
// gets the ack frame, the original request and the result code the kernel
// sent back (0 on success, a negated errno otherwise). Neither message should
// be released by the callback.
type AckFunc func(ack, req *Message, code int32)

type pendingAck struct {
	msg *Message
	cb  AckFunc
}

// Registry keeps track of the requests still waiting for an
// acknowledgement. Entries are keyed on the request's sequence number and
// there's no timeout whatsoever: an ack that never arrives keeps its entry
// around forever.
type Registry struct {
	pending map[uint32]pendingAck
}

func NewRegistry() *Registry {
	return &Registry{pending: map[uint32]pendingAck{}}
}

// Register stores m until its acknowledgement arrives, taking a reference
// on it. It must be called before the request is sent.
func (r *Registry) Register(m *Message, cb AckFunc) error {
	if cb == nil {
		return ErrNoCallback
	}

	if _, ok := r.pending[m.Sequence()]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateSequence, m.Sequence())
	}

	r.pending[m.Sequence()] = pendingAck{msg: m.Retain(), cb: cb}

	return nil
}

// Take removes the entry for seq, if any. The reference held by the registry
// is handed over to the caller, who's in charge of releasing it. Nothing is
// touched when there's no match.
func (r *Registry) Take(seq uint32) (*Message, AckFunc, bool) {
	p, ok := r.pending[seq]
	if !ok {
		return nil, nil, false
	}
	delete(r.pending, seq)
	return p.msg, p.cb, true
}

func (r *Registry) Len() int {
	return len(r.pending)
}
