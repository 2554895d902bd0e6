package dropmon

import (
	"github.com/scitags/dropwatch-go/netlink"
	"github.com/scitags/dropwatch-go/types"
)

// Observer is notified of everything worth counting that goes on in the
// control loop. Implementations must not block.
type Observer interface {
	Alert(points []types.DropPoint)
	Ack(cmd netlink.Command, code int32)
	Discard(reason string)
	Transition(from, to State)
}

// Reasons handed to Observer.Discard.
const (
	DiscardMalformed       = "malformed"
	DiscardUnknownCommand  = "unknown_command"
	DiscardUnknownSequence = "unknown_sequence"
	DiscardControl         = "control"
	DiscardForeignFamily   = "foreign_family"
	DiscardOutOfWindow     = "out_of_window"
)

type nopObserver struct{}

func (nopObserver) Alert([]types.DropPoint)     {}
func (nopObserver) Ack(netlink.Command, int32) {}
func (nopObserver) Discard(string)             {}
func (nopObserver) Transition(State, State)    {}
