package dropmon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	dnl "github.com/scitags/dropwatch-go/netlink"
	"github.com/scitags/dropwatch-go/types"
)

// NLMSG_MIN_TYPE is the first message type not reserved for netlink's own
// control messages. Check netlink(7).
const NLMSG_MIN_TYPE = 0x10

// HandlerFunc deals with a single command message. The message is owned by
// the dispatcher and must not be released by handlers.
type HandlerFunc func(hdr netlink.Header, gm genetlink.Message)

// Dispatcher routes inbound frames either to the callback of the request
// they acknowledge or to the handler registered for their command.
type Dispatcher struct {
	family   uint16
	registry *dnl.Registry
	handlers map[dnl.Command]HandlerFunc
	observer Observer
	logger   *slog.Logger
}

func NewDispatcher(family uint16, registry *dnl.Registry, observer Observer, logger *slog.Logger) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		family:   family,
		registry: registry,
		handlers: map[dnl.Command]HandlerFunc{},
		observer: observer,
		logger:   logger,
	}
}

// Handle registers h for cmd. Known commands without a handler are dropped
// quietly.
func (d *Dispatcher) Handle(cmd dnl.Command, h HandlerFunc) {
	d.handlers[cmd] = h
}

// Dispatch consumes msg: its reference is released exactly once no matter
// what happens to it.
func (d *Dispatcher) Dispatch(msg *dnl.Message) {
	defer msg.Release()

	hdr := msg.Header()

	// Note NLMSG_ERROR is overloaded: it's also used to deliver ACKs.
	if hdr.Type == netlink.Error {
		d.dispatchAck(msg)
		return
	}

	if hdr.Type < NLMSG_MIN_TYPE {
		d.logger.Debug("discarding netlink control message", "type", hdr.Type, "seq", hdr.Sequence)
		d.observer.Discard(DiscardControl)
		return
	}

	if uint16(hdr.Type) != d.family {
		d.logger.Warn("discarding message from a foreign family", "type", hdr.Type, "family", d.family)
		d.observer.Discard(DiscardForeignFamily)
		return
	}

	gm, err := dnl.ParseGeneric(msg.Data())
	if err != nil {
		d.logger.Warn("discarding malformed message", "seq", hdr.Sequence, "err", err)
		d.observer.Discard(DiscardMalformed)
		return
	}

	cmd := dnl.Command(gm.Header.Command)
	if !cmd.Known() {
		d.logger.Warn("received message of unknown type", "cmd", uint8(cmd))
		d.observer.Discard(DiscardUnknownCommand)
		return
	}

	h, ok := d.handlers[cmd]
	if !ok {
		d.logger.Log(context.Background(), types.LevelTrace, "no handler for command", "cmd", cmd)
		return
	}

	h(hdr, gm)
}

func (d *Dispatcher) dispatchAck(msg *dnl.Message) {
	code, orig, err := dnl.ParseAck(msg.Data())
	if err != nil {
		d.logger.Warn("discarding malformed ack", "err", err)
		d.observer.Discard(DiscardMalformed)
		return
	}

	req, cb, ok := d.registry.Take(orig.Sequence)
	if !ok {
		d.logger.Warn("discarding ack", "err", fmt.Errorf("%w: %d", dnl.ErrUnknownSequence, orig.Sequence), "code", code)
		d.observer.Discard(DiscardUnknownSequence)
		return
	}

	d.logger.Debug("got an ack", "cmd", req.Command(), "seq", orig.Sequence, "code", code)
	d.observer.Ack(req.Command(), code)

	cb(msg, req, code)

	if left := req.Release(); left != 0 {
		d.logger.Warn("request still referenced after being acknowledged", "seq", req.Sequence(), "refs", left)
	}
}
