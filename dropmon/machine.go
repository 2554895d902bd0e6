package dropmon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	dnl "github.com/scitags/dropwatch-go/netlink"
)

// ErrFailed is returned by Run when the loop ends up in the Failed state.
var ErrFailed = errors.New("drop monitor control loop failed")

// Operator commands.
const (
	CmdStart = "start"
	CmdStop  = "stop"
	CmdExit  = "exit"
)

// Prompter reads operator commands one at a time. It must return io.EOF
// once there's no more input.
type Prompter interface {
	ReadCommand() (string, error)
}

// DropCounter provides a running count of dropped packets, such as the
// one in /proc/net/softnet_stat.
type DropCounter interface {
	Dropped() (uint64, error)
}

type Options struct {
	Prompter Prompter
	Reporter Reporter
	Observer Observer

	// Softnet is optional. When set, the drops it accounts for while
	// monitoring are logged upon deactivation.
	Softnet DropCounter

	Logger *slog.Logger
}

type eofPrompter struct{}

func (eofPrompter) ReadCommand() (string, error) {
	return "", io.EOF
}

// Machine drives the drop monitor: it turns operator commands into
// requests, correlates the acknowledgements and reports alerts. It's the
// single owner of the control state. Save for Interrupt and State, none of
// its methods are safe for concurrent use.
type Machine struct {
	transport  dnl.Transport
	alloc      *dnl.Allocator
	registry   *dnl.Registry
	dispatcher *Dispatcher

	prompter Prompter
	reporter Reporter
	observer Observer
	softnet  DropCounter
	logger   *slog.Logger

	state atomic.Uint32

	// armed is set while an interrupt should stop the monitoring.
	armed atomic.Bool

	// interrupted is the intent flag raised by Interrupt and consumed at
	// the top of every loop iteration. wake cuts blocking receives short.
	interrupted atomic.Bool
	wake        chan struct{}

	softnetBase uint64
}

func New(t dnl.Transport, family uint16, opts Options) *Machine {
	m := &Machine{
		transport: t,
		alloc:     dnl.NewAllocator(family),
		registry:  dnl.NewRegistry(),
		prompter:  opts.Prompter,
		reporter:  opts.Reporter,
		observer:  opts.Observer,
		softnet:   opts.Softnet,
		logger:    opts.Logger,
		wake:      make(chan struct{}, 1),
	}

	if m.prompter == nil {
		m.prompter = eofPrompter{}
	}
	if m.reporter == nil {
		m.reporter = NewReporter(Text, os.Stdout, nil)
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.logger == nil {
		m.logger = slog.Default().With("t", "dropmon")
	}

	m.dispatcher = NewDispatcher(family, m.registry, m.observer, m.logger)
	m.dispatcher.Handle(dnl.NET_DM_CMD_ALERT, m.handleAlert)
	m.dispatcher.Handle(dnl.NET_DM_CMD_CONFIG, m.handleConfig)

	return m
}

// State can be called from any goroutine.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Interrupt asks the loop to stop monitoring. It only raises a flag and
// wakes up a blocked receive, so it's fine to call it from a signal
// handling goroutine. It returns false if monitoring wasn't active, in
// which case the request is ignored.
func (m *Machine) Interrupt() bool {
	if !m.armed.Load() {
		m.logger.Warn("got an interrupt while not receiving", "state", m.State())
		return false
	}

	m.interrupted.Store(true)
	select {
	case m.wake <- struct{}{}:
	default:
	}

	return true
}

func (m *Machine) transition(to State) {
	from := m.State()
	if from == to {
		return
	}

	if from.Terminal() {
		m.logger.Error("refusing to leave a terminal state", "from", from, "to", to)
		return
	}

	if !CanTransition(from, to) {
		m.logger.Error("illegal state transition, failing", "from", from, "to", to)
		to = Failed
	}

	if to != Receiving && to != RequestDeactivate {
		m.armed.Store(false)
	}

	m.logger.Debug("state transition", "from", from, "to", to)
	m.state.Store(uint32(to))
	m.observer.Transition(from, to)
}

// Run loops until the machine reaches Exit, in which case it returns nil,
// Failed, in which case ErrFailed is returned, or until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if done, err := m.step(ctx); done {
			return err
		}
	}
}

// step is a single pass through the loop: act on a pending interrupt, then
// do whatever the current state calls for. It returns true once the loop
// should end.
func (m *Machine) step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}

	m.consumeInterrupt()

	switch s := m.State(); s {
	case Idle:
		m.prompt()

	case RequestActivate:
		m.logger.Info("enabling monitoring...")
		if err := m.request(dnl.NET_DM_CMD_START, m.handleStartAck); err != nil {
			m.logger.Error("unable to send activation msg", "err", err)
			m.transition(Failed)
		} else {
			m.transition(Activating)
		}

	case Activating:
		m.logger.Info("waiting for activation ack...")
		m.receive(ctx)

	case Receiving:
		m.receive(ctx)

	case RequestDeactivate:
		m.logger.Info("deactivation requested, turning off monitoring")
		if err := m.request(dnl.NET_DM_CMD_STOP, m.handleStopAck); err != nil {
			m.logger.Error("unable to send deactivation msg", "err", err)
			m.transition(Failed)
		} else {
			m.transition(Deactivating)
		}

	case Deactivating:
		m.logger.Info("waiting for deactivation ack...")
		m.receive(ctx)

	case Exit:
		return true, nil

	case Failed:
		return true, ErrFailed

	default:
		m.logger.Error("unknown state received, exiting", "state", s)
		m.state.Store(uint32(Failed))
	}

	return false, nil
}

// consumeInterrupt acts on a pending interrupt. Only an active monitoring
// session can be interrupted.
func (m *Machine) consumeInterrupt() {
	if !m.interrupted.Swap(false) {
		return
	}

	// Drain a wake up nobody consumed.
	select {
	case <-m.wake:
	default:
	}

	switch s := m.State(); s {
	case Receiving, RequestDeactivate:
		m.transition(RequestDeactivate)
	default:
		m.logger.Warn("got an interrupt while not receiving", "state", s)
	}
}

func (m *Machine) prompt() {
	input, err := m.prompter.ReadCommand()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			m.logger.Error("error reading command, exiting", "err", err)
		}
		m.transition(Exit)
		return
	}

	switch strings.TrimSpace(input) {
	case CmdStart:
		m.transition(RequestActivate)
	case CmdStop:
		m.transition(RequestDeactivate)
	case CmdExit:
		m.transition(Exit)
	case "":
	default:
		m.logger.Debug("ignoring unknown command", "input", input)
	}
}

// request sends cmd and registers cb to be invoked upon its
// acknowledgement. The registry entry is rolled back if sending fails.
func (m *Machine) request(cmd dnl.Command, cb dnl.AckFunc) error {
	msg, err := m.alloc.Command(cmd, netlink.Request|netlink.Acknowledge, nil)
	if err != nil {
		return fmt.Errorf("error allocating %s request: %w", cmd, err)
	}
	defer msg.Release()

	if err := m.registry.Register(msg, cb); err != nil {
		return fmt.Errorf("error registering %s request: %w", cmd, err)
	}

	if err := m.transport.Send(msg); err != nil {
		if req, _, ok := m.registry.Take(msg.Sequence()); ok {
			req.Release()
		}
		return err
	}

	m.logger.Debug("sent request", "cmd", cmd, "seq", msg.Sequence())

	return nil
}

// receive blocks for a single frame and dispatches it. An interrupt cuts
// the wait short so that the loop can act on it.
func (m *Machine) receive(ctx context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-m.wake:
			cancel()
		case <-rctx.Done():
		}
	}()

	frame, err := m.transport.Receive(rctx)
	switch {
	case errors.Is(err, dnl.ErrInterrupted):
		m.logger.Debug("receive interrupted")
		return
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		m.logger.Error("receive operation failed", "err", err)
		m.transition(Failed)
		return
	}

	msg, err := m.alloc.Wrap(frame)
	if err != nil {
		m.logger.Warn("discarding malformed frame", "err", err)
		m.observer.Discard(DiscardMalformed)
		return
	}

	m.dispatcher.Dispatch(msg)
}

func (m *Machine) handleStartAck(ack, req *dnl.Message, code int32) {
	if code != 0 {
		m.logger.Error("failed activation request", "err", dnl.ErrnoFromCode(code))
		m.transition(Failed)
		return
	}

	if m.State() != Activating {
		m.logger.Error("odd, the kernel told us that it activated and we didn't ask", "state", m.State())
		m.transition(Failed)
		return
	}

	m.softnetBase = m.softnetDropped()

	m.logger.Info("kernel monitoring activated, issue Ctrl-C to stop monitoring")
	m.transition(Receiving)
	m.armed.Store(true)
}

func (m *Machine) handleStopAck(ack, req *dnl.Message, code int32) {
	if code != 0 {
		// Stay put: we'll keep on waiting for an ack that may never come.
		m.logger.Error("failed deactivation request", "err", dnl.ErrnoFromCode(code), "state", m.State())
		return
	}

	if m.State() != Deactivating {
		m.logger.Warn("got a stop ack we weren't waiting for", "state", m.State())
		return
	}

	if m.softnet != nil {
		m.logger.Info("kernel monitoring deactivated", "softnetDrops", m.softnetDropped()-m.softnetBase)
	} else {
		m.logger.Info("kernel monitoring deactivated")
	}
	m.transition(Idle)
}

func (m *Machine) handleAlert(hdr netlink.Header, gm genetlink.Message) {
	// Stale alerts outside the monitoring window are dropped quietly.
	if m.State() != Receiving {
		m.observer.Discard(DiscardOutOfWindow)
		return
	}

	points, err := dnl.ParseAlert(gm.Data)
	if err != nil {
		m.logger.Warn("discarding malformed alert", "seq", hdr.Sequence, "err", err)
		m.observer.Discard(DiscardMalformed)
		return
	}

	m.logger.Debug("got drop notifications", "entries", len(points))
	m.observer.Alert(points)

	for _, p := range points {
		if err := m.reporter.Report(p); err != nil {
			m.logger.Warn("error reporting drop", "err", err)
		}
	}
}

func (m *Machine) handleConfig(hdr netlink.Header, gm genetlink.Message) {
	m.logger.Info("got a config message", "seq", hdr.Sequence, "len", len(gm.Data))
}

func (m *Machine) softnetDropped() uint64 {
	if m.softnet == nil {
		return 0
	}
	n, err := m.softnet.Dropped()
	if err != nil {
		m.logger.Warn("error reading softnet drops", "err", err)
		return 0
	}
	return n
}
