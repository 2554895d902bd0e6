package netlink

import (
	"errors"
	"syscall"
)

var (
	// ErrInterrupted is returned by a Transport when a blocking receive was
	// cut short on purpose. It's not a fault: callers should simply take
	// another pass through their loop.
	ErrInterrupted = errors.New("receive interrupted")

	ErrShortFrame        = errors.New("netlink frame too short")
	ErrUnknownSequence   = errors.New("no request pending for sequence number")
	ErrDuplicateSequence = errors.New("sequence number already pending")
	ErrNoCallback        = errors.New("no acknowledgement callback provided")
	ErrUnsupported       = errors.New("netlink transport not supported on this platform")
)

// ErrnoFromCode turns the result code carried by an acknowledgement into an
// error. The kernel sends negated errno values and 0 for success, in which
// case nil is returned.
func ErrnoFromCode(code int32) error {
	if code == 0 {
		return nil
	}
	if code < 0 {
		code = -code
	}
	return syscall.Errno(code)
}
