//go:build linux

package netlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// Conn is a generic netlink socket bound to the drop monitor family and
// subscribed to its alert multicast group.
type Conn struct {
	Config

	conn   *netlink.Conn
	family genetlink.Family

	buf   []byte
	queue [][]byte
}

// Open resolves the drop monitor family through the generic netlink
// controller and joins its alert group. Beware the returned connection
// should be closed to avoid leaking fds.
func Open(config *Config) (*Conn, error) {
	if config == nil {
		config = &DefaultConfig
	}

	nl, err := netlink.Dial(unix.NETLINK_GENERIC, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open generic netlink socket: %w", err)
	}

	// Don't close the genetlink connection: it'd close nl as well!
	family, err := genetlink.NewConn(nl).GetFamily(config.Family)
	if err != nil {
		nl.Close()
		return nil, fmt.Errorf("unable to find the %s family, is the drop monitor available? %w", config.Family, err)
	}
	slog.Debug("resolved generic netlink family", "name", family.Name, "id", family.ID, "version", family.Version)

	group, err := findGroup(family, config.Group)
	if err != nil {
		nl.Close()
		return nil, err
	}

	if err := nl.JoinGroup(group); err != nil {
		nl.Close()
		return nil, fmt.Errorf("could not join multicast group %q (%d): %w", config.Group, group, err)
	}

	// For enhanced error messages from the kernel, it is recommended to set
	// option `NETLINK_EXT_ACK`, which is supported since 4.12 kernel. If not
	// supported, `unix.ENOPROTOOPT` is returned.
	if err := nl.SetOption(netlink.ExtendedAcknowledge, true); err != nil {
		slog.Warn("could not set option ExtendedAcknowledge", "err", err)
	}

	size := config.BufferSize
	if size < os.Getpagesize() {
		size = os.Getpagesize()
	}

	return &Conn{
		Config: *config,
		conn:   nl,
		family: family,
		buf:    make([]byte, size),
	}, nil
}

func findGroup(family genetlink.Family, name string) (uint32, error) {
	for _, g := range family.Groups {
		if g.Name == name {
			return g.ID, nil
		}
	}

	// Really old kernels registered a single nameless group
	if len(family.Groups) == 0 {
		slog.Warn("family exposes no multicast groups, falling back to the legacy alert group",
			"family", family.Name, "group", NET_DM_GRP_ALERT)
		return NET_DM_GRP_ALERT, nil
	}

	return 0, fmt.Errorf("family %s has no multicast group %q", family.Name, name)
}

func (c *Conn) String() string {
	return fmt.Sprintf("genetlink(%s/%d)", c.family.Name, c.family.ID)
}

// FamilyID is the numeric ID the controller assigned to the family. It
// goes into the type field of every request.
func (c *Conn) FamilyID() uint16 {
	return c.family.ID
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) Send(m *Message) error {
	nm := netlink.Message{}
	if err := nm.UnmarshalBinary(m.Bytes()); err != nil {
		return fmt.Errorf("error unmarshalling outbound message %d: %w", m.Sequence(), err)
	}

	// The sequence number is kept as is given it's not 0.
	if _, err := c.conn.Send(nm); err != nil {
		return fmt.Errorf("error sending message %d: %w", m.Sequence(), err)
	}

	return nil
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	for len(c.queue) == 0 {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}

		n, err := c.read(ctx)
		if err != nil {
			return nil, err
		}

		frames, err := splitFrames(c.buf[:n])
		if err != nil {
			slog.Warn("discarding malformed datagram data", "err", err, "frames", len(frames))
		}
		c.queue = frames
	}

	f := c.queue[0]
	c.queue = c.queue[1:]

	return f, nil
}

// read pulls a single datagram off the socket. We go through the raw
// connection as mdlayher/netlink turns error acks into plain errors,
// dropping the sequence number we need for correlating them. Cancelling
// ctx pushes the read deadline into the past, which wakes the read up.
func (c *Conn) read(ctx context.Context) (int, error) {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return 0, fmt.Errorf("error clearing the read deadline: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			if err := c.conn.SetReadDeadline(time.Unix(1, 0)); err != nil {
				slog.Warn("error setting the read deadline", "err", err)
			}
		case <-done:
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	rc, err := c.conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("error getting the raw connection: %w", err)
	}

	var (
		n    int
		rErr error
	)
	err = rc.Read(func(fd uintptr) bool {
		n, _, rErr = unix.Recvfrom(int(fd), c.buf, 0)
		return rErr != unix.EAGAIN && rErr != unix.EWOULDBLOCK
	})

	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded):
		return 0, ErrInterrupted
	case err != nil:
		return 0, fmt.Errorf("receive operation failed: %w", err)
	case rErr == unix.EINTR:
		return 0, ErrInterrupted
	case rErr != nil:
		return 0, fmt.Errorf("receive operation failed: %w", rErr)
	}

	return n, nil
}
