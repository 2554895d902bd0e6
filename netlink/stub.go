//go:build !linux

package netlink

import "context"

type Conn struct {
	Config
}

func Open(config *Config) (*Conn, error) {
	return nil, ErrUnsupported
}

func (c *Conn) String() string {
	return "genetlink(unsupported)"
}

func (c *Conn) FamilyID() uint16 {
	return 0
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Send(m *Message) error {
	return ErrUnsupported
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}
