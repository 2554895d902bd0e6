package netlink

import (
	"context"

	"github.com/goccy/go-yaml"
)

// Transport is what the control loop needs from a netlink socket.
type Transport interface {
	// Send hands a request over to the kernel.
	Send(m *Message) error

	// Receive blocks until a netlink message comes in. It returns
	// ErrInterrupted if ctx is cancelled while waiting. The returned
	// frame is only valid until the next call.
	Receive(ctx context.Context) ([]byte, error)

	Close() error
}

type Config struct {
	Family     string `yaml:"family"`
	Group      string `yaml:"group"`
	BufferSize int    `yaml:"bufferSize"`
}

var DefaultConfig = Config{
	Family:     FAMILY_NAME,
	Group:      GROUP_NAME,
	BufferSize: 64 * 1024,
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	return nil
}
