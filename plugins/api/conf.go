package api

import (
	"github.com/goccy/go-yaml"
)

// Config controls where the state and metrics API listens. It's bound to
// the loopback interface by default as POST /interrupt is unauthenticated.
type Config struct {
	BindAddress string `yaml:"bindAddress"`
	BindPort    uint16 `yaml:"bindPort"`
}

const DefaultBindPort = 9474

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := &config{
		BindAddress: "127.0.0.1",
		BindPort:    DefaultBindPort,
	}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	*c = Config(*def)

	return nil
}
