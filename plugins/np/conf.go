package np

import "github.com/goccy/go-yaml"

// Config of the command pipe. Operator commands are a handful of bytes
// each, so the defaults are small.
type Config struct {
	// EventBacklog is how many write notifications can queue up before
	// the watcher starts blocking.
	EventBacklog int `yaml:"eventBacklog"`

	// ReadSize bounds a single read off the pipe.
	ReadSize int    `yaml:"readSize"`
	PipePath string `yaml:"pipePath"`
}

func (c *Config) UnmarshalYAML(b []byte) error {
	type config Config

	def := &config{
		EventBacklog: 8,
		ReadSize:     512,
		PipePath:     "/run/dropwatch-go.np",
	}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	*c = Config(*def)

	return nil
}
