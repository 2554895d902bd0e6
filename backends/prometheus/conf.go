package prometheus

import (
	"github.com/goccy/go-yaml"
)

type Config struct {
	Log bool `yaml:"log"`

	// Softnet exports the drop count kept by the kernel in
	// /proc/net/softnet_stat alongside our own metrics.
	Softnet bool `yaml:"softnet"`
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := &config{
		Log:     true,
		Softnet: true,
	}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	*c = Config(*def)

	return nil
}
