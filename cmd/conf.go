package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/scitags/dropwatch-go/backends/prometheus"
	"github.com/scitags/dropwatch-go/internal/kernel"
	"github.com/scitags/dropwatch-go/netlink"
	"github.com/scitags/dropwatch-go/plugins/api"
	"github.com/scitags/dropwatch-go/plugins/np"
)

const DEFAULT_CONF_PATH = "/etc/dropwatch-go/conf.yaml"

type Config struct {
	ProcPath string `yaml:"procPath"`
	Prompt   string `yaml:"prompt"`

	Netlink *netlink.Config `yaml:"netlink"`
	Output  *OutputConfig   `yaml:"output"`

	Plugins *struct {
		Api *api.Config `yaml:"api"`
		Np  *np.Config  `yaml:"namedPipe"`
	} `yaml:"plugins"`

	Backends *struct {
		Prometheus *prometheus.Config `yaml:"prometheus"`
	} `yaml:"backends"`
}

type OutputConfig struct {
	Format       string `yaml:"format"`
	Symbols      bool   `yaml:"symbols"`
	KallsymsPath string `yaml:"kallsymsPath"`
}

var defaultOutputConfig = OutputConfig{
	Format:       "text",
	Symbols:      true,
	KallsymsPath: kernel.KALLSYMS_PATH,
}

func (c *OutputConfig) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config OutputConfig

	def := config(defaultOutputConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = OutputConfig(def)

	return nil
}

func defaultConfig() Config {
	nl := netlink.DefaultConfig
	out := defaultOutputConfig

	return Config{
		ProcPath: "/proc",
		Prompt:   "dropwatch> ",
		Netlink:  &nl,
		Output:   &out,
	}
}

func (c Config) String() string {
	m, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return "marshalling error..."
	}
	return string(m)
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(defaultConfig())

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	// Explicitly nulled sections fall back to their defaults.
	if c.Netlink == nil {
		nl := netlink.DefaultConfig
		c.Netlink = &nl
	}
	if c.Output == nil {
		out := defaultOutputConfig
		c.Output = &out
	}

	return nil
}

// ReadConf parses the configuration at path. A missing file is not an
// error: the defaults are returned instead.
func ReadConf(path string) (*Config, error) {
	r, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no configuration file found, using the defaults", "path", path)
			conf := defaultConfig()
			return &conf, nil
		}
		return nil, fmt.Errorf("error reading the configuration file: %w", err)
	}

	conf := Config{}
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	return &conf, nil
}
