package prometheus

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scitags/dropwatch-go/dropmon"
	"github.com/scitags/dropwatch-go/netlink"
	"github.com/scitags/dropwatch-go/types"
)

var logger *slog.Logger

// PrometheusBackend keeps track of what the control loop is up to. It
// implements dropmon.Observer and exposes what it gathers through Handler.
type PrometheusBackend struct {
	Config

	reg *prometheus.Registry
	m   *metrics
}

func (b *PrometheusBackend) String() string {
	return "Prometheus"
}

// NewPrometheusBackend builds the backend. The softnet counter is only
// exported when enabled in the configuration and can be nil otherwise.
func NewPrometheusBackend(c *Config, softnet dropmon.DropCounter) (*PrometheusBackend, error) {
	if c.Log {
		logger = slog.Default().With("t", "prometheus")
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logger.Debug("initialising the prometheus backend")

	b := PrometheusBackend{Config: *c}

	// Create a non-global registry.
	b.reg = prometheus.NewRegistry()

	b.m = newMetrics()
	if err := b.m.register(b.reg); err != nil {
		return nil, fmt.Errorf("error registering the metrics: %v", err)
	}

	if b.Softnet && softnet != nil {
		if err := b.reg.Register(softnetCollector(softnet)); err != nil {
			return nil, fmt.Errorf("error registering the softnet collector: %w", err)
		}
	}

	b.m.State.WithLabelValues(dropmon.Idle.String()).Set(1)

	return &b, nil
}

func softnetCollector(c dropmon.DropCounter) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "dropwatch_softnet_dropped_total",
		Help: "Packets dropped as accounted for in /proc/net/softnet_stat",
	}, func() float64 {
		n, err := c.Dropped()
		if err != nil {
			logger.Warn("error reading softnet stats", "err", err)
			return 0
		}
		return float64(n)
	})
}

// Handler serves the gathered metrics in the exposition format.
func (b *PrometheusBackend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{Registry: b.reg})
}

func (b *PrometheusBackend) Alert(points []types.DropPoint) {
	b.m.Alerts.Inc()
	b.m.DropPoints.Add(float64(len(points)))

	for _, p := range points {
		b.m.Drops.WithLabelValues(p.Location()).Add(float64(p.Count))
	}
}

func (b *PrometheusBackend) Ack(cmd netlink.Command, code int32) {
	result := "ok"
	if err := netlink.ErrnoFromCode(code); err != nil {
		result = err.Error()
	}
	b.m.Acks.WithLabelValues(cmd.String(), result).Inc()
}

func (b *PrometheusBackend) Discard(reason string) {
	b.m.Discards.WithLabelValues(reason).Inc()
}

func (b *PrometheusBackend) Transition(from, to dropmon.State) {
	logger.Debug("control loop transition", "from", from, "to", to)

	b.m.Transitions.WithLabelValues(to.String()).Inc()
	b.m.State.WithLabelValues(from.String()).Set(0)
	b.m.State.WithLabelValues(to.String()).Set(1)
}

func (b *PrometheusBackend) Cleanup() error {
	logger.Debug("cleaning up the prometheus backend")
	return nil
}
