package main

import (
	"fmt"

	"github.com/scitags/dropwatch-go/backends/prometheus"
	"github.com/scitags/dropwatch-go/dropmon"
)

// createMetrics returns nil when the prometheus backend isn't configured.
func createMetrics(c *Config, softnet dropmon.DropCounter) (*prometheus.PrometheusBackend, error) {
	if c.Backends == nil || c.Backends.Prometheus == nil {
		return nil, nil
	}

	b, err := prometheus.NewPrometheusBackend(c.Backends.Prometheus, softnet)
	if err != nil {
		return nil, fmt.Errorf("error initialising the prometheus backend: %w", err)
	}

	return b, nil
}
