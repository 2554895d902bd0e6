package prometheus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scitags/dropwatch-go/types"
)

// Metric labels (note these are **always** strings):
//
//	location: the kernel address packets were dropped at, in hex
//	cmd: the NET_DM command being acknowledged
//	result: ok or the error the kernel replied with
//	reason: why a message was thrown away
//	state: a control loop state
type metrics struct {
	Alerts     prometheus.Counter
	DropPoints prometheus.Counter
	Drops      *prometheus.CounterVec

	Acks        *prometheus.CounterVec
	Discards    *prometheus.CounterVec
	Transitions *prometheus.CounterVec

	State *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		Alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropwatch_alerts_total",
			Help: "Drop alerts received while monitoring",
		}),
		DropPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dropwatch_drop_points_total",
			Help: "Drop points carried by the received alerts",
		}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropwatch_drops_total",
			Help: "Dropped packets reported by the kernel",
		}, []string{"location"}),

		Acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropwatch_acks_total",
			Help: "Acknowledgements matched to an outstanding request",
		}, []string{"cmd", "result"}),
		Discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropwatch_discarded_messages_total",
			Help: "Inbound netlink messages thrown away",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropwatch_state_transitions_total",
			Help: "Control loop transitions into each state",
		}, []string{"state"}),

		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dropwatch_state",
			Help: "Current control loop state (1 for the active one)",
		}, []string{"state"}),
	}

	return m
}

// (Nastily) use reflection to avoid having to manually register everything.
func (m *metrics) register(req prometheus.Registerer) error {
	v := reflect.ValueOf(*m)

	i := 0
	for i = 0; i < v.NumField(); i++ {
		vv, ok := v.Field(i).Interface().(prometheus.Collector)
		if !ok {
			return fmt.Errorf("error casting the interface for index %d", i)
		}
		if err := req.Register(vv); err != nil {
			return fmt.Errorf("error registering index %d: %w", i, err)
		}
	}
	logger.Log(context.Background(), types.LevelTrace, "registered collectors", "i", i)

	return nil
}
