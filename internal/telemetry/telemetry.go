// Package telemetry mirrors mission events from the message bus into
// Prometheus metrics.
package telemetry

import (
	"context"
	"sync"

	"github.com/tiiuae/quickscan/internal/observability"
	"github.com/tiiuae/quickscan/internal/supervisor"
	"github.com/tiiuae/quickscan/internal/types"
)

type telemetry struct {
	metrics  *observability.Collector
	deviceID string
}

// New starts every phase gauge at awaiting-start, before any bus message
// can arrive.
func New(metrics *observability.Collector, deviceID string) types.MessageHandler {
	t := &telemetry{metrics, deviceID}
	t.setPhase(supervisor.PhaseAwaitingStart.String())
	return t
}

func (t *telemetry) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
}

func (t *telemetry) Receive(message types.Message) {
	if message.From != t.deviceID {
		return
	}

	switch m := message.Message.(type) {
	case types.Ack:
		t.metrics.Commands.WithLabelValues(m.AckType, "ack").Inc()
	case types.Error:
		t.metrics.Commands.WithLabelValues("", "error").Inc()
	case types.MissionPhase:
		t.setPhase(m.Phase)
	case types.MissionPlan:
		t.metrics.TrajectoryWaypoints.Set(float64(m.Waypoints))
		t.metrics.CommandTotal.Set(float64(m.Commands))
	case types.MissionProgress:
		t.metrics.CommandIndex.Set(float64(m.Index))
		t.metrics.CommandTotal.Set(float64(m.Total))
	}
}

func (t *telemetry) setPhase(phase string) {
	for _, p := range supervisor.Phases {
		v := 0.0
		if p.String() == phase {
			v = 1
		}
		t.metrics.MissionPhase.WithLabelValues(p.String()).Set(v)
	}
}
