package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Collector bundles the mission metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Commands            *prometheus.CounterVec
	MissionPhase        *prometheus.GaugeVec
	CommandIndex        prometheus.Gauge
	CommandTotal        prometheus.Gauge
	TrajectoryWaypoints prometheus.Gauge
}

// NewCollector registers the mission metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cmds, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quickscan_commands_total",
		Help: "Ground station commands answered, labeled by command type and result.",
	}, []string{"type", "result"}), "quickscan_commands_total")
	if err != nil {
		return nil, err
	}

	phase, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quickscan_mission_phase",
		Help: "1 for the current mission phase, 0 otherwise.",
	}, []string{"phase"}), "quickscan_mission_phase")
	if err != nil {
		return nil, err
	}

	index, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quickscan_mission_command_index",
		Help: "Mission command the vehicle is executing.",
	}), "quickscan_mission_command_index")
	if err != nil {
		return nil, err
	}
	total, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quickscan_mission_command_total",
		Help: "Number of uploaded mission commands.",
	}), "quickscan_mission_command_total")
	if err != nil {
		return nil, err
	}
	waypoints, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quickscan_trajectory_waypoints",
		Help: "Waypoints in the planned spiral.",
	}), "quickscan_trajectory_waypoints")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		Commands:            cmds,
		MissionPhase:        phase,
		CommandIndex:        index,
		CommandTotal:        total,
		TrajectoryWaypoints: waypoints,
	}, nil
}

// Handler exposes the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Metrics: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
