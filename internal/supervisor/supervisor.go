// Package supervisor runs a quick scan mission from the start command to
// landing.
package supervisor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/planner"
	"github.com/tiiuae/quickscan/internal/types"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

const tracerName = "github.com/tiiuae/quickscan/internal/supervisor"

const DefaultPollInterval = time.Second

type Config struct {
	DeviceID     string
	Altitude     float64
	AngularStep  float64
	FlightMode   vehicle.FlightMode
	HoverMode    vehicle.FlightMode
	PollInterval time.Duration
}

type Supervisor struct {
	cfg     Config
	state   *mission.State
	vehicle vehicle.Vehicle
	post    types.PostFn
	tracer  trace.Tracer
	phase   Phase
}

func New(cfg Config, state *mission.State, v vehicle.Vehicle, post types.PostFn) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HoverMode == "" {
		cfg.HoverMode = vehicle.ModeLoiter
	}
	if post == nil {
		post = func(types.Message) {}
	}
	return &Supervisor{
		cfg:     cfg,
		state:   state,
		vehicle: v,
		post:    post,
		tracer:  otel.Tracer(tracerName),
	}
}

// Phase returns the last phase entered. Only safe to call from the goroutine
// running Run or after Run has returned.
func (s *Supervisor) Phase() Phase {
	return s.phase
}

// Run waits for the start command and flies one mission. It returns nil when
// the mission completed, was stopped or was aborted before takeoff.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.FlightMode != vehicle.ModeAuto {
		return errors.WithMessagef(mission.ErrConfiguration, "flight mode '%s' is not supported, only '%s'", s.cfg.FlightMode, vehicle.ModeAuto)
	}
	planCfg := planner.Config{Altitude: s.cfg.Altitude, AngularStep: s.cfg.AngularStep}
	if err := planCfg.Validate(); err != nil {
		return err
	}

	s.enter(PhaseAwaitingStart, "")
	if err := s.state.WaitForStart(ctx); err != nil {
		return err
	}

	if s.state.IsStopRequested() {
		s.enter(PhaseAborted, "stop requested before start")
		return nil
	}

	area, ok := s.state.SearchArea()
	if !ok {
		s.enter(PhaseAborted, "no search area")
		return errors.WithMessage(mission.ErrProtocol, "start requested without a search area")
	}

	s.enter(PhasePlanning, area.String())
	cmds, err := s.plan(ctx, area, planCfg)
	if err != nil {
		s.enter(PhaseAborted, err.Error())
		return err
	}
	if err := s.upload(ctx, cmds); err != nil {
		s.enter(PhaseAborted, err.Error())
		return err
	}

	// the mission is on the autopilot now; make sure the vehicle is down
	if s.state.IsStopRequested() {
		landErr := s.land(context.WithoutCancel(ctx))
		s.enter(PhaseAborted, "stop requested before takeoff")
		return landErr
	}

	s.enter(PhaseAirborne, "")
	flyErr := s.fly(ctx)
	landErr := s.land(context.WithoutCancel(ctx))
	s.enter(PhaseLanded, "")

	if flyErr != nil {
		return flyErr
	}
	return landErr
}

func (s *Supervisor) plan(ctx context.Context, area mission.SearchArea, cfg planner.Config) ([]vehicle.Command, error) {
	_, span := s.tracer.Start(ctx, "mission.plan", trace.WithAttributes(
		attribute.Float64("mission.center.lat", area.Center.Lat),
		attribute.Float64("mission.center.lon", area.Center.Lon),
		attribute.Float64("mission.rad2", area.Rad2),
		attribute.Float64("mission.altitude", cfg.Altitude),
	))
	defer span.End()

	trajectory, err := planner.Generate(area, cfg)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	cmds := vehicle.BuildCommandList(trajectory, cfg.Altitude)

	span.SetAttributes(
		attribute.Int("mission.waypoints", len(trajectory)),
		attribute.Int("mission.commands", len(cmds)),
	)
	log.Infof("Supervisor: planned %d waypoints, %d commands", len(trajectory), len(cmds))
	s.post(types.CreateMessage(types.MessageTypeMissionPlan, s.cfg.DeviceID, "", types.MissionPlan{
		Waypoints: len(trajectory),
		Commands:  len(cmds),
		Altitude:  cfg.Altitude,
	}))
	return cmds, nil
}

func (s *Supervisor) upload(ctx context.Context, cmds []vehicle.Command) error {
	ctx, span := s.tracer.Start(ctx, "mission.upload", trace.WithAttributes(attribute.Int("mission.commands", len(cmds))))
	defer span.End()

	err := s.vehicle.ClearCommands(ctx)
	if err != nil {
		err = collaboratorError(ctx, "clear commands", err)
		recordError(span, err)
		return err
	}
	for i, cmd := range cmds {
		if err := s.vehicle.AddCommand(ctx, cmd); err != nil {
			err = collaboratorError(ctx, "add command "+cmd.Kind.String(), err)
			recordError(span, err)
			return errors.WithMessagef(err, "command %d", i+1)
		}
	}
	if err := s.vehicle.UploadCommands(ctx); err != nil {
		err = collaboratorError(ctx, "upload commands", err)
		recordError(span, err)
		return err
	}

	log.Infof("Supervisor: uploaded %d commands", len(cmds))
	return nil
}

func (s *Supervisor) fly(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "mission.fly")
	defer span.End()

	log.Infof("Supervisor: takeoff to %.1fm", s.cfg.Altitude)
	if err := s.vehicle.Takeoff(ctx, s.cfg.Altitude); err != nil {
		err = collaboratorError(ctx, "takeoff", err)
		recordError(span, err)
		return err
	}
	if err := s.vehicle.SetFlightMode(ctx, s.cfg.FlightMode); err != nil {
		err = collaboratorError(ctx, "set flight mode", err)
		recordError(span, err)
		return err
	}

	for {
		index, err := s.vehicle.CurrentCommandIndex(ctx)
		if err != nil {
			err = collaboratorError(ctx, "current command", err)
			recordError(span, err)
			return err
		}
		count, err := s.vehicle.CommandCount(ctx)
		if err != nil {
			err = collaboratorError(ctx, "command count", err)
			recordError(span, err)
			return err
		}

		paused := s.state.IsPauseRequested()
		s.reportProgress(ctx, index, count, paused)

		if index >= count {
			log.Infof("Supervisor: mission complete at command %d/%d", index, count)
			span.SetAttributes(attribute.String("mission.result", "complete"))
			return nil
		}

		mode := s.cfg.FlightMode
		if paused {
			mode = s.cfg.HoverMode
		}
		if err := s.vehicle.SetFlightMode(ctx, mode); err != nil {
			err = collaboratorError(ctx, "set flight mode", err)
			recordError(span, err)
			return err
		}

		if s.state.IsStopRequested() {
			log.Infof("Supervisor: stop requested at command %d/%d", index, count)
			span.SetAttributes(attribute.String("mission.result", "stopped"))
			return nil
		}

		select {
		case <-ctx.Done():
			span.SetAttributes(attribute.String("mission.result", "cancelled"))
			return ctx.Err()
		case <-s.state.Stopped():
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Supervisor) land(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "mission.land")
	defer span.End()

	log.Info("Supervisor: landing")
	if err := s.vehicle.Land(ctx); err != nil {
		err = collaboratorError(ctx, "land", err)
		recordError(span, err)
		return err
	}
	return nil
}

func (s *Supervisor) reportProgress(ctx context.Context, index, count int, paused bool) {
	progress := types.MissionProgress{Index: index, Total: count, Paused: paused}

	pos, err := s.vehicle.CurrentPosition(ctx)
	if err != nil {
		log.Warnf("Supervisor: position unavailable: %v", err)
	} else {
		progress.Position = &types.GlobalPosition{Lat: pos.Lat, Lon: pos.Lon, Alt: pos.Alt}
		log.Debugf("Supervisor: command %d/%d at (%f, %f, %.1f)", index, count, pos.Lat, pos.Lon, pos.Alt)
	}

	s.post(types.CreateMessage(types.MessageTypeMissionProgress, s.cfg.DeviceID, "", progress))
}

func (s *Supervisor) enter(phase Phase, detail string) {
	s.phase = phase
	if detail != "" {
		log.Infof("Supervisor: %s (%s)", phase, detail)
	} else {
		log.Infof("Supervisor: %s", phase)
	}
	s.post(types.CreateMessage(types.MessageTypeMissionPhase, s.cfg.DeviceID, "", types.MissionPhase{
		Phase:  phase.String(),
		Detail: detail,
	}))
}

// vehicleError keeps both the collaborator class and the vehicle's own
// error reachable through errors.Is.
type vehicleError struct {
	op    string
	cause error
}

func (e *vehicleError) Error() string {
	return mission.ErrCollaborator.Error() + ": " + e.op + ": " + e.cause.Error()
}

func (e *vehicleError) Unwrap() []error {
	return []error{mission.ErrCollaborator, e.cause}
}

// collaboratorError classifies a vehicle failure. Cancellation is passed
// through unchanged.
func collaboratorError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &vehicleError{op: op, cause: err}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
