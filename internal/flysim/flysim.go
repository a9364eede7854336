// Package flysim is an in-process stand-in for the autopilot. In AUTO it
// advances one mission command each time the current command is polled and
// holds position in any other mode.
package flysim

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

type Simulator struct {
	mu       sync.Mutex
	pending  []vehicle.Command
	uploaded []vehicle.Command
	index    int
	mode     vehicle.FlightMode
	armed    bool
	position vehicle.Position
	stats    Stats
}

// Stats counts what the simulator has been asked to do.
type Stats struct {
	Uploads  int
	Takeoffs int
	Lands    int
	Modes    []vehicle.FlightMode
}

func New(home vehicle.Position) *Simulator {
	home.Alt = 0
	return &Simulator{mode: vehicle.ModeLoiter, position: home}
}

func (s *Simulator) ClearCommands(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending[:0]
	return nil
}

func (s *Simulator) AddCommand(ctx context.Context, cmd vehicle.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, cmd)
	return nil
}

func (s *Simulator) UploadCommands(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploaded = append([]vehicle.Command(nil), s.pending...)
	s.index = 0
	s.stats.Uploads++
	log.Debugf("SIM: uploaded %d commands", len(s.uploaded))
	return nil
}

func (s *Simulator) CurrentCommandIndex(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == vehicle.ModeAuto && s.armed && s.index < len(s.uploaded) {
		s.index++
		cmd := s.uploaded[s.index-1]
		if cmd.Kind == vehicle.CommandWaypoint {
			s.position = vehicle.Position{Lat: cmd.Lat, Lon: cmd.Lon, Alt: cmd.Alt}
		}
	}
	return s.index, nil
}

func (s *Simulator) CommandCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded), nil
}

func (s *Simulator) SetFlightMode(ctx context.Context, mode vehicle.FlightMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != mode {
		log.Debugf("SIM: mode %s -> %s", s.mode, mode)
	}
	s.mode = mode
	s.stats.Modes = append(s.stats.Modes, mode)
	return nil
}

func (s *Simulator) Takeoff(ctx context.Context, altitude float64) error {
	if altitude <= 0 {
		return errors.WithMessagef(mission.ErrCollaborator, "takeoff altitude %.1f", altitude)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = vehicle.ModeGuided
	s.armed = true
	s.position.Alt = altitude
	s.stats.Takeoffs++
	log.Debugf("SIM: airborne at %.1fm", altitude)
	return nil
}

func (s *Simulator) Land(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = vehicle.ModeLand
	s.armed = false
	s.position.Alt = 0
	s.stats.Lands++
	s.stats.Modes = append(s.stats.Modes, vehicle.ModeLand)
	log.Debugf("SIM: landed at (%f, %f)", s.position.Lat, s.position.Lon)
	return nil
}

func (s *Simulator) CurrentPosition(ctx context.Context) (vehicle.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

// Mode returns the flight mode the simulator is in.
func (s *Simulator) Mode() vehicle.FlightMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Commands returns the uploaded mission.
func (s *Simulator) Commands() []vehicle.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vehicle.Command(nil), s.uploaded...)
}

func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Modes = append([]vehicle.FlightMode(nil), s.stats.Modes...)
	return stats
}
