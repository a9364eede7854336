// Package vehicle defines what the mission supervisor needs from an
// autopilot, independent of how it is reached.
package vehicle

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/planner"
)

type FlightMode string

const (
	ModeAuto   FlightMode = "AUTO"
	ModeGuided FlightMode = "GUIDED"
	ModeLoiter FlightMode = "LOITER"
	ModeBrake  FlightMode = "BRAKE"
	ModeRTL    FlightMode = "RTL"
	ModeLand   FlightMode = "LAND"
)

var flightModes = []FlightMode{ModeAuto, ModeGuided, ModeLoiter, ModeBrake, ModeRTL, ModeLand}

// ParseFlightMode accepts a mode name in any case.
func ParseFlightMode(s string) (FlightMode, error) {
	name := FlightMode(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range flightModes {
		if m == name {
			return m, nil
		}
	}
	return "", errors.WithMessagef(mission.ErrConfiguration, "unknown flight mode '%s'", s)
}

type CommandKind int

const (
	CommandTakeoff CommandKind = iota
	CommandWaypoint
)

func (k CommandKind) String() string {
	switch k {
	case CommandTakeoff:
		return "takeoff"
	case CommandWaypoint:
		return "waypoint"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is one mission item. Alt is relative to the home position.
type Command struct {
	Kind CommandKind
	Lat  float64
	Lon  float64
	Alt  float64
}

// Position is the vehicle's global position; Alt is relative to home.
type Position struct {
	Lat float64
	Lon float64
	Alt float64
}

// Vehicle is the autopilot as seen by the supervisor. Command indexes are
// 1-based: CurrentCommandIndex returns 0 before the mission starts and
// CommandCount once the last command has been reached.
type Vehicle interface {
	ClearCommands(ctx context.Context) error
	AddCommand(ctx context.Context, cmd Command) error
	UploadCommands(ctx context.Context) error
	CurrentCommandIndex(ctx context.Context) (int, error)
	CommandCount(ctx context.Context) (int, error)
	SetFlightMode(ctx context.Context, mode FlightMode) error
	Takeoff(ctx context.Context, altitude float64) error
	Land(ctx context.Context) error
	CurrentPosition(ctx context.Context) (Position, error)
}

// BuildCommandList converts a trajectory into mission items: a takeoff, one
// waypoint per trajectory point and a copy of the final waypoint. The vehicle
// reaching that copy marks the mission as complete.
func BuildCommandList(trajectory planner.Trajectory, altitude float64) []Command {
	cmds := make([]Command, 0, len(trajectory)+2)
	cmds = append(cmds, Command{Kind: CommandTakeoff, Alt: altitude})

	for _, wp := range trajectory {
		cmds = append(cmds, Command{Kind: CommandWaypoint, Lat: wp.Lat, Lon: wp.Lon, Alt: altitude})
	}
	if len(trajectory) > 0 {
		cmds = append(cmds, cmds[len(cmds)-1])
	}
	return cmds
}
