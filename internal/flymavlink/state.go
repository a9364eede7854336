package flymavlink

import (
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

// ArduCopter custom modes
var copterModes = map[vehicle.FlightMode]uint32{
	vehicle.ModeAuto:   3,
	vehicle.ModeGuided: 4,
	vehicle.ModeLoiter: 5,
	vehicle.ModeRTL:    6,
	vehicle.ModeLand:   9,
	vehicle.ModeBrake:  17,
}

func modeName(custom uint32) string {
	for name, c := range copterModes {
		if c == custom {
			return string(name)
		}
	}
	return "UNKNOWN"
}

const armedFlag = 128 // MAV_MODE_FLAG_SAFETY_ARMED

// state is the latest telemetry received from the autopilot.
type state struct {
	mu              sync.Mutex
	targetSystem    uint8
	targetComponent uint8
	haveTarget      bool
	customMode      uint32
	armed           bool
	missionSeq      int
	position        vehicle.Position
	havePosition    bool
}

func (s *state) handleHeartbeat(systemID, componentID uint8, m *common.MessageHeartbeat) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first = !s.haveTarget
	s.targetSystem = systemID
	s.targetComponent = componentID
	s.haveTarget = true
	s.customMode = m.CustomMode
	s.armed = uint64(m.BaseMode)&armedFlag != 0
	return first
}

func (s *state) handleMissionCurrent(m *common.MessageMissionCurrent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missionSeq = int(m.Seq)
}

func (s *state) handleGlobalPosition(m *common.MessageGlobalPositionInt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = vehicle.Position{
		Lat: fromDegE7(m.Lat),
		Lon: fromDegE7(m.Lon),
		Alt: float64(m.RelativeAlt) / 1000,
	}
	s.havePosition = true
}

func (s *state) target() (system, component uint8, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetSystem, s.targetComponent, s.haveTarget
}

func (s *state) mode() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customMode
}

func (s *state) isArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *state) seq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missionSeq
}

func (s *state) globalPosition() (vehicle.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.havePosition
}

func toDegE7(deg float64) int32 {
	if deg >= 0 {
		return int32(deg*1e7 + 0.5)
	}
	return int32(deg*1e7 - 0.5)
}

func fromDegE7(v int32) float64 {
	return float64(v) / 1e7
}
