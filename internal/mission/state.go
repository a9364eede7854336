package mission

import (
	"context"
	"sync"
)

// State holds the mission flags shared between the command intake and the
// mission supervisor. The intake is the only writer; the supervisor polls it.
//
// Start and stop are latched: once set they stay set for the lifetime of the
// State, and the corresponding channels are closed exactly once.
type State struct {
	mu         sync.Mutex
	start      bool
	pause      bool
	stop       bool
	searchArea *SearchArea

	started chan struct{}
	stopped chan struct{}
}

// Snapshot is a consistent copy of all fields of State.
type Snapshot struct {
	StartRequested bool
	PauseRequested bool
	StopRequested  bool
	SearchArea     *SearchArea
}

func NewState() *State {
	return &State{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *State) SetStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.start {
		return
	}
	s.start = true
	close(s.started)
}

func (s *State) SetPause(pause bool) {
	s.mu.Lock()
	s.pause = pause
	s.mu.Unlock()
}

func (s *State) SetStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop {
		return
	}
	s.stop = true
	close(s.stopped)
}

func (s *State) SetSearchArea(area SearchArea) {
	s.mu.Lock()
	s.searchArea = &area
	s.mu.Unlock()
}

func (s *State) IsStartRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

func (s *State) IsPauseRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause
}

func (s *State) IsStopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// SearchArea returns the current search area and whether one has been set.
func (s *State) SearchArea() (SearchArea, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchArea == nil {
		return SearchArea{}, false
	}
	return *s.searchArea, true
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		StartRequested: s.start,
		PauseRequested: s.pause,
		StopRequested:  s.stop,
	}
	if s.searchArea != nil {
		area := *s.searchArea
		snap.SearchArea = &area
	}
	return snap
}

// WaitForStart blocks until a start or a stop has been requested, or ctx is
// done. Callers check IsStopRequested to tell the two apart.
func (s *State) WaitForStart(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started is closed when a start is requested.
func (s *State) Started() <-chan struct{} {
	return s.started
}

// Stopped is closed when a stop is requested.
func (s *State) Stopped() <-chan struct{} {
	return s.stopped
}
