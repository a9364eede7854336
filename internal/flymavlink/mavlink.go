// Package flymavlink drives an ArduCopter autopilot over MAVLink.
package flymavlink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

const (
	gcsSystemID      = 255
	takeoffThreshold = 0.95
	streamRate       = 4 // Hz
	maxMissionItems  = math.MaxUint16
)

var (
	commandTimeout = 10 * time.Second
	takeoffTimeout = 2 * time.Minute
	resendInterval = time.Second
	uploadRetries  = 5
)

type Config struct {
	Connection string
}

// Driver implements vehicle.Vehicle on top of a gomavlib node.
type Driver struct {
	node     *gomavlib.Node
	state    *state
	missions chan interface{}

	mu       sync.Mutex
	pending  []vehicle.Command
	uploaded []vehicle.Command
}

var _ vehicle.Vehicle = (*Driver)(nil)

func New(cfg Config) (*Driver, error) {
	endpoint, err := ParseEndpoint(cfg.Connection)
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: gcsSystemID,
	})
	if err != nil {
		return nil, errors.WithMessagef(mission.ErrCollaborator, "open %s: %v", cfg.Connection, err)
	}

	return &Driver{
		node:     node,
		state:    &state{},
		missions: make(chan interface{}, 16),
	}, nil
}

// Run reads autopilot messages until ctx is done.
func (d *Driver) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	events := d.node.Events()
	for {
		select {
		case <-ctx.Done():
			log.Info("MAVLINK shutting down")
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if frm, ok := evt.(*gomavlib.EventFrame); ok {
				d.handleFrame(frm)
			}
		}
	}
}

func (d *Driver) Close() {
	d.node.Close()
}

func (d *Driver) handleFrame(frm *gomavlib.EventFrame) {
	switch m := frm.Message().(type) {
	case *common.MessageHeartbeat:
		if frm.ComponentID() != 1 {
			return
		}
		if d.state.handleHeartbeat(frm.SystemID(), frm.ComponentID(), m) {
			log.Infof("MAVLINK: autopilot %d found, mode %s", frm.SystemID(), modeName(m.CustomMode))
			d.requestStreams(frm.SystemID(), frm.ComponentID())
		}
	case *common.MessageMissionCurrent:
		d.state.handleMissionCurrent(m)
	case *common.MessageGlobalPositionInt:
		d.state.handleGlobalPosition(m)
	case *common.MessageCommandAck:
		if m.Result != common.MAV_RESULT_ACCEPTED {
			log.Warnf("MAVLINK: command %v rejected: %v", m.Command, m.Result)
		}
	case *common.MessageMissionRequestInt, *common.MessageMissionRequest, *common.MessageMissionAck:
		select {
		case d.missions <- m:
		default:
			log.Warn("MAVLINK: mission handshake queue full")
		}
	case *common.MessageStatustext:
		log.Infof("MAVLINK: autopilot: %s", m.Text)
	}
}

func (d *Driver) requestStreams(system, component uint8) {
	d.node.WriteMessageAll(&common.MessageRequestDataStream{
		TargetSystem:    system,
		TargetComponent: component,
		ReqStreamId:     0, // MAV_DATA_STREAM_ALL
		ReqMessageRate:  streamRate,
		StartStop:       1,
	})
}

func (d *Driver) ClearCommands(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	return nil
}

func (d *Driver) AddCommand(ctx context.Context, cmd vehicle.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, cmd)
	return nil
}

// UploadCommands runs the MAVLink mission upload handshake. Sequence 0 is
// the home position, so the pending commands occupy 1..n.
func (d *Driver) UploadCommands(ctx context.Context) error {
	d.mu.Lock()
	cmds := append([]vehicle.Command(nil), d.pending...)
	d.mu.Unlock()

	if len(cmds)+1 > maxMissionItems {
		return errors.WithMessagef(mission.ErrConfiguration,
			"%d commands plus home exceed the %d mission items MAVLink can address", len(cmds), maxMissionItems)
	}

	system, component, err := d.waitTarget(ctx)
	if err != nil {
		return err
	}

	items := make([]*common.MessageMissionItemInt, 0, len(cmds)+1)
	items = append(items, missionItem(system, component, 0, vehicle.Command{Kind: vehicle.CommandWaypoint}))
	for i, cmd := range cmds {
		items = append(items, missionItem(system, component, uint16(i+1), cmd))
	}

	d.drainMissions()
	count := &common.MessageMissionCount{
		TargetSystem:    system,
		TargetComponent: component,
		Count:           uint16(len(items)),
	}
	d.node.WriteMessageAll(count)
	log.Infof("MAVLINK: uploading %d mission items", len(items))

	retries := 0
	timer := time.NewTimer(resendInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			retries++
			if retries > uploadRetries {
				return errors.New("mission upload timed out")
			}
			log.Warnf("MAVLINK: no mission request, resending count (%d/%d)", retries, uploadRetries)
			d.node.WriteMessageAll(count)
			timer.Reset(resendInterval)
		case msg := <-d.missions:
			seq := -1
			switch m := msg.(type) {
			case *common.MessageMissionRequestInt:
				seq = int(m.Seq)
			case *common.MessageMissionRequest:
				seq = int(m.Seq)
			case *common.MessageMissionAck:
				if m.Type != common.MAV_MISSION_ACCEPTED {
					return errors.Errorf("mission rejected: %v", m.Type)
				}
				d.mu.Lock()
				d.uploaded = cmds
				d.mu.Unlock()
				log.Infof("MAVLINK: mission accepted")
				return nil
			}
			if seq < 0 || seq >= len(items) {
				return errors.Errorf("autopilot requested mission item %d of %d", seq, len(items))
			}
			d.node.WriteMessageAll(items[seq])
			retries = 0
			timer.Reset(resendInterval)
		}
	}
}

func (d *Driver) CurrentCommandIndex(ctx context.Context) (int, error) {
	return d.state.seq(), nil
}

func (d *Driver) CommandCount(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uploaded), nil
}

// SetFlightMode switches the autopilot mode and waits for the heartbeat to
// confirm it.
func (d *Driver) SetFlightMode(ctx context.Context, mode vehicle.FlightMode) error {
	custom, ok := copterModes[mode]
	if !ok {
		return errors.Errorf("flight mode %s not supported by the autopilot", mode)
	}
	if d.state.mode() == custom {
		return nil
	}

	system, component, err := d.waitTarget(ctx)
	if err != nil {
		return err
	}

	log.Infof("MAVLINK: mode %s -> %s", modeName(d.state.mode()), mode)
	cmd := &common.MessageCommandLong{
		TargetSystem:    system,
		TargetComponent: component,
		Command:         common.MAV_CMD_DO_SET_MODE,
		Param1:          1, // MAV_MODE_FLAG_CUSTOM_MODE_ENABLED
		Param2:          float32(custom),
	}
	return d.sendUntil(ctx, cmd, commandTimeout, func() bool {
		return d.state.mode() == custom
	})
}

// Takeoff arms in GUIDED and climbs until the vehicle is close to altitude.
func (d *Driver) Takeoff(ctx context.Context, altitude float64) error {
	if err := d.SetFlightMode(ctx, vehicle.ModeGuided); err != nil {
		return err
	}

	system, component, err := d.waitTarget(ctx)
	if err != nil {
		return err
	}

	log.Info("MAVLINK: arming motors")
	arm := &common.MessageCommandLong{
		TargetSystem:    system,
		TargetComponent: component,
		Command:         common.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:          1,
	}
	if err := d.sendUntil(ctx, arm, commandTimeout, d.state.isArmed); err != nil {
		return errors.WithMessage(err, "arm")
	}

	log.Infof("MAVLINK: taking off to %.1fm", altitude)
	takeoff := &common.MessageCommandLong{
		TargetSystem:    system,
		TargetComponent: component,
		Command:         common.MAV_CMD_NAV_TAKEOFF,
		Param7:          float32(altitude),
	}
	d.node.WriteMessageAll(takeoff)

	return d.waitFor(ctx, takeoffTimeout, func() bool {
		pos, ok := d.state.globalPosition()
		if ok {
			log.Debugf("MAVLINK: altitude %.1fm", pos.Alt)
		}
		return ok && pos.Alt >= altitude*takeoffThreshold
	})
}

func (d *Driver) Land(ctx context.Context) error {
	return d.SetFlightMode(ctx, vehicle.ModeLand)
}

func (d *Driver) CurrentPosition(ctx context.Context) (vehicle.Position, error) {
	pos, ok := d.state.globalPosition()
	if !ok {
		return vehicle.Position{}, errors.New("no position received yet")
	}
	return pos, nil
}

func (d *Driver) waitTarget(ctx context.Context) (uint8, uint8, error) {
	err := d.waitFor(ctx, commandTimeout, func() bool {
		_, _, ok := d.state.target()
		return ok
	})
	if err != nil {
		return 0, 0, errors.WithMessage(err, "no heartbeat from the autopilot")
	}
	system, component, _ := d.state.target()
	return system, component, nil
}

// sendUntil writes msg every resendInterval until done reports true.
func (d *Driver) sendUntil(ctx context.Context, msg *common.MessageCommandLong, timeout time.Duration, done func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		d.node.WriteMessageAll(msg)
		if err := d.waitFor(ctx, resendInterval, done); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errors.Errorf("command %v not confirmed within %v", msg.Command, timeout)
		}
	}
}

func (d *Driver) waitFor(ctx context.Context, timeout time.Duration, done func() bool) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for !done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.Errorf("timed out after %v", timeout)
		case <-ticker.C:
		}
	}
	return nil
}

func (d *Driver) drainMissions() {
	for {
		select {
		case <-d.missions:
		default:
			return
		}
	}
}

func missionItem(system, component uint8, seq uint16, cmd vehicle.Command) *common.MessageMissionItemInt {
	item := &common.MessageMissionItemInt{
		TargetSystem:    system,
		TargetComponent: component,
		Seq:             seq,
		Frame:           common.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
		Command:         common.MAV_CMD_NAV_WAYPOINT,
		Autocontinue:    1,
		X:               toDegE7(cmd.Lat),
		Y:               toDegE7(cmd.Lon),
		Z:               float32(cmd.Alt),
	}
	if cmd.Kind == vehicle.CommandTakeoff {
		item.Command = common.MAV_CMD_NAV_TAKEOFF
	}
	return item
}
