package commands

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/types"
)

// Inbound is one message received from the ground link.
type Inbound struct {
	Sender  string
	Payload []byte
}

// Intake applies ground station commands to the mission state and answers
// every well-formed message with exactly one ack or error reply.
type Intake struct {
	state    *mission.State
	deviceID string
	post     types.PostFn
}

func New(state *mission.State, deviceID string, post types.PostFn) *Intake {
	return &Intake{state, deviceID, post}
}

// Run drains inbound until it is closed or ctx is done.
func (in *Intake) Run(ctx context.Context, inbound <-chan Inbound) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				log.Info("Intake: ground link closed")
				return nil
			}
			if err := in.Handle(msg); err != nil {
				log.WithField("sender", msg.Sender).Warnf("Intake: %v", err)
			}
		}
	}
}

// Handle decodes and applies a single message.
func (in *Intake) Handle(msg Inbound) error {
	cmd, err := Decode(msg.Payload)
	if err != nil {
		return errors.WithMessagef(err, "message from '%s'", msg.Sender)
	}

	switch cmd.Kind {
	case KindStart:
		if in.state.IsStartRequested() {
			in.replyError(msg.Sender, "Mission already started")
			return nil
		}
		in.state.SetSearchArea(cmd.SearchArea)
		in.state.SetStart()
		log.Infof("Intake: start requested, search area %s", cmd.SearchArea)
	case KindPause:
		in.state.SetPause(true)
		log.Info("Intake: pause requested")
	case KindResume:
		in.state.SetPause(false)
		log.Info("Intake: resume requested")
	case KindStop:
		in.state.SetStop()
		log.Info("Intake: stop requested")
	default:
		in.replyError(msg.Sender, cmd.Reason)
		return nil
	}

	in.post(types.CreateMessage(types.MessageTypeAck, in.deviceID, msg.Sender, types.NewAck(cmd.Type)))
	return nil
}

func (in *Intake) replyError(sender, description string) {
	log.WithField("sender", sender).Warnf("Intake: rejected: %s", description)
	in.post(types.CreateMessage(types.MessageTypeError, in.deviceID, sender, types.NewError(description)))
}
