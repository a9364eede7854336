package types

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type PostFn = func(msg Message)

type MessageHandler interface {
	Run(ctx context.Context, wg *sync.WaitGroup, post PostFn)
	Receive(message Message)
}

// MessageBus fans every posted message out to all receivers.
type MessageBus struct {
	bus       chan Message
	receivers []MessageHandler
	done      chan struct{}
	closeOnce sync.Once
}

func NewMessageBus(bus chan Message, receivers ...MessageHandler) *MessageBus {
	return &MessageBus{
		bus:       bus,
		receivers: receivers,
		done:      make(chan struct{}),
	}
}

// Post queues msg for delivery. After the bus has stopped the message is dropped.
func (mb *MessageBus) Post(msg Message) {
	busLen := len(mb.bus)
	busCapacity := cap(mb.bus)
	if busLen > busCapacity/2 {
		log.Warnf("Bus capacity over 50%% [ %d / %d ]", busLen, busCapacity)
	}

	select {
	case mb.bus <- msg:
	case <-mb.done:
		log.Debugf("Bus stopped, dropping %s", msg.MessageType)
	}
}

func (mb *MessageBus) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()
	defer mb.closeOnce.Do(func() { close(mb.done) })

	for _, x := range mb.receivers {
		go x.Run(ctx, wg, mb.Post)
	}

	for {
		select {
		case <-ctx.Done():
			mb.drain()
			return
		case msg := <-mb.bus:
			mb.dispatch(msg)
		}
	}
}

// drain delivers messages queued before cancellation.
func (mb *MessageBus) drain() {
	for {
		select {
		case msg := <-mb.bus:
			mb.dispatch(msg)
		default:
			return
		}
	}
}

func (mb *MessageBus) dispatch(msg Message) {
	for _, x := range mb.receivers {
		x.Receive(msg)
	}
}
