// Package commsim stands in for the radio link by replaying a scripted feed
// of ground station messages.
package commsim

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tiiuae/quickscan/internal/commands"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/types"
)

const defaultSender = "gcs-sim"

// Feed is the replay script:
//
//	messages:
//	  - delay: 2s
//	    message: {type: start, searchArea: {center: [60.1, 24.9], rad1: 5, rad2: 30}}
//	  - delay: 20s
//	    payload: '{"type":"pause"}'
type Feed struct {
	Messages []Entry `yaml:"messages"`
}

// Entry is sent Delay after the previous one. Payload is sent verbatim,
// otherwise Message is encoded as JSON.
type Entry struct {
	Delay   time.Duration          `yaml:"delay"`
	Sender  string                 `yaml:"sender"`
	Payload string                 `yaml:"payload"`
	Message map[string]interface{} `yaml:"message"`
}

func (e Entry) encode() ([]byte, error) {
	if e.Payload != "" {
		return []byte(e.Payload), nil
	}
	return json.Marshal(e.Message)
}

func Load(path string) (Feed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Feed{}, errors.WithMessagef(mission.ErrConfiguration, "comm sim file: %v", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Feed, error) {
	var feed Feed
	if err := yaml.Unmarshal(b, &feed); err != nil {
		return Feed{}, errors.WithMessagef(mission.ErrConfiguration, "comm sim file: %v", err)
	}
	for i, e := range feed.Messages {
		if e.Payload == "" && e.Message == nil {
			return Feed{}, errors.WithMessagef(mission.ErrConfiguration, "comm sim entry %d has neither payload nor message", i)
		}
		if e.Delay < 0 {
			return Feed{}, errors.WithMessagef(mission.ErrConfiguration, "comm sim entry %d has a negative delay", i)
		}
	}
	return feed, nil
}

// Link replays a Feed into the intake and logs the replies it receives.
type Link struct {
	feed     Feed
	deviceID string
	inbound  chan commands.Inbound
	replay   sync.WaitGroup
	started  sync.Once
}

func New(feed Feed, deviceID string) *Link {
	return &Link{
		feed:     feed,
		deviceID: deviceID,
		inbound:  make(chan commands.Inbound),
	}
}

func (l *Link) Messages() <-chan commands.Inbound {
	return l.inbound
}

// Run starts the replay. The inbound channel is closed once the feed is
// exhausted or ctx is done.
func (l *Link) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	l.started.Do(func() {
		l.replay.Add(1)
		go l.run(ctx)
	})
}

// Wait blocks until the replay goroutine has finished.
func (l *Link) Wait() {
	l.replay.Wait()
}

func (l *Link) Receive(message types.Message) {
	if message.From != l.deviceID || message.Broadcast() {
		return
	}
	switch m := message.Message.(type) {
	case types.Ack:
		log.Infof("COMMSIM: %s acknowledged %s", message.To, m.AckType)
	case types.Error:
		log.Warnf("COMMSIM: %s got error: %s", message.To, m.Error)
	}
}

func (l *Link) run(ctx context.Context) {
	defer l.replay.Done()
	defer close(l.inbound)

	for i, e := range l.feed.Messages {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.Delay):
		}

		payload, err := e.encode()
		if err != nil {
			log.Errorf("COMMSIM: entry %d: %v", i, err)
			continue
		}
		sender := e.Sender
		if sender == "" {
			sender = defaultSender
		}

		log.Infof("COMMSIM: sending %s", payload)
		select {
		case <-ctx.Done():
			return
		case l.inbound <- commands.Inbound{Sender: sender, Payload: payload}:
		}
	}
	log.Info("COMMSIM: feed exhausted")
}
