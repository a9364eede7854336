// Package radiolink is the ground station link over MQTT.
package radiolink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/quickscan/internal/commands"
	"github.com/tiiuae/quickscan/internal/types"
)

// DefaultSender is used when a command arrives without a sender topic level.
const DefaultSender = "gcs"

const publishTimeout = 10 * time.Second

type publishFn = func(topic string, payload []byte)

// Link forwards mission commands to the intake and publishes replies and
// events addressed to the ground.
type Link struct {
	deviceID  string
	inbound   chan commands.Inbound
	publish   publishFn
	subscribe func(topic string, handler func(topic string, payload []byte)) error
	close     func()
	done      chan struct{}
	closeOnce sync.Once
}

func Connect(ctx context.Context, cfg Config) (*Link, error) {
	cfg = cfg.withDefaults()
	client, err := newMQTTClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	l := newLink(cfg.DeviceID)
	l.publish = func(topic string, payload []byte) {
		tok := client.Publish(topic, QoS, Retain, payload)
		go func() {
			if !tok.WaitTimeout(publishTimeout) {
				log.Warnf("MQTT: could not publish to %s within %v", topic, publishTimeout)
				return
			}
			if err := tok.Error(); err != nil {
				log.Warnf("MQTT: publish to %s failed: %v", topic, err)
			}
		}()
	}
	l.subscribe = func(topic string, handler func(string, []byte)) error {
		tok := client.Subscribe(topic, QoS, func(c mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		tok.Wait()
		return tok.Error()
	}
	l.close = func() { client.Disconnect(1000) }
	return l, nil
}

func newLink(deviceID string) *Link {
	return &Link{
		deviceID: deviceID,
		inbound:  make(chan commands.Inbound, 16),
		done:     make(chan struct{}),
	}
}

// Messages delivers inbound mission commands.
func (l *Link) Messages() <-chan commands.Inbound {
	return l.inbound
}

func (l *Link) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	topic := commandTopic(l.deviceID) + "/#"
	log.Infof("MQTT: subscribing to %s", topic)
	if err := l.subscribe(topic, l.handleMessage); err != nil {
		log.Errorf("MQTT: error on subscribe: %v", err)
	}

	<-ctx.Done()
	l.closeOnce.Do(func() { close(l.done) })
	if l.close != nil {
		l.close()
	}
	log.Info("MQTT: link closed")
}

// Receive publishes messages sent by this device to anyone but itself.
func (l *Link) Receive(message types.Message) {
	if message.From != l.deviceID || message.To == l.deviceID {
		return
	}

	b, err := json.Marshal(message)
	if err != nil {
		log.Errorf("MQTT: could not marshal %s: %v", message.MessageType, err)
		return
	}
	l.publish(eventTopic(l.deviceID, message.MessageType), b)
}

func (l *Link) handleMessage(topic string, payload []byte) {
	sender := senderFromTopic(l.deviceID, topic)
	log.Debugf("MQTT: mission command from %s", sender)

	msg := commands.Inbound{Sender: sender, Payload: append([]byte(nil), payload...)}
	select {
	case l.inbound <- msg:
	case <-l.done:
	}
}

func commandTopic(deviceID string) string {
	return fmt.Sprintf("/devices/%s/commands/mission", deviceID)
}

func eventTopic(deviceID, messageType string) string {
	return fmt.Sprintf("/devices/%s/events/%s", deviceID, messageType)
}

func senderFromTopic(deviceID, topic string) string {
	sender := strings.TrimPrefix(topic, commandTopic(deviceID))
	sender = strings.Trim(sender, "/")
	if sender == "" {
		return DefaultSender
	}
	return sender
}
