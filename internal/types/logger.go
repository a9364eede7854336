package types

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

type logger struct {
}

func NewLogger() MessageHandler {
	return &logger{}
}

func (l *logger) Receive(message Message) {
	b, _ := json.Marshal(message.Message)

	entry := log.WithFields(log.Fields{
		"from": message.From,
		"to":   message.To,
		"id":   message.ID,
	})

	if message.MessageType == MessageTypeMissionProgress {
		entry.Debugf("Message: %s: %s", message.MessageType, string(b))
		return
	}

	entry.Infof("Message: %s: %s", message.MessageType, string(b))
}

func (l *logger) Run(ctx context.Context, wg *sync.WaitGroup, post PostFn) {
}
