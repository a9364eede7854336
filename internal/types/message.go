package types

import (
	"time"

	"github.com/google/uuid"
)

// Message is the envelope for everything travelling on the message bus and
// over the ground link.
type Message struct {
	Timestamp   time.Time   `json:"timestamp"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	ID          string      `json:"id"`
	MessageType string      `json:"message_type"`
	Message     interface{} `json:"message"`
}

// Replace returns a copy of the envelope carrying v as payload.
func (message *Message) Replace(v interface{}) Message {
	return Message{
		message.Timestamp,
		message.From,
		message.To,
		message.ID,
		message.MessageType,
		v,
	}
}

// Broadcast reports whether the message is not addressed to a single peer.
func (message *Message) Broadcast() bool {
	return message.To == ""
}

func CreateMessage(messageType, from, to string, message interface{}) Message {
	return Message{
		time.Now().UTC(),
		from,
		to,
		uuid.New().String(),
		messageType,
		message,
	}
}
