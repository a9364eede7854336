package radiolink

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/types"
)

type published struct {
	topic   string
	payload []byte
}

func testLink() (*Link, *[]published, chan func(string, []byte)) {
	l := newLink("drone-1")
	var out []published
	handlers := make(chan func(string, []byte), 1)
	l.publish = func(topic string, payload []byte) {
		out = append(out, published{topic, payload})
	}
	l.subscribe = func(topic string, h func(string, []byte)) error {
		handlers <- h
		return nil
	}
	return l, &out, handlers
}

func TestSenderFromTopic(t *testing.T) {
	tests := []struct {
		topic, want string
	}{
		{"/devices/drone-1/commands/mission/gcs-7", "gcs-7"},
		{"/devices/drone-1/commands/mission/", DefaultSender},
		{"/devices/drone-1/commands/mission", DefaultSender},
	}
	for _, tt := range tests {
		if got := senderFromTopic("drone-1", tt.topic); got != tt.want {
			t.Errorf("senderFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestLink_ForwardsCommands(t *testing.T) {
	l, _, handlers := testLink()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	go l.Run(ctx, &wg, func(types.Message) {})

	var handler func(string, []byte)
	select {
	case handler = <-handlers:
	case <-time.After(time.Second):
		t.Fatalf("link did not subscribe")
	}
	handler("/devices/drone-1/commands/mission/gcs-2", []byte(`{"type":"pause"}`))

	select {
	case msg := <-l.Messages():
		if msg.Sender != "gcs-2" || string(msg.Payload) != `{"type":"pause"}` {
			t.Errorf("unexpected inbound %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("inbound message not delivered")
	}

	cancel()
	wg.Wait()
}

func TestLink_PublishesOutboundOnly(t *testing.T) {
	l, out, _ := testLink()

	l.Receive(types.CreateMessage(types.MessageTypeAck, "drone-1", "gcs", types.NewAck("start")))
	l.Receive(types.CreateMessage(types.MessageTypeMissionPhase, "drone-1", "", types.MissionPhase{Phase: "airborne"}))
	l.Receive(types.CreateMessage("internal", "drone-1", "drone-1", nil))
	l.Receive(types.CreateMessage(types.MessageTypeAck, "drone-2", "gcs", types.NewAck("start")))

	if len(*out) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(*out))
	}
	if (*out)[0].topic != "/devices/drone-1/events/ack" || (*out)[1].topic != "/devices/drone-1/events/mission-phase" {
		t.Errorf("unexpected topics %q %q", (*out)[0].topic, (*out)[1].topic)
	}

	var envelope struct {
		To          string          `json:"to"`
		MessageType string          `json:"message_type"`
		Message     json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal((*out)[0].payload, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.To != "gcs" || envelope.MessageType != "ack" || string(envelope.Message) != `{"type":"ack","ack_type":"start"}` {
		t.Errorf("unexpected envelope %+v %s", envelope, envelope.Message)
	}
}

func TestPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	cfg := Config{DeviceID: "drone-1"}.withDefaults()
	now := time.Now()
	signed, err := password(cfg, keyPEM, now)
	if err != nil {
		t.Fatalf("password: %v", err)
	}

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Audience != DefaultProjectID || claims.IssuedAt != now.Unix() {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := password(Config{Algorithm: "HS256"}, keyPEM, now); !errors.Is(err, mission.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if _, err := password(cfg, []byte("not a key"), now); !errors.Is(err, mission.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestConfig_ClientID(t *testing.T) {
	cfg := Config{DeviceID: "drone-1"}.withDefaults()
	want := "projects/auto-fleet-mgnt/locations/europe-west1/registries/fleet-registry/devices/drone-1"
	if got := cfg.clientID(); got != want {
		t.Errorf("clientID = %q, want %q", got, want)
	}
}
