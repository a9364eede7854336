package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/types"
)

type outbox struct {
	mu   sync.Mutex
	msgs []types.Message
}

func (o *outbox) post(msg types.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) all() []types.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]types.Message(nil), o.msgs...)
}

func newIntake() (*Intake, *mission.State, *outbox) {
	state := mission.NewState()
	out := &outbox{}
	return New(state, "drone-1", out.post), state, out
}

func TestHandle_Start(t *testing.T) {
	in, state, out := newIntake()

	payload := `{"type":"start","searchArea":{"center":[60.1,24.9],"rad1":5,"rad2":30}}`
	if err := in.Handle(Inbound{Sender: "gcs", Payload: []byte(payload)}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !state.IsStartRequested() {
		t.Fatalf("expected start requested")
	}
	area, ok := state.SearchArea()
	if !ok {
		t.Fatalf("expected search area")
	}
	want := mission.NewSearchArea(mission.LatLon{Lat: 60.1, Lon: 24.9}, 5, 30)
	if area != want {
		t.Errorf("search area: got %+v, want %+v", area, want)
	}

	msgs := out.all()
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %d", len(msgs))
	}
	assertAck(t, msgs[0], "gcs", "start")
}

func TestHandle_MissingSearchArea(t *testing.T) {
	in, state, out := newIntake()

	if err := in.Handle(Inbound{Sender: "gcs", Payload: []byte(`{"type":"start"}`)}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if state.IsStartRequested() {
		t.Errorf("start must not be requested")
	}
	if _, ok := state.SearchArea(); ok {
		t.Errorf("search area must not be set")
	}

	msgs := out.all()
	if len(msgs) != 1 {
		t.Fatalf("expected one reply, got %d", len(msgs))
	}
	assertError(t, msgs[0], "gcs", "Missing 'searchArea' key")
}

func TestHandle_Replies(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ack     string
		err     string
	}{
		{"pause", `{"type":"pause"}`, "pause", ""},
		{"resume", `{"type":"resume"}`, "resume", ""},
		{"stop", `{"type":"stop"}`, "stop", ""},
		{"unknown type", `{"type":"dance"}`, "", "Unknown message type: 'dance'"},
		{"missing type", `{"searchArea":{}}`, "", "Missing 'type' key"},
		{"non string type", `{"type":7}`, "", "Invalid 'type' value"},
		{"not an object", `[1,2]`, "", "Message must be a JSON object"},
		{"missing center", `{"type":"start","searchArea":{"rad1":1,"rad2":2}}`, "", "Missing 'center' key"},
		{"missing rad1", `{"type":"start","searchArea":{"center":[1,2],"rad2":2}}`, "", "Missing 'rad1' key"},
		{"missing rad2", `{"type":"start","searchArea":{"center":[1,2],"rad1":1}}`, "", "Missing 'rad2' key"},
		{"short center", `{"type":"start","searchArea":{"center":[1],"rad1":1,"rad2":2}}`, "", "Invalid 'center' value"},
		{"latitude out of range", `{"type":"start","searchArea":{"center":[91,2],"rad1":1,"rad2":2}}`, "", "Invalid 'center' value"},
		{"radius not a number", `{"type":"start","searchArea":{"center":[1,2],"rad1":1,"rad2":"far"}}`, "", "Invalid 'rad2' value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _, out := newIntake()
			if err := in.Handle(Inbound{Sender: "gcs-2", Payload: []byte(tt.payload)}); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			msgs := out.all()
			if len(msgs) != 1 {
				t.Fatalf("expected exactly one reply, got %d", len(msgs))
			}
			if tt.ack != "" {
				assertAck(t, msgs[0], "gcs-2", tt.ack)
			} else {
				assertError(t, msgs[0], "gcs-2", tt.err)
			}
		})
	}
}

func TestHandle_PauseResumeStop(t *testing.T) {
	in, state, _ := newIntake()

	handle := func(payload string) {
		t.Helper()
		if err := in.Handle(Inbound{Sender: "gcs", Payload: []byte(payload)}); err != nil {
			t.Fatalf("Handle(%s): %v", payload, err)
		}
	}

	handle(`{"type":"pause"}`)
	if !state.IsPauseRequested() {
		t.Errorf("expected pause")
	}
	handle(`{"type":"resume"}`)
	if state.IsPauseRequested() {
		t.Errorf("expected resume to clear pause")
	}
	handle(`{"type":"stop"}`)
	handle(`{"type":"resume"}`)
	if !state.IsStopRequested() {
		t.Errorf("expected stop to stick")
	}
}

func TestHandle_DuplicateStart(t *testing.T) {
	in, state, out := newIntake()

	first := `{"type":"start","searchArea":{"center":[1,2],"rad1":1,"rad2":20}}`
	second := `{"type":"start","searchArea":{"center":[3,4],"rad1":1,"rad2":99}}`
	for _, p := range []string{first, second} {
		if err := in.Handle(Inbound{Sender: "gcs", Payload: []byte(p)}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	area, _ := state.SearchArea()
	if area.Rad2 != 20 || area.Center.Lat != 1 {
		t.Errorf("duplicate start replaced the search area: %+v", area)
	}

	msgs := out.all()
	if len(msgs) != 2 {
		t.Fatalf("expected two replies, got %d", len(msgs))
	}
	assertAck(t, msgs[0], "gcs", "start")
	assertError(t, msgs[1], "gcs", "Mission already started")
}

func TestHandle_MalformedJSON(t *testing.T) {
	in, state, out := newIntake()

	err := in.Handle(Inbound{Sender: "gcs", Payload: []byte(`{"type":`)})
	if !errors.Is(err, mission.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if len(out.all()) != 0 {
		t.Errorf("malformed JSON must not be answered")
	}
	if snap := state.Snapshot(); snap.StartRequested || snap.PauseRequested || snap.StopRequested {
		t.Errorf("state mutated: %+v", snap)
	}
}

func TestRun_DrainsUntilClosed(t *testing.T) {
	in, state, out := newIntake()

	inbound := make(chan Inbound, 3)
	inbound <- Inbound{Sender: "gcs", Payload: []byte(`{"type":"pause"}`)}
	inbound <- Inbound{Sender: "gcs", Payload: []byte(`not json`)}
	inbound <- Inbound{Sender: "gcs", Payload: []byte(`{"type":"stop"}`)}
	close(inbound)

	done := make(chan error, 1)
	go func() { done <- in.Run(context.Background(), inbound) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after the channel closed")
	}

	if !state.IsStopRequested() || !state.IsPauseRequested() {
		t.Errorf("unexpected state: %+v", state.Snapshot())
	}
	if n := len(out.all()); n != 2 {
		t.Errorf("expected 2 replies, got %d", n)
	}
}

func assertAck(t *testing.T, msg types.Message, to, ackType string) {
	t.Helper()
	if msg.MessageType != types.MessageTypeAck || msg.To != to || msg.From != "drone-1" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	ack, ok := msg.Message.(types.Ack)
	if !ok || ack.Type != "ack" || ack.AckType != ackType {
		t.Fatalf("unexpected ack payload: %#v", msg.Message)
	}
}

func assertError(t *testing.T, msg types.Message, to, description string) {
	t.Helper()
	if msg.MessageType != types.MessageTypeError || msg.To != to {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	e, ok := msg.Message.(types.Error)
	if !ok || e.Type != "error" || e.Error != description {
		t.Fatalf("unexpected error payload: %#v, want %q", msg.Message, description)
	}
}
