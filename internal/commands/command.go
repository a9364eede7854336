package commands

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/tiiuae/quickscan/internal/mission"
)

// Kind tags a decoded ground station command.
type Kind int

const (
	KindInvalid Kind = iota
	KindStart
	KindPause
	KindResume
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindPause:
		return "pause"
	case KindResume:
		return "resume"
	case KindStop:
		return "stop"
	}
	return "invalid"
}

// Command is a decoded inbound message. For KindInvalid, Reason holds the
// error text sent back to the sender.
type Command struct {
	Kind       Kind
	Type       string
	SearchArea mission.SearchArea
	Reason     string
}

type rawSearchArea struct {
	Center json.RawMessage `json:"center"`
	Rad1   json.RawMessage `json:"rad1"`
	Rad2   json.RawMessage `json:"rad2"`
}

// Decode parses an inbound payload. The returned error is non-nil only for
// payloads that are not valid JSON; every other problem yields a KindInvalid
// command.
func Decode(payload []byte) (Command, error) {
	if !json.Valid(payload) {
		return Command{}, errors.WithMessage(mission.ErrProtocol, "malformed JSON payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return invalid("", "Message must be a JSON object"), nil
	}

	rawType, ok := fields["type"]
	if !ok {
		return invalid("", missingKey("type")), nil
	}
	var msgType string
	if err := json.Unmarshal(rawType, &msgType); err != nil {
		return invalid("", invalidValue("type")), nil
	}

	switch msgType {
	case "start":
		return decodeStart(fields)
	case "pause":
		return Command{Kind: KindPause, Type: msgType}, nil
	case "resume":
		return Command{Kind: KindResume, Type: msgType}, nil
	case "stop":
		return Command{Kind: KindStop, Type: msgType}, nil
	}
	return invalid(msgType, fmt.Sprintf("Unknown message type: '%s'", msgType)), nil
}

func decodeStart(fields map[string]json.RawMessage) (Command, error) {
	const msgType = "start"

	rawArea, ok := fields["searchArea"]
	if !ok || isNull(rawArea) {
		return invalid(msgType, missingKey("searchArea")), nil
	}

	var area rawSearchArea
	if err := json.Unmarshal(rawArea, &area); err != nil {
		return invalid(msgType, invalidValue("searchArea")), nil
	}
	if isNull(area.Center) {
		return invalid(msgType, missingKey("center")), nil
	}
	if isNull(area.Rad1) {
		return invalid(msgType, missingKey("rad1")), nil
	}
	if isNull(area.Rad2) {
		return invalid(msgType, missingKey("rad2")), nil
	}

	var center []float64
	if err := json.Unmarshal(area.Center, &center); err != nil || len(center) != 2 {
		return invalid(msgType, invalidValue("center")), nil
	}
	lat, lon := center[0], center[1]
	if !finite(lat) || lat < -90 || lat > 90 || !finite(lon) || lon < -180 || lon > 180 {
		return invalid(msgType, invalidValue("center")), nil
	}

	rad1, ok := decodeRadius(area.Rad1)
	if !ok {
		return invalid(msgType, invalidValue("rad1")), nil
	}
	rad2, ok := decodeRadius(area.Rad2)
	if !ok {
		return invalid(msgType, invalidValue("rad2")), nil
	}

	return Command{
		Kind:       KindStart,
		Type:       msgType,
		SearchArea: mission.NewSearchArea(mission.LatLon{Lat: lat, Lon: lon}, rad1, rad2),
	}, nil
}

func decodeRadius(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func invalid(msgType, reason string) Command {
	return Command{Kind: KindInvalid, Type: msgType, Reason: reason}
}

func missingKey(key string) string {
	return fmt.Sprintf("Missing '%s' key", key)
}

func invalidValue(key string) string {
	return fmt.Sprintf("Invalid '%s' value", key)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
