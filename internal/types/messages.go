package types

// Message types posted on the bus
const (
	MessageTypeAck             = "ack"
	MessageTypeError           = "error"
	MessageTypeMissionPhase    = "mission-phase"
	MessageTypeMissionProgress = "mission-progress"
	MessageTypeMissionPlan     = "mission-plan"
)

// Ack confirms a ground station command.
type Ack struct {
	Type    string `json:"type"`
	AckType string `json:"ack_type"`
}

// Error reports a rejected ground station command.
type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewAck(ackType string) Ack {
	return Ack{Type: MessageTypeAck, AckType: ackType}
}

func NewError(description string) Error {
	return Error{Type: MessageTypeError, Error: description}
}

type MissionPhase struct {
	Phase  string `json:"phase"`
	Detail string `json:"detail,omitempty"`
}

type MissionPlan struct {
	Waypoints int     `json:"waypoints"`
	Commands  int     `json:"commands"`
	Altitude  float64 `json:"altitude"`
}

type MissionProgress struct {
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	Paused   bool            `json:"paused"`
	Position *GlobalPosition `json:"position,omitempty"`
}

type GlobalPosition struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}
