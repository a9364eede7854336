package mission

import "github.com/pkg/errors"

// Error classes shared by the intake, planner and supervisor. Callers wrap
// them with context and match with errors.Is.
var (
	// ErrProtocol marks a malformed or incomplete inbound message.
	ErrProtocol = errors.New("protocol error")
	// ErrConfiguration marks an unsupported or invalid mission configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrCollaborator marks a failure of the vehicle or communication layer.
	ErrCollaborator = errors.New("collaborator error")
)
