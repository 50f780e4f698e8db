package domain

import "time"

// AgentTokenPrefix marks agent tokens so they are recognisable in config
// and logs.
const AgentTokenPrefix = "rdv_"

// Agent is a remote, per-cluster component that drives workspace
// infrastructure and periodically reports workspace status.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpdateType selects how much of the agent's view a poll resynchronises.
type UpdateType string

const (
	// UpdateTypeFull asks for every workspace of the agent (reconnect, reseed).
	UpdateTypeFull UpdateType = "FULL"
	// UpdateTypePartial asks only for what changed since the last response.
	UpdateTypePartial UpdateType = "PARTIAL"
)

// ParseUpdateType validates a wire value. Matching is case-sensitive.
func ParseUpdateType(s string) (UpdateType, error) {
	switch UpdateType(s) {
	case UpdateTypeFull, UpdateTypePartial:
		return UpdateType(s), nil
	default:
		return "", &ValidationError{Field: "updateType", Message: "must be FULL or PARTIAL, got " + quote(s)}
	}
}
