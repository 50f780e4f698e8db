package domain

import (
	"math"
	"strconv"
	"time"
)

// MaxTTLHours is the longest time-to-live a workspace may have. Longer
// values no longer fit in a time.Duration.
const MaxTTLHours = math.MaxInt64 / int64(time.Hour)

// DesiredState is the state the control plane wants a workspace to reach.
type DesiredState string

const (
	DesiredStateRunning          DesiredState = "RUNNING"
	DesiredStateStopped          DesiredState = "STOPPED"
	DesiredStateRestartRequested DesiredState = "RESTART_REQUESTED"
	DesiredStateTerminated       DesiredState = "TERMINATED"
	DesiredStateFailed           DesiredState = "FAILED"
)

// Valid reports whether s is a known desired state.
func (s DesiredState) Valid() bool {
	switch s {
	case DesiredStateRunning, DesiredStateStopped, DesiredStateRestartRequested,
		DesiredStateTerminated, DesiredStateFailed:
		return true
	}
	return false
}

// Actual states as reported by the agent. The agent is trusted verbatim, so
// these are names for the values we read, not a closed set.
const (
	ActualStateCreationRequested = "CREATION_REQUESTED"
	ActualStateStarting          = "STARTING"
	ActualStateRunning           = "RUNNING"
	ActualStateStopping          = "STOPPING"
	ActualStateStopped           = "STOPPED"
	ActualStateTerminating       = "TERMINATING"
	ActualStateFailed            = "FAILED"
	ActualStateError             = "ERROR"
	ActualStateUnknown           = "UNKNOWN"
)

// Workspace is the persisted source of truth for one development workspace.
type Workspace struct {
	ID        int64  `json:"id"`
	AgentID   string `json:"agentId"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Owner     string `json:"owner,omitempty"`

	DesiredState          DesiredState `json:"desiredState"`
	DesiredStateUpdatedAt time.Time    `json:"desiredStateUpdatedAt"`
	ActualState           string       `json:"actualState"`

	// DeploymentResourceVersion is nil until the agent reports one.
	DeploymentResourceVersion *string `json:"deploymentResourceVersion,omitempty"`

	MaxHoursBeforeTermination int `json:"maxHoursBeforeTermination"`

	// RespondedToAgentAt is the watermark of the last response that
	// included this workspace; nil until the first one.
	RespondedToAgentAt *time.Time `json:"respondedToAgentAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TerminatesAt is the moment the workspace's time-to-live runs out.
// Values beyond MaxTTLHours are clamped rather than allowed to wrap.
func (w Workspace) TerminatesAt() time.Time {
	hours := min(int64(w.MaxHoursBeforeTermination), MaxTTLHours)
	return w.CreatedAt.Add(time.Duration(hours) * time.Hour)
}

// Expired reports whether the time-to-live has run out at now.
func (w Workspace) Expired(now time.Time) bool {
	return !now.Before(w.TerminatesAt())
}

// Validate checks the fields storage relies on.
func (w Workspace) Validate() error {
	switch {
	case w.AgentID == "":
		return &ValidationError{Field: "agentId", Message: "is required"}
	case w.Name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case !w.DesiredState.Valid():
		return &ValidationError{Field: "desiredState", Message: "unknown state " + quote(string(w.DesiredState))}
	case w.MaxHoursBeforeTermination <= 0:
		return &ValidationError{Field: "maxHoursBeforeTermination", Message: "must be positive"}
	case int64(w.MaxHoursBeforeTermination) > MaxTTLHours:
		return &ValidationError{
			Field:   "maxHoursBeforeTermination",
			Message: "must be at most " + strconv.FormatInt(MaxTTLHours, 10),
		}
	}
	return nil
}

// WorkspaceAgentInfo is one workspace as reported by an agent in a poll.
// It is never persisted.
type WorkspaceAgentInfo struct {
	Name                      string  `json:"name" yaml:"name"`
	Namespace                 string  `json:"namespace" yaml:"namespace"`
	ActualState               string  `json:"actualState" yaml:"actualState"`
	DeploymentResourceVersion *string `json:"deploymentResourceVersion,omitempty" yaml:"deploymentResourceVersion,omitempty"`
}

// ResourceVersion returns the reported version and whether it is usable.
// An absent or empty version means the agent never obtained one.
func (i WorkspaceAgentInfo) ResourceVersion() (string, bool) {
	if i.DeploymentResourceVersion == nil || *i.DeploymentResourceVersion == "" {
		return "", false
	}
	return *i.DeploymentResourceVersion, true
}
