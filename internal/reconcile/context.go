package reconcile

import (
	"sort"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
)

// Context is the value threaded through the pipeline. Stages receive it by
// value and return an augmented copy; they never modify slices or maps they
// were handed.
type Context struct {
	Agent       domain.Agent
	UpdateType  domain.UpdateType
	InfosByName map[string]domain.WorkspaceAgentInfo

	// Now is read once per run so every stage agrees on the time.
	Now time.Time

	// Persisted are the agent's stored workspaces named in the batch, as
	// loaded before any report is applied.
	Persisted []domain.Workspace

	// Orphans are reports with no persisted workspace, sorted by name.
	Orphans []domain.WorkspaceAgentInfo

	// WorkspacesFromAgentInfos are the records updated from this batch.
	WorkspacesFromAgentInfos []domain.Workspace
	Transitions              []Transition

	// WorkspacesToBeReturned is what the agent is told, ordered by ID.
	WorkspacesToBeReturned []domain.Workspace

	// Watermark is the responded_to_agent_at value stamped on
	// WorkspacesToBeReturned; zero if nothing was returned.
	Watermark time.Time
}

// Names returns the reported workspace names in sorted order.
func (c Context) Names() []string {
	names := make([]string, 0, len(c.InfosByName))
	for name := range c.InfosByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransitionReason names why the desired state changed.
type TransitionReason string

const (
	ReasonRestartCompleted TransitionReason = "restart_completed"
	ReasonTTLExpired       TransitionReason = "ttl_expired"
)

// Transition records one desired-state change made while applying a report.
type Transition struct {
	WorkspaceID int64
	Name        string
	From        domain.DesiredState
	To          domain.DesiredState
	Reason      TransitionReason
}
