package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
)

// LoadReported fetches the agent's persisted workspaces whose names appear in
// infosByName, using exactly those names.
func LoadReported(ctx context.Context, repo Repository, agentID string, infosByName map[string]domain.WorkspaceAgentInfo) ([]domain.Workspace, error) {
	if len(infosByName) == 0 {
		return nil, nil
	}
	loaded, err := repo.FindByNames(ctx, agentID, Context{InfosByName: infosByName}.Names())
	if err != nil {
		return nil, fmt.Errorf("find workspaces by name: %w", err)
	}
	return loaded, nil
}

// ApplyActualState loads the agent's workspaces named in infosByName,
// applies each report and saves the result. Records come back ordered by
// ID together with the desired-state transitions made.
func ApplyActualState(ctx context.Context, repo Repository, agent domain.Agent, infosByName map[string]domain.WorkspaceAgentInfo, now time.Time) ([]domain.Workspace, []Transition, error) {
	loaded, err := LoadReported(ctx, repo, agent.ID, infosByName)
	if err != nil {
		return nil, nil, err
	}
	return applyLoaded(ctx, repo, agent, infosByName, loaded, now)
}

// applyLoaded applies reports to records already fetched by LoadReported.
func applyLoaded(ctx context.Context, repo Repository, agent domain.Agent, infosByName map[string]domain.WorkspaceAgentInfo, loaded []domain.Workspace, now time.Time) ([]domain.Workspace, []Transition, error) {
	if len(loaded) == 0 {
		return nil, nil, nil
	}
	loaded = append([]domain.Workspace(nil), loaded...)
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].ID < loaded[j].ID })

	updated := make([]domain.Workspace, 0, len(loaded))
	var transitions []Transition
	for _, ws := range loaded {
		if ws.AgentID != agent.ID {
			return nil, nil, &domain.InvariantViolation{
				Message: fmt.Sprintf("workspace %d belongs to agent %s, not %s", ws.ID, ws.AgentID, agent.ID),
			}
		}
		info, ok := infosByName[ws.Name]
		if !ok {
			return nil, nil, &domain.InvariantViolation{
				Message: fmt.Sprintf("workspace %q was loaded without a matching report", ws.Name),
			}
		}

		next, tr, changed := applyReport(ws, info, now)
		if err := repo.Save(ctx, &next); err != nil {
			return nil, nil, fmt.Errorf("save workspace %q: %w", ws.Name, err)
		}
		if changed {
			transitions = append(transitions, tr)
		}
		updated = append(updated, next)
	}
	return updated, transitions, nil
}

// applyReport is the state machine for one workspace. The restart check runs
// first, then TTL expiry, so an expired workspace ends TERMINATED even when
// its restart completed in the same report.
func applyReport(ws domain.Workspace, info domain.WorkspaceAgentInfo, now time.Time) (domain.Workspace, Transition, bool) {
	from := ws.DesiredState
	reason := TransitionReason("")

	if ws.DesiredState == domain.DesiredStateRestartRequested && info.ActualState == domain.ActualStateStopped {
		ws.DesiredState = domain.DesiredStateRunning
		reason = ReasonRestartCompleted
	}
	if ws.Expired(now) {
		ws.DesiredState = domain.DesiredStateTerminated
		reason = ReasonTTLExpired
	}

	ws.ActualState = info.ActualState
	if v, ok := info.ResourceVersion(); ok {
		ws.DeploymentResourceVersion = &v
	}

	if ws.DesiredState == from {
		return ws, Transition{}, false
	}
	ws.DesiredStateUpdatedAt = now
	return ws, Transition{
		WorkspaceID: ws.ID,
		Name:        ws.Name,
		From:        from,
		To:          ws.DesiredState,
		Reason:      reason,
	}, true
}
