package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/soyeahso/remdev/internal/domain"
)

// SelectResponseSet decides which workspaces the agent is told about. FULL
// returns all of the agent's workspaces. PARTIAL returns those whose desired
// state changed since they were last sent, plus everything just reported.
// The result is ordered by ID.
func SelectResponseSet(ctx context.Context, repo Repository, agent domain.Agent, updateType domain.UpdateType, fromInfos []domain.Workspace) ([]domain.Workspace, error) {
	switch updateType {
	case domain.UpdateTypeFull:
		all, err := repo.FindAll(ctx, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("load agent workspaces: %w", err)
		}
		return sortByID(all), nil

	case domain.UpdateTypePartial:
		pending, err := repo.FindWithDesiredStateUpdatedAfterResponse(ctx, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("load pending workspaces: %w", err)
		}
		byID := make(map[int64]domain.Workspace, len(pending)+len(fromInfos))
		for _, ws := range pending {
			byID[ws.ID] = ws
		}
		for _, ws := range fromInfos {
			byID[ws.ID] = ws
		}
		out := make([]domain.Workspace, 0, len(byID))
		for _, ws := range byID {
			out = append(out, ws)
		}
		return sortByID(out), nil
	}
	return nil, &domain.ValidationError{Field: "updateType", Message: "unknown update type " + string(updateType)}
}

func sortByID(in []domain.Workspace) []domain.Workspace {
	out := append([]domain.Workspace(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
