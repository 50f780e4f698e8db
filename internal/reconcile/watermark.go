package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
)

// CommitResponseWatermark stamps one responded_to_agent_at value on all of
// workspaces in a single write and returns it. The value is now, or the
// latest existing watermark in the set if that is later, so no watermark
// ever moves backwards. Empty input is a no-op returning the zero time.
func CommitResponseWatermark(ctx context.Context, repo Repository, workspaces []domain.Workspace, now time.Time) (time.Time, error) {
	if len(workspaces) == 0 {
		return time.Time{}, nil
	}

	ts := now
	ids := make([]int64, len(workspaces))
	for i, ws := range workspaces {
		ids[i] = ws.ID
		if ws.RespondedToAgentAt != nil && ws.RespondedToAgentAt.After(ts) {
			ts = *ws.RespondedToAgentAt
		}
	}

	if err := repo.BulkTouchRespondedAt(ctx, ids, ts); err != nil {
		return time.Time{}, fmt.Errorf("stamp response watermark: %w", err)
	}
	return ts, nil
}
