package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/reconcile/mocks"
)

var (
	testNow   = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	testAgent = domain.Agent{ID: "agent-1", Name: "cluster-a"}
)

func strp(s string) *string { return &s }

func workspace(id int64, name string, desired domain.DesiredState) domain.Workspace {
	return domain.Workspace{
		ID:                        id,
		AgentID:                   testAgent.ID,
		Name:                      name,
		Namespace:                 "ns-" + name,
		DesiredState:              desired,
		DesiredStateUpdatedAt:     testNow.Add(-2 * time.Hour),
		ActualState:               domain.ActualStateRunning,
		MaxHoursBeforeTermination: 24,
		CreatedAt:                 testNow.Add(-3 * time.Hour),
	}
}

func info(name, actual string) domain.WorkspaceAgentInfo {
	return domain.WorkspaceAgentInfo{Name: name, Namespace: "ns-" + name, ActualState: actual}
}

// --- DetectOrphans ---

func TestDetectOrphans(t *testing.T) {
	infos := map[string]domain.WorkspaceAgentInfo{
		"A": info("A", domain.ActualStateRunning),
		"B": info("B", domain.ActualStateRunning),
	}
	orphans := DetectOrphans(infos, []string{"A"})
	require.Len(t, orphans, 1)
	assert.Equal(t, "B", orphans[0].Name)
}

func TestDetectOrphans_SortedAndEmpty(t *testing.T) {
	infos := map[string]domain.WorkspaceAgentInfo{
		"zeta":  info("zeta", ""),
		"alpha": info("alpha", ""),
		"mid":   info("mid", ""),
	}
	orphans := DetectOrphans(infos, nil)
	require.Len(t, orphans, 3)
	assert.Equal(t, "alpha", orphans[0].Name)
	assert.Equal(t, "mid", orphans[1].Name)
	assert.Equal(t, "zeta", orphans[2].Name)

	assert.Empty(t, DetectOrphans(infos, []string{"alpha", "mid", "zeta"}))
	assert.Empty(t, DetectOrphans(nil, []string{"alpha"}))
}

// --- applyReport ---

func TestApplyReport_RestartCompletes(t *testing.T) {
	ws := workspace(1, "ws", domain.DesiredStateRestartRequested)
	got, tr, changed := applyReport(ws, info("ws", domain.ActualStateStopped), testNow)

	assert.Equal(t, domain.DesiredStateRunning, got.DesiredState)
	assert.Equal(t, domain.ActualStateStopped, got.ActualState)
	assert.True(t, got.DesiredStateUpdatedAt.Equal(testNow))
	require.True(t, changed)
	assert.Equal(t, ReasonRestartCompleted, tr.Reason)
	assert.Equal(t, domain.DesiredStateRestartRequested, tr.From)
	assert.Equal(t, domain.DesiredStateRunning, tr.To)
}

func TestApplyReport_RestartWaitsForStopped(t *testing.T) {
	ws := workspace(1, "ws", domain.DesiredStateRestartRequested)
	got, _, changed := applyReport(ws, info("ws", domain.ActualStateRunning), testNow)

	assert.Equal(t, domain.DesiredStateRestartRequested, got.DesiredState)
	assert.Equal(t, domain.ActualStateRunning, got.ActualState)
	assert.False(t, changed)
	assert.True(t, got.DesiredStateUpdatedAt.Equal(ws.DesiredStateUpdatedAt))
}

func TestApplyReport_StoppedOnlyMattersForRestart(t *testing.T) {
	ws := workspace(1, "ws", domain.DesiredStateRunning)
	got, _, changed := applyReport(ws, info("ws", domain.ActualStateStopped), testNow)
	assert.Equal(t, domain.DesiredStateRunning, got.DesiredState)
	assert.False(t, changed)
}

func TestApplyReport_TTLExpiry(t *testing.T) {
	for _, actual := range []string{domain.ActualStateRunning, domain.ActualStateStopped, domain.ActualStateError, "anything"} {
		ws := workspace(1, "ws", domain.DesiredStateRunning)
		ws.CreatedAt = testNow.Add(-time.Duration(ws.MaxHoursBeforeTermination+1) * time.Hour)

		got, tr, changed := applyReport(ws, info("ws", actual), testNow)
		assert.Equal(t, domain.DesiredStateTerminated, got.DesiredState, "actual %s", actual)
		assert.Equal(t, actual, got.ActualState)
		require.True(t, changed)
		assert.Equal(t, ReasonTTLExpired, tr.Reason)
	}
}

func TestApplyReport_TTLBoundaryIsInclusive(t *testing.T) {
	ws := workspace(1, "ws", domain.DesiredStateStopped)
	ws.CreatedAt = testNow.Add(-24 * time.Hour)

	got, _, _ := applyReport(ws, info("ws", domain.ActualStateStopped), testNow)
	assert.Equal(t, domain.DesiredStateTerminated, got.DesiredState)

	got, _, _ = applyReport(ws, info("ws", domain.ActualStateStopped), testNow.Add(-time.Nanosecond))
	assert.Equal(t, domain.DesiredStateStopped, got.DesiredState)
}

func TestApplyReport_TTLWinsOverRestart(t *testing.T) {
	ws := workspace(1, "ws", domain.DesiredStateRestartRequested)
	ws.CreatedAt = testNow.Add(-48 * time.Hour)

	got, tr, changed := applyReport(ws, info("ws", domain.ActualStateStopped), testNow)
	assert.Equal(t, domain.DesiredStateTerminated, got.DesiredState)
	require.True(t, changed)
	assert.Equal(t, ReasonTTLExpired, tr.Reason)
	assert.Equal(t, domain.DesiredStateRestartRequested, tr.From)
}

func TestApplyReport_ResourceVersion(t *testing.T) {
	tests := []struct {
		name     string
		reported *string
		want     string
	}{
		{"absent keeps previous", nil, "41"},
		{"empty keeps previous", strp(""), "41"},
		{"non-empty overwrites", strp("42"), "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := workspace(1, "ws", domain.DesiredStateRunning)
			ws.DeploymentResourceVersion = strp("41")
			in := info("ws", domain.ActualStateRunning)
			in.DeploymentResourceVersion = tt.reported

			got, _, _ := applyReport(ws, in, testNow)
			require.NotNil(t, got.DeploymentResourceVersion)
			assert.Equal(t, tt.want, *got.DeploymentResourceVersion)
		})
	}

	ws := workspace(1, "ws", domain.DesiredStateRunning)
	got, _, _ := applyReport(ws, info("ws", domain.ActualStateFailed), testNow)
	assert.Nil(t, got.DeploymentResourceVersion)
}

func TestApplyReport_Idempotent(t *testing.T) {
	cases := []domain.Workspace{
		workspace(1, "restart", domain.DesiredStateRestartRequested),
		func() domain.Workspace {
			ws := workspace(2, "expired", domain.DesiredStateRunning)
			ws.CreatedAt = testNow.Add(-100 * time.Hour)
			return ws
		}(),
	}
	for _, ws := range cases {
		in := info(ws.Name, domain.ActualStateStopped)
		in.DeploymentResourceVersion = strp("9")

		first, _, _ := applyReport(ws, in, testNow)
		second, _, changed := applyReport(first, in, testNow)

		assert.False(t, changed, ws.Name)
		assert.Equal(t, first, second, ws.Name)
	}
}

// --- ApplyActualState ---

func TestApplyActualState_SavesEveryLoadedWorkspace(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	ctx := context.Background()

	a := workspace(1, "a", domain.DesiredStateRestartRequested)
	b := workspace(2, "b", domain.DesiredStateRunning)
	infos := map[string]domain.WorkspaceAgentInfo{
		"b": info("b", domain.ActualStateStarting),
		"a": info("a", domain.ActualStateStopped),
		"x": info("x", domain.ActualStateRunning),
	}

	repo.EXPECT().FindByNames(gomock.Any(), testAgent.ID, []string{"a", "b", "x"}).Return([]domain.Workspace{b, a}, nil)
	var saved []string
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ws *domain.Workspace) error {
		saved = append(saved, ws.Name)
		return nil
	}).Times(2)

	updated, transitions, err := ApplyActualState(ctx, repo, testAgent, infos, testNow)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, []string{"a", "b"}, saved, "saved in ID order")
	assert.Equal(t, domain.DesiredStateRunning, updated[0].DesiredState)
	assert.Equal(t, domain.ActualStateStarting, updated[1].ActualState)
	require.Len(t, transitions, 1)
	assert.Equal(t, int64(1), transitions[0].WorkspaceID)
}

func TestApplyActualState_EmptyBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	updated, transitions, err := ApplyActualState(context.Background(), repo, testAgent, nil, testNow)
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Empty(t, transitions)
}

func TestApplyActualState_LoadedWithoutReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().FindByNames(gomock.Any(), testAgent.ID, gomock.Any()).
		Return([]domain.Workspace{workspace(7, "stranger", domain.DesiredStateRunning)}, nil)

	_, _, err := ApplyActualState(context.Background(), repo, testAgent,
		map[string]domain.WorkspaceAgentInfo{"a": info("a", domain.ActualStateRunning)}, testNow)
	var iv *domain.InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Contains(t, iv.Message, "stranger")
}

func TestApplyActualState_ForeignAgent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	other := workspace(7, "a", domain.DesiredStateRunning)
	other.AgentID = "agent-2"
	repo.EXPECT().FindByNames(gomock.Any(), testAgent.ID, gomock.Any()).Return([]domain.Workspace{other}, nil)

	_, _, err := ApplyActualState(context.Background(), repo, testAgent,
		map[string]domain.WorkspaceAgentInfo{"a": info("a", domain.ActualStateRunning)}, testNow)
	var iv *domain.InvariantViolation
	require.ErrorAs(t, err, &iv)
}

func TestApplyActualState_SaveFailureAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().FindByNames(gomock.Any(), testAgent.ID, gomock.Any()).Return([]domain.Workspace{
		workspace(1, "a", domain.DesiredStateRunning),
		workspace(2, "b", domain.DesiredStateRunning),
	}, nil)
	busy := &domain.TransientStorageError{Op: "save workspace", Err: errors.New("database is locked")}
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(busy)

	infos := map[string]domain.WorkspaceAgentInfo{
		"a": info("a", domain.ActualStateRunning),
		"b": info("b", domain.ActualStateRunning),
	}
	_, _, err := ApplyActualState(context.Background(), repo, testAgent, infos, testNow)
	var te *domain.TransientStorageError
	require.ErrorAs(t, err, &te)
}

func TestApplyActualState_LoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().FindByNames(gomock.Any(), testAgent.ID, gomock.Any()).Return(nil, errors.New("disk I/O error"))

	_, _, err := ApplyActualState(context.Background(), repo, testAgent,
		map[string]domain.WorkspaceAgentInfo{"a": info("a", domain.ActualStateRunning)}, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

// --- SelectResponseSet ---

func TestSelectResponseSet_Full(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	w1 := workspace(1, "w1", domain.DesiredStateRunning)
	w2 := workspace(2, "w2", domain.DesiredStateRunning)
	w3 := workspace(3, "w3", domain.DesiredStateStopped)
	repo.EXPECT().FindAll(gomock.Any(), testAgent.ID).Return([]domain.Workspace{w3, w1, w2}, nil)

	got, err := SelectResponseSet(context.Background(), repo, testAgent, domain.UpdateTypeFull, []domain.Workspace{w1})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestSelectResponseSet_Partial(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	w1 := workspace(1, "w1", domain.DesiredStateRunning)
	w1.ActualState = domain.ActualStateStopped
	w2 := workspace(2, "w2", domain.DesiredStateStopped)
	stale := w1
	stale.ActualState = domain.ActualStateRunning
	repo.EXPECT().FindWithDesiredStateUpdatedAfterResponse(gomock.Any(), testAgent.ID).
		Return([]domain.Workspace{w2, stale}, nil)

	got, err := SelectResponseSet(context.Background(), repo, testAgent, domain.UpdateTypePartial, []domain.Workspace{w1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, domain.ActualStateStopped, got[0].ActualState, "batch copy wins over the re-read")
	assert.Equal(t, int64(2), got[1].ID)
}

func TestSelectResponseSet_NoWorkspaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().FindAll(gomock.Any(), testAgent.ID).Return(nil, nil)
	repo.EXPECT().FindWithDesiredStateUpdatedAfterResponse(gomock.Any(), testAgent.ID).Return(nil, nil)

	got, err := SelectResponseSet(context.Background(), repo, testAgent, domain.UpdateTypeFull, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = SelectResponseSet(context.Background(), repo, testAgent, domain.UpdateTypePartial, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectResponseSet_UnknownType(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	_, err := SelectResponseSet(context.Background(), repo, testAgent, "DELTA", nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

// --- CommitResponseWatermark ---

func TestCommitResponseWatermark_SingleBulkWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	earlier := testNow.Add(-time.Hour)
	w1 := workspace(1, "w1", domain.DesiredStateRunning)
	w1.RespondedToAgentAt = &earlier
	w2 := workspace(2, "w2", domain.DesiredStateRunning)

	repo.EXPECT().BulkTouchRespondedAt(gomock.Any(), []int64{1, 2}, testNow).Return(nil).Times(1)

	ts, err := CommitResponseWatermark(context.Background(), repo, []domain.Workspace{w1, w2}, testNow)
	require.NoError(t, err)
	assert.True(t, ts.Equal(testNow))
}

func TestCommitResponseWatermark_NeverMovesBackwards(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	future := testNow.Add(time.Minute)
	w1 := workspace(1, "w1", domain.DesiredStateRunning)
	w1.RespondedToAgentAt = &future
	w2 := workspace(2, "w2", domain.DesiredStateRunning)

	repo.EXPECT().BulkTouchRespondedAt(gomock.Any(), []int64{1, 2}, future).Return(nil)

	ts, err := CommitResponseWatermark(context.Background(), repo, []domain.Workspace{w1, w2}, testNow)
	require.NoError(t, err)
	assert.True(t, ts.Equal(future))
}

func TestCommitResponseWatermark_EmptyIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	ts, err := CommitResponseWatermark(context.Background(), repo, nil, testNow)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestCommitResponseWatermark_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().BulkTouchRespondedAt(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.TransientStorageError{Op: "touch", Err: context.DeadlineExceeded})

	_, err := CommitResponseWatermark(context.Background(), repo, []domain.Workspace{workspace(1, "w1", domain.DesiredStateRunning)}, testNow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Decode ---

func TestDecode(t *testing.T) {
	rc, dups, err := Decode(Request{
		Agent:      testAgent,
		UpdateType: "PARTIAL",
		Infos: []domain.WorkspaceAgentInfo{
			info("a", domain.ActualStateStarting),
			info("b", domain.ActualStateRunning),
			info("a", domain.ActualStateRunning),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UpdateTypePartial, rc.UpdateType)
	assert.Equal(t, []string{"a"}, dups)
	assert.Equal(t, []string{"a", "b"}, rc.Names())
	assert.Equal(t, domain.ActualStateRunning, rc.InfosByName["a"].ActualState, "last report wins")
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"lowercase update type", Request{Agent: testAgent, UpdateType: "full"}, "updateType"},
		{"missing update type", Request{Agent: testAgent}, "updateType"},
		{"missing agent", Request{UpdateType: "FULL"}, "agent"},
		{"blank name", Request{Agent: testAgent, UpdateType: "FULL", Infos: []domain.WorkspaceAgentInfo{{Name: " "}}}, "workspaceAgentInfos[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
