// Package reconcile turns an agent's workspace report into the set of
// workspaces the agent needs to hear about next.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/hooks"
	"github.com/soyeahso/remdev/internal/logging"
)

// Request is a decoded agent poll.
type Request struct {
	Agent      domain.Agent
	UpdateType string
	Infos      []domain.WorkspaceAgentInfo
}

// Stage is one step of the pipeline. It returns an augmented copy of rc.
type Stage func(ctx context.Context, repo Repository, rc Context) (Context, error)

type namedStage struct {
	name string
	run  Stage
}

// Pipeline runs the reconciliation stages for one poll at a time. It holds no
// per-run state and is safe for concurrent use. Hook events are handled in
// the background after Run returns; Wait drains them.
type Pipeline struct {
	tx     Transactor
	log    *logging.Logger
	hooks  *hooks.Manager
	now    func() time.Time
	stages []namedStage

	pending sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHooks emits lifecycle events to m after each committed run.
func WithHooks(m *hooks.Manager) Option {
	return func(p *Pipeline) { p.hooks = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline that runs its storage stages inside tx.
func NewPipeline(tx Transactor, log *logging.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		tx:  tx,
		log: log.Sub("reconcile"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = []namedStage{
		{"load reported workspaces", loadStage},
		{"detect orphans", p.detectOrphans},
		{"apply actual state", applyStage},
		{"select response set", selectStage},
		{"commit watermark", commitStage},
	}
	return p
}

// Decode validates a request and builds the initial context. When a name is
// reported twice the later report wins; the duplicated names are returned.
func Decode(req Request) (Context, []string, error) {
	if req.Agent.ID == "" {
		return Context{}, nil, &domain.ValidationError{Field: "agent", Message: "is required"}
	}
	updateType, err := domain.ParseUpdateType(req.UpdateType)
	if err != nil {
		return Context{}, nil, err
	}

	infos := make(map[string]domain.WorkspaceAgentInfo, len(req.Infos))
	var dups []string
	for i, info := range req.Infos {
		if strings.TrimSpace(info.Name) == "" {
			return Context{}, nil, &domain.ValidationError{
				Field:   fmt.Sprintf("workspaceAgentInfos[%d].name", i),
				Message: "is required",
			}
		}
		if _, seen := infos[info.Name]; seen {
			dups = append(dups, info.Name)
		}
		infos[info.Name] = info
	}

	return Context{
		Agent:       req.Agent,
		UpdateType:  updateType,
		InfosByName: infos,
	}, dups, nil
}

// Run reconciles one poll. Storage stages share one transaction, so on error
// nothing is persisted. Hooks fire only after commit.
func (p *Pipeline) Run(ctx context.Context, req Request) (Context, error) {
	rc, dups, err := Decode(req)
	if err != nil {
		return Context{}, err
	}
	rc.Now = p.now().UTC()

	log := p.log.With("agent", rc.Agent.ID)
	for _, name := range dups {
		log.Warn().Str("workspace", name).Msg("workspace reported more than once, using last report")
	}

	var out Context
	err = p.tx.WithinTx(ctx, func(repo Repository) error {
		cur := rc
		for _, s := range p.stages {
			next, err := s.run(ctx, repo, cur)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			cur = next
		}
		out = cur
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("updateType", string(rc.UpdateType)).Msg("reconciliation failed")
		return Context{}, err
	}

	p.report(ctx, log, out)
	return out, nil
}

func loadStage(ctx context.Context, repo Repository, rc Context) (Context, error) {
	loaded, err := LoadReported(ctx, repo, rc.Agent.ID, rc.InfosByName)
	if err != nil {
		return rc, err
	}
	rc.Persisted = loaded
	return rc, nil
}

// detectOrphans only reports. It works from the records the load stage
// fetched and never fails.
func (p *Pipeline) detectOrphans(_ context.Context, _ Repository, rc Context) (Context, error) {
	if len(rc.InfosByName) == 0 {
		return rc, nil
	}
	persisted := make([]string, len(rc.Persisted))
	for i, ws := range rc.Persisted {
		persisted[i] = ws.Name
	}

	rc.Orphans = DetectOrphans(rc.InfosByName, persisted)
	for _, o := range rc.Orphans {
		p.log.Warn().
			Str("agent", rc.Agent.ID).
			Str("workspace", o.Name).
			Str("namespace", o.Namespace).
			Str("actualState", o.ActualState).
			Msg("agent reported unknown workspace")
	}
	return rc, nil
}

func applyStage(ctx context.Context, repo Repository, rc Context) (Context, error) {
	updated, transitions, err := applyLoaded(ctx, repo, rc.Agent, rc.InfosByName, rc.Persisted, rc.Now)
	if err != nil {
		return rc, err
	}
	rc.WorkspacesFromAgentInfos = updated
	rc.Transitions = transitions
	return rc, nil
}

func selectStage(ctx context.Context, repo Repository, rc Context) (Context, error) {
	selected, err := SelectResponseSet(ctx, repo, rc.Agent, rc.UpdateType, rc.WorkspacesFromAgentInfos)
	if err != nil {
		return rc, err
	}
	rc.WorkspacesToBeReturned = selected
	return rc, nil
}

func commitStage(ctx context.Context, repo Repository, rc Context) (Context, error) {
	ts, err := CommitResponseWatermark(ctx, repo, rc.WorkspacesToBeReturned, rc.Now)
	if err != nil {
		return rc, err
	}
	stamped := make([]domain.Workspace, len(rc.WorkspacesToBeReturned))
	for i, ws := range rc.WorkspacesToBeReturned {
		t := ts
		ws.RespondedToAgentAt = &t
		stamped[i] = ws
	}
	rc.WorkspacesToBeReturned = stamped
	rc.Watermark = ts
	return rc, nil
}

type hookEvent struct {
	name string
	data map[string]any
}

// report logs the outcome of a committed run and hands its hook events to a
// background goroutine, so slow hooks never hold up the agent's poll.
func (p *Pipeline) report(ctx context.Context, log *logging.Logger, rc Context) {
	var events []hookEvent
	for _, tr := range rc.Transitions {
		log.Info().
			Int64("id", tr.WorkspaceID).
			Str("workspace", tr.Name).
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Str("reason", string(tr.Reason)).
			Msg("desired state changed")

		data := map[string]any{
			"agentId":     rc.Agent.ID,
			"workspaceId": tr.WorkspaceID,
			"workspace":   tr.Name,
			"from":        string(tr.From),
			"to":          string(tr.To),
		}
		switch tr.Reason {
		case ReasonRestartCompleted:
			events = append(events, hookEvent{hooks.EventWorkspaceRestarted, data})
		case ReasonTTLExpired:
			events = append(events, hookEvent{hooks.EventWorkspaceTerminated, data})
		}
	}

	for _, o := range rc.Orphans {
		events = append(events, hookEvent{hooks.EventOrphanReported, map[string]any{
			"agentId":     rc.Agent.ID,
			"workspace":   o.Name,
			"namespace":   o.Namespace,
			"actualState": o.ActualState,
		}})
	}

	log.Info().
		Str("updateType", string(rc.UpdateType)).
		Int("reported", len(rc.InfosByName)).
		Int("applied", len(rc.WorkspacesFromAgentInfos)).
		Int("orphans", len(rc.Orphans)).
		Int("returned", len(rc.WorkspacesToBeReturned)).
		Msg("reconciled")

	events = append(events, hookEvent{hooks.EventAgentReconciled, map[string]any{
		"agentId":    rc.Agent.ID,
		"updateType": string(rc.UpdateType),
		"reported":   len(rc.InfosByName),
		"applied":    len(rc.WorkspacesFromAgentInfos),
		"orphans":    len(rc.Orphans),
		"returned":   len(rc.WorkspacesToBeReturned),
	}})

	if p.hooks == nil {
		return
	}
	// The poll's context ends with the request; handlers keep its values only.
	hctx := context.WithoutCancel(ctx)
	p.pending.Go(func() {
		for _, e := range events {
			p.hooks.Emit(hctx, e.name, e.data)
		}
	})
}

// Wait blocks until the hook events of every finished Run have been handled.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}
