package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const workspaceColumns = `id, agent_id, name, namespace, owner, desired_state, desired_state_updated_at,
	actual_state, deployment_resource_version, max_hours_before_termination,
	responded_to_agent_at, created_at, updated_at`

// WorkspaceStore persists workspaces. Every agent-facing query is scoped by
// agent ID.
type WorkspaceStore struct {
	db   *DB
	q    querier
	inTx bool
}

// NewWorkspaceStore creates a workspace store using the given database.
func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db, q: db.sql}
}

// WithinTx runs fn against a store bound to a single transaction. The
// transaction commits only if fn returns nil. Nested calls reuse the
// outer transaction.
func (s *WorkspaceStore) WithinTx(ctx context.Context, fn func(*WorkspaceStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&WorkspaceStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// CreateWorkspace inserts a new workspace. Zero-valued desired/actual states
// default to RUNNING / CREATION_REQUESTED; CreatedAt defaults to now.
func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, ws domain.Workspace) (domain.Workspace, error) {
	if ws.DesiredState == "" {
		ws.DesiredState = domain.DesiredStateRunning
	}
	if ws.ActualState == "" {
		ws.ActualState = domain.ActualStateCreationRequested
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now()
	}
	ws.CreatedAt = ws.CreatedAt.UTC()
	ws.DesiredStateUpdatedAt = ws.CreatedAt
	ws.UpdatedAt = ws.CreatedAt
	ws.RespondedToAgentAt = nil
	if err := ws.Validate(); err != nil {
		return domain.Workspace{}, err
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO workspaces (agent_id, name, namespace, owner, desired_state, desired_state_updated_at,
		   actual_state, deployment_resource_version, max_hours_before_termination, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.AgentID, ws.Name, ws.Namespace, ws.Owner, string(ws.DesiredState), formatTime(ws.DesiredStateUpdatedAt),
		ws.ActualState, nullString(ws.DeploymentResourceVersion), ws.MaxHoursBeforeTermination,
		formatTime(ws.CreatedAt), formatTime(ws.UpdatedAt),
	)
	if err != nil {
		return domain.Workspace{}, classify("create workspace", err)
	}
	ws.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Workspace{}, classify("create workspace", err)
	}

	s.db.log.Info().Int64("id", ws.ID).Str("agent", ws.AgentID).Str("name", ws.Name).Msg("workspace created")
	return ws, nil
}

// Get returns a workspace by ID, or ErrNotFound.
func (s *WorkspaceStore) Get(ctx context.Context, id int64) (domain.Workspace, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id)
	ws, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Workspace{}, ErrNotFound
	}
	if err != nil {
		return domain.Workspace{}, classify("get workspace", err)
	}
	return ws, nil
}

// FindByNames loads the agent's workspaces whose name is one of names,
// ordered by ID.
func (s *WorkspaceStore) FindByNames(ctx context.Context, agentID string, names []string) ([]domain.Workspace, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(names)+1)
	args = append(args, agentID)
	for _, n := range names {
		args = append(args, n)
	}
	return s.query(ctx, "find workspaces by name",
		`SELECT `+workspaceColumns+` FROM workspaces
		 WHERE agent_id = ? AND name IN (`+placeholders(len(names))+`)
		 ORDER BY id`, args...)
}

// FindAll returns every workspace of the agent, ordered by ID.
func (s *WorkspaceStore) FindAll(ctx context.Context, agentID string) ([]domain.Workspace, error) {
	return s.query(ctx, "find agent workspaces",
		`SELECT `+workspaceColumns+` FROM workspaces WHERE agent_id = ? ORDER BY id`, agentID)
}

// FindWithDesiredStateUpdatedAfterResponse returns the agent's workspaces
// whose desired state changed after they were last included in a response,
// including those never sent at all.
func (s *WorkspaceStore) FindWithDesiredStateUpdatedAfterResponse(ctx context.Context, agentID string) ([]domain.Workspace, error) {
	return s.query(ctx, "find pending workspaces",
		`SELECT `+workspaceColumns+` FROM workspaces
		 WHERE agent_id = ?
		   AND (responded_to_agent_at IS NULL OR desired_state_updated_at > responded_to_agent_at)
		 ORDER BY id`, agentID)
}

// List returns all workspaces across agents, ordered by ID.
func (s *WorkspaceStore) List(ctx context.Context) ([]domain.Workspace, error) {
	return s.query(ctx, "list workspaces", `SELECT `+workspaceColumns+` FROM workspaces ORDER BY id`)
}

// Save writes the mutable fields of an existing workspace.
func (s *WorkspaceStore) Save(ctx context.Context, ws *domain.Workspace) error {
	if err := ws.Validate(); err != nil {
		return err
	}
	ws.UpdatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`UPDATE workspaces SET
		   namespace = ?, desired_state = ?, desired_state_updated_at = ?, actual_state = ?,
		   deployment_resource_version = ?, updated_at = ?
		 WHERE id = ? AND agent_id = ?`,
		ws.Namespace, string(ws.DesiredState), formatTime(ws.DesiredStateUpdatedAt), ws.ActualState,
		nullString(ws.DeploymentResourceVersion), formatTime(ws.UpdatedAt),
		ws.ID, ws.AgentID,
	)
	if err != nil {
		return classify("save workspace", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("save workspace", err)
	}
	if n == 0 {
		return fmt.Errorf("save workspace %d: %w", ws.ID, ErrNotFound)
	}
	return nil
}

// BulkTouchRespondedAt stamps one watermark on all given workspaces in a
// single statement.
func (s *WorkspaceStore) BulkTouchRespondedAt(ctx context.Context, ids []int64, ts time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, formatTime(ts))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.q.ExecContext(ctx,
		`UPDATE workspaces SET responded_to_agent_at = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return classify("touch responded_to_agent_at", err)
}

// SetDesiredState records a user-requested desired state. The change time is
// only bumped when the state actually changes, so repeated requests do not
// resend the workspace to its agent.
func (s *WorkspaceStore) SetDesiredState(ctx context.Context, id int64, state domain.DesiredState, now time.Time) (domain.Workspace, error) {
	if !state.Valid() {
		return domain.Workspace{}, &domain.ValidationError{Field: "desiredState", Message: "unknown state " + string(state)}
	}
	var out domain.Workspace
	err := s.WithinTx(ctx, func(tx *WorkspaceStore) error {
		ws, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if ws.DesiredState != state {
			ws.DesiredState = state
			ws.DesiredStateUpdatedAt = now.UTC()
			if err := tx.Save(ctx, &ws); err != nil {
				return err
			}
		}
		out = ws
		return nil
	})
	return out, err
}

func (s *WorkspaceStore) query(ctx context.Context, op, query string, args ...any) ([]domain.Workspace, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []domain.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, ws)
	}
	return out, classify(op, rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (domain.Workspace, error) {
	var (
		ws                              domain.Workspace
		desired                         string
		desiredAt, createdAt, updatedAt string
		resourceVersion, respondedAt    sql.NullString
	)
	err := row.Scan(
		&ws.ID, &ws.AgentID, &ws.Name, &ws.Namespace, &ws.Owner, &desired, &desiredAt,
		&ws.ActualState, &resourceVersion, &ws.MaxHoursBeforeTermination,
		&respondedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Workspace{}, err
	}

	ws.DesiredState = domain.DesiredState(desired)
	if ws.DesiredStateUpdatedAt, err = parseTime("desired_state_updated_at", desiredAt); err != nil {
		return domain.Workspace{}, err
	}
	if ws.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return domain.Workspace{}, err
	}
	if ws.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return domain.Workspace{}, err
	}
	if resourceVersion.Valid {
		v := resourceVersion.String
		ws.DeploymentResourceVersion = &v
	}
	if respondedAt.Valid {
		t, err := parseTime("responded_to_agent_at", respondedAt.String)
		if err != nil {
			return domain.Workspace{}, err
		}
		ws.RespondedToAgentAt = &t
	}
	return ws, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
