package reconcile

import (
	"context"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks github.com/soyeahso/remdev/internal/reconcile Repository

// Repository is the storage the pipeline reads and writes. Every lookup is
// scoped to one agent.
type Repository interface {
	FindByNames(ctx context.Context, agentID string, names []string) ([]domain.Workspace, error)
	FindAll(ctx context.Context, agentID string) ([]domain.Workspace, error)
	FindWithDesiredStateUpdatedAfterResponse(ctx context.Context, agentID string) ([]domain.Workspace, error)
	BulkTouchRespondedAt(ctx context.Context, ids []int64, ts time.Time) error
	Save(ctx context.Context, ws *domain.Workspace) error
}

// Transactor runs fn against a Repository bound to one transaction. The
// transaction commits only if fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repository) error) error
}

// TransactorFunc adapts a function to Transactor.
type TransactorFunc func(ctx context.Context, fn func(Repository) error) error

// WithinTx calls f.
func (f TransactorFunc) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return f(ctx, fn)
}

// Transactional adapts a store's typed WithinTx method, e.g.
// Transactional(workspaces.WithinTx).
func Transactional[R Repository](within func(context.Context, func(R) error) error) Transactor {
	return TransactorFunc(func(ctx context.Context, fn func(Repository) error) error {
		return within(ctx, func(r R) error { return fn(r) })
	})
}

// Direct runs every call straight against repo with no transaction.
func Direct(repo Repository) Transactor {
	return TransactorFunc(func(_ context.Context, fn func(Repository) error) error {
		return fn(repo)
	})
}
