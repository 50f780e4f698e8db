package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/soyeahso/remdev/internal/domain"
)

// AgentStore manages registered agents and their connection tokens. Only a
// hash of each token is stored.
type AgentStore struct {
	db *DB
}

// NewAgentStore creates an agent store using the given database.
func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db}
}

// Register creates an agent and returns it with its plaintext token. The
// token cannot be recovered later.
func (s *AgentStore) Register(ctx context.Context, name string) (domain.Agent, string, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Agent{}, "", &domain.ValidationError{Field: "name", Message: "is required"}
	}

	agent := domain.Agent{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	token := domain.AgentTokenPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO agents (id, name, token_hash, created_at) VALUES (?, ?, ?, ?)`,
		agent.ID, agent.Name, HashToken(token), formatTime(agent.CreatedAt),
	)
	if err != nil {
		return domain.Agent{}, "", classify("register agent", err)
	}

	s.db.log.Info().Str("agent", agent.ID).Str("name", name).Msg("agent registered")
	return agent, token, nil
}

// GetByID returns an agent by ID, or ErrNotFound.
func (s *AgentStore) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	return s.getBy(ctx, "id", id)
}

// GetByName returns an agent by name, or ErrNotFound.
func (s *AgentStore) GetByName(ctx context.Context, name string) (domain.Agent, error) {
	return s.getBy(ctx, "name", name)
}

// Authenticate resolves the agent owning token, or ErrNotFound.
func (s *AgentStore) Authenticate(ctx context.Context, token string) (domain.Agent, error) {
	if !strings.HasPrefix(token, domain.AgentTokenPrefix) {
		return domain.Agent{}, ErrNotFound
	}
	return s.getBy(ctx, "token_hash", HashToken(token))
}

// List returns all agents ordered by name.
func (s *AgentStore) List(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.sql.QueryContext(ctx, `SELECT id, name, created_at FROM agents ORDER BY name`)
	if err != nil {
		return nil, classify("list agents", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt); err != nil {
			return nil, classify("list agents", err)
		}
		if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, classify("list agents", err)
		}
		agents = append(agents, a)
	}
	return agents, classify("list agents", rows.Err())
}

// getBy looks an agent up by one of its unique columns. column is never
// user input.
func (s *AgentStore) getBy(ctx context.Context, column, value string) (domain.Agent, error) {
	var a domain.Agent
	var createdAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM agents WHERE `+column+` = ?`, value,
	).Scan(&a.ID, &a.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Agent{}, ErrNotFound
	}
	if err != nil {
		return domain.Agent{}, classify("get agent", err)
	}
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return domain.Agent{}, classify("get agent", err)
	}
	return a, nil
}

// HashToken returns the hex BLAKE3 digest stored in place of a token.
func HashToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
