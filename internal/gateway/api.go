package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/remdev/internal/domain"
)

const defaultAPIBasePath = "/api/v1"

// maxAPIBody caps a REST poll body at the WebSocket payload limit.
const maxAPIBody = 4 * 1024 * 1024

type agentKey struct{}

func withAgent(ctx context.Context, a domain.Agent) context.Context {
	return context.WithValue(ctx, agentKey{}, a)
}

func agentFromContext(ctx context.Context) (domain.Agent, bool) {
	a, ok := ctx.Value(agentKey{}).(domain.Agent)
	return a, ok
}

// apiError is the REST error body.
type apiError struct {
	Error ErrorShape `json:"error"`
}

func (s *Server) apiBasePath() string {
	if s.cfg.Gateway.API.BasePath == "" {
		return defaultAPIBasePath
	}
	return s.cfg.Gateway.API.BasePath
}

// apiRouter builds the REST agent API. Paths are relative to the base path.
func (s *Server) apiRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(handleNotFound)

	r.Group(func(r chi.Router) {
		r.Use(s.agentAuthMiddleware)
		r.Get("/workspaces", s.handleAPIWorkspaces)
		r.With(middleware.AllowContentType("application/json")).Post("/reconcile", s.handleAPIReconcile)
	})
	return r
}

// agentAuthMiddleware resolves the bearer token to an agent.
func (s *Server) agentAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeAPIError(w, http.StatusTooManyRequests, ErrorShape{Code: CodeUnauthorized, Message: "too many failed attempts"})
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeAPIError(w, http.StatusUnauthorized, ErrorShape{Code: CodeUnauthorized, Message: "missing bearer token"})
			return
		}
		agent, err := s.authenticateAgent(r.Context(), &ConnectAuth{Token: token})
		if err != nil {
			if isTransient(err) {
				shape, status := errorShape(err)
				writeAPIError(w, status, shape)
				return
			}
			s.authLimiter.recordFailure(r.RemoteAddr)
			writeAPIError(w, http.StatusUnauthorized, ErrorShape{Code: CodeUnauthorized, Message: err.Error()})
			return
		}
		noteAgent(r.Context(), agent.ID)
		next.ServeHTTP(w, r.WithContext(withAgent(r.Context(), agent)))
	})
}

func (s *Server) handleAPIReconcile(w http.ResponseWriter, r *http.Request) {
	agent, _ := agentFromContext(r.Context())

	var p ReconcileParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody)).Decode(&p); err != nil {
		writeAPIError(w, http.StatusBadRequest, ErrorShape{Code: CodeInvalidParams, Message: "invalid JSON body"})
		return
	}

	res, err := s.reconcileAgent(r.Context(), agent, p)
	if err != nil {
		s.writeAPIErr(w, r, agent, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPIWorkspaces(w http.ResponseWriter, r *http.Request) {
	agent, _ := agentFromContext(r.Context())
	if s.workspaces == nil {
		writeAPIError(w, http.StatusServiceUnavailable, ErrorShape{Code: CodeUnavailable, Message: "workspace store not configured"})
		return
	}

	list, err := s.workspaces.FindAll(r.Context(), agent.ID)
	if err != nil {
		s.writeAPIErr(w, r, agent, err)
		return
	}
	if list == nil {
		list = []domain.Workspace{}
	}
	respondJSON(w, http.StatusOK, WorkspacesResult{Workspaces: list})
}

// writeAPIErr logs err and writes its mapped error body.
func (s *Server) writeAPIErr(w http.ResponseWriter, r *http.Request, agent domain.Agent, err error) {
	shape, status := errorShape(err)
	ev := s.log.Warn()
	if status == http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Str("agent", agent.ID).
		Str("code", shape.Code).
		Msg("api request failed")
	writeAPIError(w, status, shape)
}

func writeAPIError(w http.ResponseWriter, status int, shape ErrorShape) {
	if shape.Retryable && shape.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa((shape.RetryAfter+999)/1000))
	}
	respondJSON(w, status, apiError{Error: shape})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
