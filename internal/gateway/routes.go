package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/reconcile"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist).
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.mode",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.controlUi",
	"gateway.api",
	"logging",
	"workspaces",
	"store.busyTimeoutMs",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// agentMethods are the only RPC methods an agent connection may call.
var agentMethods = map[string]bool{
	"health":               true,
	"workspaces.list":      true,
	"workspaces.reconcile": true,
}

// allowed reports whether client may call method. Operators get everything
// except reconcile, which only makes sense for a bound agent.
func allowed(client *Client, method string) bool {
	if client.IsAgent() {
		return agentMethods[method]
	}
	return method != "workspaces.reconcile"
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	if !s.cfg.Gateway.API.Disabled {
		base := strings.TrimSuffix(s.apiBasePath(), "/")
		mux.Handle(base+"/", http.StripPrefix(base, s.apiRouter()))
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
	s.Handle("agents.list", s.rpcAgentsList)
	s.Handle("workspaces.list", s.rpcWorkspacesList)
	s.Handle("workspaces.setState", s.rpcWorkspacesSetState)
	s.Handle("workspaces.reconcile", s.rpcWorkspacesReconcile)
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Agents:  s.clients.CountAgents(),
	})
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "access denied for config path: "+p.Key)
		return
	}

	s.mu.RLock()
	raw := s.configRaw
	s.mu.RUnlock()

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	val, ok := getValueAtPathRPC(raw, path)
	if !ok {
		rc.RespondError(CodeNotFound, "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "cannot modify config path: "+p.Key)
		return
	}

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.Lock()
	setValueAtPathRPC(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	if s.agents == nil {
		rc.RespondError(CodeUnavailable, "agent directory not configured")
		return
	}
	agents, err := s.agents.List(rc.Context())
	if err != nil {
		rc.RespondErr(err)
		return
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	rc.Respond(map[string]any{"agents": agents})
}

func (s *Server) rpcWorkspacesList(rc *RequestContext) {
	if s.workspaces == nil {
		rc.RespondError(CodeUnavailable, "workspace store not configured")
		return
	}
	var p WorkspacesParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	ctx := rc.Context()
	var (
		list []domain.Workspace
		err  error
	)
	switch {
	case rc.Client.IsAgent():
		// Agents only ever see their own workspaces.
		list, err = s.workspaces.FindAll(ctx, rc.Client.AgentID())
	case p.AgentID != "":
		list, err = s.workspaces.FindAll(ctx, p.AgentID)
	default:
		list, err = s.workspaces.List(ctx)
	}
	if err != nil {
		rc.RespondErr(err)
		return
	}
	if list == nil {
		list = []domain.Workspace{}
	}
	rc.Respond(WorkspacesResult{Workspaces: list})
}

type setStateParams struct {
	ID           int64               `json:"id"`
	DesiredState domain.DesiredState `json:"desiredState"`
}

func (s *Server) rpcWorkspacesSetState(rc *RequestContext) {
	if s.workspaces == nil {
		rc.RespondError(CodeUnavailable, "workspace store not configured")
		return
	}
	var p setStateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ID <= 0 {
		rc.RespondError(CodeInvalidParams, "id is required")
		return
	}

	ws, err := s.workspaces.SetDesiredState(rc.Context(), p.ID, p.DesiredState, time.Now())
	if err != nil {
		rc.RespondErr(err)
		return
	}

	// Nudge connected agents to poll; the change itself travels in the
	// next reconcile response.
	notified := s.clients.SendToAgent(ws.AgentID, "workspaces.changed", map[string]any{
		"ids": []int64{ws.ID},
	}, s.eventSeq.Add(1))

	rc.Respond(map[string]any{"workspace": ws, "notified": notified})
}

func (s *Server) rpcWorkspacesReconcile(rc *RequestContext) {
	var p ReconcileParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	res, err := s.reconcileAgent(rc.Context(), *rc.Client.Agent, p)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(res)
}

// reconcileAgent runs one poll for agent under the request timeout. It
// serves both the RPC method and the REST endpoint.
func (s *Server) reconcileAgent(ctx context.Context, agent domain.Agent, p ReconcileParams) (ReconcileResult, error) {
	if s.reconciler == nil {
		return ReconcileResult{}, errReconcilerMissing
	}
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	out, err := s.reconciler.Run(ctx, reconcile.Request{
		Agent:      agent,
		UpdateType: p.UpdateType,
		Infos:      p.WorkspaceAgentInfos,
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	res := ReconcileResult{Workspaces: out.WorkspacesToBeReturned}
	if res.Workspaces == nil {
		res.Workspaces = []domain.Workspace{}
	}
	for _, o := range out.Orphans {
		res.Orphans = append(res.Orphans, o.Name)
	}
	return res, nil
}

// Helpers that mirror config.ParseConfigPath / GetValueAtPath without importing config
// to avoid circular dependencies; they operate on raw maps only.

func parseConfigPathForRPC(raw string) ([]string, error) {
	// Delegate to config package logic inline (simple split).
	if raw == "" {
		return nil, ErrEmptyConfigPath
	}
	var parts []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '.' {
			if i == start {
				return nil, ErrEmptyConfigPath
			}
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return parts, nil
}

func getValueAtPathRPC(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setValueAtPathRPC(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}
