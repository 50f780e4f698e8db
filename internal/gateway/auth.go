package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"os"
	"strings"

	"github.com/soyeahso/remdev/internal/config"
	"github.com/soyeahso/remdev/internal/domain"
)

// Auth methods reported in AuthResult.
const (
	AuthMethodToken    = "token"
	AuthMethodPassword = "password"
	AuthMethodAgent    = "agent"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the operator credentials the gateway accepts.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves operator credentials. A config value wins over
// REMDEV_GATEWAY_TOKEN / REMDEV_GATEWAY_PASSWORD. Without an explicit mode,
// a configured password selects password mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token, Password: cfg.Password}
	if auth.Token == "" {
		auth.Token = os.Getenv("REMDEV_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("REMDEV_GATEWAY_PASSWORD")
	}
	if auth.Mode == "" {
		auth.Mode = AuthMethodToken
		if auth.Password != "" {
			auth.Mode = AuthMethodPassword
		}
	}
	return auth
}

// Authorize checks operator credentials. Agent tokens are always refused;
// agents connect in agent mode.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if clientAuth == nil {
		return AuthResult{Reason: "no credentials provided"}
	}
	if strings.HasPrefix(clientAuth.Token, domain.AgentTokenPrefix) {
		return AuthResult{Reason: "agent token presented; connect with client mode " + ClientModeAgent}
	}

	var want, got string
	switch serverAuth.Mode {
	case AuthMethodToken:
		want, got = serverAuth.Token, clientAuth.Token
	case AuthMethodPassword:
		want, got = serverAuth.Password, clientAuth.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + serverAuth.Mode}
	}
	switch {
	case want == "":
		return AuthResult{Reason: "server " + serverAuth.Mode + " not configured"}
	case got == "":
		return AuthResult{Reason: serverAuth.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: serverAuth.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: serverAuth.Mode}
}

// authenticateConnect authenticates a connect request. Agents present their
// own token and come back bound to their agent; every other client mode is
// an operator checked against the gateway credentials.
func (s *Server) authenticateConnect(ctx context.Context, params ConnectParams) (AuthResult, *domain.Agent, error) {
	if params.Client.Mode != ClientModeAgent {
		res := Authorize(s.auth, params.Auth)
		if !res.OK {
			return res, nil, errors.New(res.Reason)
		}
		return res, nil, nil
	}

	a, err := s.authenticateAgent(ctx, params.Auth)
	if err != nil {
		return AuthResult{Reason: err.Error()}, nil, err
	}
	return AuthResult{OK: true, Method: AuthMethodAgent}, &a, nil
}

// authenticateAgent resolves the agent owning an agent token. Storage
// failures are returned as is so callers can report them as retryable.
func (s *Server) authenticateAgent(ctx context.Context, auth *ConnectAuth) (domain.Agent, error) {
	if s.agents == nil {
		return domain.Agent{}, errors.New("agent connections are not enabled")
	}
	if auth == nil || auth.Token == "" {
		return domain.Agent{}, errors.New("agent token required")
	}
	a, err := s.agents.Authenticate(ctx, auth.Token)
	if err != nil {
		if isTransient(err) {
			return domain.Agent{}, err
		}
		s.log.Debug().Err(err).Msg("agent token rejected")
		return domain.Agent{}, errors.New("agent token not recognised")
	}
	return a, nil
}

// safeEqual compares in constant time, including when lengths differ.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
