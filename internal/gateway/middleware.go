package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soyeahso/remdev/internal/logging"
)

// withMiddleware wraps the gateway mux: request IDs, the access log, then
// CORS for the control UI origins.
func withMiddleware(handler http.Handler, log *logging.Logger, corsOrigins []string) http.Handler {
	return chi.Chain(
		middleware.RequestID,
		echoRequestID,
		accessLog(log),
		corsMiddleware(corsOrigins),
	).Handler(handler)
}

// echoRequestID returns the request ID assigned by middleware.RequestID so
// that agents can quote it when reporting a failed poll.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// requestAgent is filled in by whichever handler authenticates the caller,
// so the access log can name the agent after the handler returns.
type requestAgent struct {
	id string
}

type requestAgentKey struct{}

// noteAgent records the authenticated agent for the access log. It is a
// no-op outside accessLog.
func noteAgent(ctx context.Context, agentID string) {
	if ra, ok := ctx.Value(requestAgentKey{}).(*requestAgent); ok {
		ra.id = agentID
	}
}

// accessLog logs each request with its ID and, once resolved, the agent.
// Server errors log at warn; everything else at debug.
func accessLog(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ra := &requestAgent{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestAgentKey{}, ra)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Debug()
			if status >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			if ra.id != "" {
				ev = ev.Str("agent", ra.id)
			}
			ev.Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

// corsMiddleware answers preflights and sets CORS headers for allowed
// origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && isOriginAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.RequestIDHeader)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
