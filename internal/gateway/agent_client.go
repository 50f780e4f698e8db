package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/version"
)

// RPCError is an error response received from the gateway.
type RPCError struct {
	Shape ErrorShape
}

func (e *RPCError) Error() string {
	return e.Shape.Code + ": " + e.Shape.Message
}

// AgentConn is the agent side of a gateway WebSocket connection. Calls are
// serialised; events received while waiting for a response go to OnEvent.
type AgentConn struct {
	conn  *websocket.Conn
	Agent domain.Agent
	Hello HelloOK

	// OnEvent, if set, receives event frames seen between responses.
	OnEvent func(Frame)

	mu  sync.Mutex
	seq int
}

// DialAgent connects to the gateway at url (ws:// or wss://, path /ws) and
// authenticates with an agent token.
func DialAgent(ctx context.Context, url, token, clientID string) (*AgentConn, error) {
	header := http.Header{"User-Agent": {version.UserAgent()}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}

	var challenge Frame
	if err := conn.ReadJSON(&challenge); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading challenge: %w", err)
	}
	if challenge.Type != FrameTypeEvent || challenge.Event != "connect.challenge" {
		conn.Close()
		return nil, fmt.Errorf("expected connect.challenge, got %s %s", challenge.Type, challenge.Event)
	}

	req, err := NewRequest("connect", "connect", ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client: ClientInfo{
			ID:       clientID,
			Version:  version.Version,
			Platform: "agent",
			Mode:     ClientModeAgent,
		},
		Auth: &ConnectAuth{Token: token},
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending connect: %w", err)
	}

	var resp Frame
	if err := conn.ReadJSON(&resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading hello: %w", err)
	}
	if resp.Error != nil {
		conn.Close()
		return nil, &RPCError{Shape: *resp.Error}
	}

	ac := &AgentConn{conn: conn}
	if err := json.Unmarshal(resp.Payload, &ac.Hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("parsing hello: %w", err)
	}
	if ac.Hello.Agent == nil {
		conn.Close()
		return nil, errors.New("gateway did not bind the connection to an agent")
	}
	ac.Agent = *ac.Hello.Agent
	return ac, nil
}

// Reconcile sends one poll and returns the gateway's answer.
func (c *AgentConn) Reconcile(ctx context.Context, p ReconcileParams) (ReconcileResult, error) {
	var res ReconcileResult
	err := c.call(ctx, "workspaces.reconcile", p, &res)
	return res, err
}

// Workspaces returns every workspace of the agent.
func (c *AgentConn) Workspaces(ctx context.Context) ([]domain.Workspace, error) {
	var res WorkspacesResult
	err := c.call(ctx, "workspaces.list", nil, &res)
	return res.Workspaces, err
}

// Close closes the connection.
func (c *AgentConn) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *AgentConn) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	id := method + "-" + strconv.Itoa(c.seq)
	req, err := NewRequest(id, method, params)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("reading %s response: %w", method, err)
		}
		switch {
		case f.Type == FrameTypeEvent:
			if c.OnEvent != nil {
				c.OnEvent(f)
			}
		case f.Type == FrameTypeResponse && f.ID == id:
			if f.Error != nil {
				return &RPCError{Shape: *f.Error}
			}
			return json.Unmarshal(f.Payload, out)
		}
	}
}
