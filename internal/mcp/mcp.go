// Package mcp manages client sessions to remote MCP tool servers and
// dispatches named tool calls with JSON arguments.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/docbridge/docbridge/internal/config"
)

const (
	clientName    = "docbridge"
	clientVersion = "0.1.0"
)

// Session is an established connection to one tool server. At most one
// cached session exists per server name; there is no pooling.
type Session struct {
	server string
	client toolClient
}

func (s *Session) Server() string { return s.server }

// slot holds the lazily-established session for one registered server. The
// per-slot mutex serializes first use so concurrent callers cannot dial
// duplicate sessions.
type slot struct {
	mu      sync.Mutex
	session *Session
}

// Manager keeps the server registry and the per-name session cache. It is
// constructed once at startup and passed to every component that dispatches
// remote tool calls.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]config.ToolServer
	slots   map[string]*slot

	dial func(config.ToolServer) (toolClient, error)
}

func NewManager(servers ...config.ToolServer) *Manager {
	m := &Manager{
		servers: map[string]config.ToolServer{},
		slots:   map[string]*slot{},
		dial:    dialMCP,
	}
	for _, s := range servers {
		m.Register(s)
	}
	return m
}

// Register inserts or overwrites a server registration. Overwriting drops any
// cached session for that name so the next call dials the new endpoint.
func (m *Manager) Register(s config.ToolServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.slots[s.Name]; ok {
		prev.mu.Lock()
		if prev.session != nil {
			_ = prev.session.client.Close()
			prev.session = nil
		}
		prev.mu.Unlock()
	}
	m.servers[s.Name] = s
	m.slots[s.Name] = &slot{}
}

// Servers returns the registered servers in no particular order.
func (m *Manager) Servers() []config.ToolServer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]config.ToolServer, 0, len(m.servers))
	for _, s := range m.servers {
		out = append(out, s)
	}
	return out
}

// GetSession returns the cached session for name, establishing it on first
// use. Repeated calls return the same session until it is evicted.
func (m *Manager) GetSession(ctx context.Context, name string) (*Session, error) {
	m.mu.RLock()
	srv, registered := m.servers[name]
	sl := m.slots[name]
	m.mu.RUnlock()
	if !registered {
		return nil, &UnregisteredServerError{Name: name}
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.session != nil {
		return sl.session, nil
	}

	cli, err := m.dial(srv)
	if err != nil {
		return nil, &ConnectionError{Server: name, Err: err}
	}
	if err := cli.Start(ctx); err != nil {
		_ = cli.Close()
		return nil, &ConnectionError{Server: name, Err: err}
	}
	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpproto.Implementation{Name: clientName, Version: clientVersion}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, &ConnectionError{Server: name, Err: err}
	}

	slog.Info("connected to tool server", "server", name, "url", srv.URL, "transport", srv.Transport)
	sl.session = &Session{server: name, client: cli}
	return sl.session, nil
}

// evict drops the cached session if it is still the given one, so the next
// call redials.
func (m *Manager) evict(name string, sess *Session) {
	m.mu.RLock()
	sl := m.slots[name]
	m.mu.RUnlock()
	if sl == nil {
		return
	}
	sl.mu.Lock()
	if sl.session == sess {
		_ = sess.client.Close()
		sl.session = nil
	}
	sl.mu.Unlock()
}

// CallTool invokes the named tool and parses the first text content item of
// the response as JSON. It never returns a Go error: every failure mode is
// folded into the tagged Result.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]any) Result {
	sess, err := m.GetSession(ctx, server)
	if err != nil {
		return Errorf("failed to call %s on %s: %v", tool, server, err)
	}
	if args == nil {
		args = map[string]any{}
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := sess.client.CallTool(ctx, req)
	if err != nil {
		// Transport-level failure: the session may be dead, so drop it.
		m.evict(server, sess)
		return Errorf("failed to call %s on %s: %v", tool, server, err)
	}

	text, ok := firstText(res.Content)
	if !ok {
		return Errorf("no response content from %s", server)
	}
	if res.IsError {
		return Errorf("%s", text)
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Errorf("invalid JSON response from %s: %s", server, text)
	}
	return Success(payload)
}

func firstText(content []mcpproto.Content) (string, bool) {
	for _, c := range content {
		if tc, ok := c.(mcpproto.TextContent); ok {
			return tc.Text, true
		}
	}
	return "", false
}

// ListTools returns the remote server's advertised tool names, order as
// received.
func (m *Manager) ListTools(ctx context.Context, server string) ([]string, error) {
	details, err := m.ListToolDetails(ctx, server)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Name)
	}
	return names, nil
}

// ToolDetail describes one advertised remote tool.
type ToolDetail struct {
	Server      string          `json:"server"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ListToolDetails returns names, descriptions, and raw input schemas. The
// agent uses this to expose remote tools as chat function definitions.
func (m *Manager) ListToolDetails(ctx context.Context, server string) ([]ToolDetail, error) {
	sess, err := m.GetSession(ctx, server)
	if err != nil {
		return nil, err
	}
	list, err := sess.client.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		m.evict(server, sess)
		return nil, &ConnectionError{Server: server, Err: err}
	}
	out := make([]ToolDetail, 0, len(list.Tools))
	for _, t := range list.Tools {
		schema, _ := json.Marshal(t.InputSchema)
		out = append(out, ToolDetail{
			Server:      server,
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// HealthCheck probes one server by listing its tools. It never returns an
// error; failures are reported in the Health record.
func (m *Manager) HealthCheck(ctx context.Context, server string) Health {
	tools, err := m.ListTools(ctx, server)
	if err != nil {
		return Health{Status: "unhealthy", Server: server, Error: err.Error()}
	}
	return Health{Status: "healthy", Server: server, AvailableTools: tools}
}

// HealthCheckAll probes every registered server. One unreachable server does
// not abort the others.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]Health {
	out := map[string]Health{}
	for _, s := range m.Servers() {
		out[s.Name] = m.HealthCheck(ctx, s.Name)
	}
	return out
}

// Close tears down every cached session.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sl := range m.slots {
		sl.mu.Lock()
		if sl.session != nil {
			_ = sl.session.client.Close()
			sl.session = nil
		}
		sl.mu.Unlock()
	}
}
