package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle state of a provider connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultConnectTimeout bounds the connect handshake.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultExecuteTimeout bounds a single tool call.
	DefaultExecuteTimeout = 60 * time.Second
)

// Record describes how to reach one tool server.
type Record struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Conn owns one external tool-server session: the subprocess, a
// dedicated reader goroutine, and the live tool catalog. Its public
// methods are ordinary blocking calls; all subprocess reads happen on
// the owned reader goroutine and are handed back to waiting callers
// through per-call buffered channels with bounded waits.
type Conn struct {
	name           string
	dial           Dialer
	connectTimeout time.Duration
	executeTimeout time.Duration

	// lifeMu serializes Connect/Disconnect so lifecycle transitions are
	// idempotent under concurrent callers.
	lifeMu sync.Mutex

	// mu guards session state: transport, pending waiters, catalog.
	mu         sync.Mutex
	state      State
	lastErr    error
	tr         Transport
	readerDone chan struct{}
	nextID     int64
	pending    map[int64]chan *rpcResponse
	catalog    map[string]ToolInfo
}

// NewConn creates a connection for a stdio tool server. The session is
// not established until Connect or the first Execute.
func NewConn(rec Record) *Conn {
	return NewConnWithDialer(rec.Name, StdioDialer(rec.Command, rec.Args, rec.Env))
}

// NewConnWithDialer creates a connection with a custom transport dialer.
func NewConnWithDialer(name string, dial Dialer) *Conn {
	return &Conn{
		name:           name,
		dial:           dial,
		connectTimeout: DefaultConnectTimeout,
		executeTimeout: DefaultExecuteTimeout,
		pending:        make(map[int64]chan *rpcResponse),
	}
}

// SetTimeouts overrides the connect/execute bounds. Zero values keep
// the current setting.
func (c *Conn) SetTimeouts(connect, execute time.Duration) {
	if connect > 0 {
		c.connectTimeout = connect
	}
	if execute > 0 {
		c.executeTimeout = execute
	}
}

// Name returns the provider name.
func (c *Conn) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error that moved the connection to Failed.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Catalog returns the tool catalog from the last successful connect,
// sorted by name. Only meaningful while the connection is Connected.
func (c *Conn) Catalog() []ToolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	tools := make([]ToolInfo, 0, len(c.catalog))
	for _, t := range c.catalog {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Connect establishes the session: launches the subprocess, performs the
// initialize handshake, and fetches the tool catalog. Idempotent; a
// Failed connection retries. The caller blocks at most the connect bound.
func (c *Conn) Connect(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.lastErr = nil
	c.mu.Unlock()

	log.Debug().Str("provider", c.name).Msg("Connecting to tool server")

	tr, err := c.dial(ctx)
	if err != nil {
		c.fail(fmt.Errorf("failed to start tool server: %w", err))
		return fmt.Errorf("provider %s: %w", c.name, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.tr = tr
	c.readerDone = done
	c.pending = make(map[int64]chan *rpcResponse)
	c.mu.Unlock()

	go c.readLoop(tr, done)

	// The handshake runs in its own goroutine so the caller's wait is
	// bounded even if the server never answers.
	handshakeDone := make(chan error, 1)
	go func() {
		handshakeDone <- c.handshake()
	}()

	select {
	case err := <-handshakeDone:
		if err != nil {
			c.teardownSession()
			c.fail(err)
			return fmt.Errorf("provider %s: %w", c.name, err)
		}
	case <-time.After(c.connectTimeout):
		c.teardownSession()
		c.fail(ErrConnectTimeout)
		return fmt.Errorf("provider %s: %w", c.name, ErrConnectTimeout)
	case <-ctx.Done():
		c.teardownSession()
		c.fail(ctx.Err())
		return fmt.Errorf("provider %s: %w", c.name, ctx.Err())
	}

	c.mu.Lock()
	c.state = StateConnected
	tools := len(c.catalog)
	c.mu.Unlock()

	log.Info().Str("provider", c.name).Int("tools", tools).Msg("Tool server connected")
	return nil
}

func (c *Conn) handshake() error {
	initParams := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "toolbridge",
			"version": "0.1.0",
		},
	}
	if _, err := c.call("initialize", initParams, c.connectTimeout, ErrConnectTimeout); err != nil {
		return err
	}
	if err := c.notify("notifications/initialized", nil); err != nil {
		return err
	}

	resp, err := c.call("tools/list", nil, c.connectTimeout, ErrConnectTimeout)
	if err != nil {
		return err
	}

	var listResult struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return &ProtocolError{Method: "tools/list", Message: err.Error()}
	}

	catalog := make(map[string]ToolInfo, len(listResult.Tools))
	for _, t := range listResult.Tools {
		if t.Name == "" {
			continue
		}
		catalog[t.Name] = t
	}

	c.mu.Lock()
	c.catalog = catalog
	c.mu.Unlock()
	return nil
}

// Execute runs a tool on the provider, connecting first if needed. It
// never returns a Go error: every failure, including timeouts and
// subprocess crashes, becomes a structured error Result.
func (c *Conn) Execute(ctx context.Context, tool string, args map[string]interface{}) Result {
	start := time.Now()

	result := func(r Result) Result {
		r.ElapsedMS = time.Since(start).Milliseconds()
		return r
	}

	if err := c.Connect(ctx); err != nil {
		return result(Result{Tool: tool, Status: StatusError, Error: err.Error()})
	}

	callID, _ := gonanoid.New()
	log.Debug().
		Str("provider", c.name).
		Str("tool", tool).
		Str("call_id", callID).
		Msg("Executing provider tool")

	if args == nil {
		args = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"name":      tool,
		"arguments": args,
	}

	resp, err := c.call("tools/call", params, c.executeTimeout, ErrExecuteTimeout)
	if err != nil {
		log.Warn().
			Str("provider", c.name).
			Str("tool", tool).
			Str("call_id", callID).
			Err(err).
			Msg("Provider tool call failed")
		return result(Result{Tool: tool, Status: StatusError, Error: err.Error()})
	}

	return result(normalizeCallResult(tool, resp.Result))
}

// call sends one request and blocks until the reader goroutine delivers
// the matching response, the bound elapses, or the session closes. A
// response arriving after the bound is discarded by the reader because
// the pending slot is gone; the session itself stays usable.
func (c *Conn) call(method string, params interface{}, timeout time.Duration, timeoutErr error) (*rpcResponse, error) {
	c.mu.Lock()
	tr := c.tr
	if tr == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		c.dropPending(id)
		return nil, err
	}

	if err := tr.Send(data); err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("rpc %s send failed: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, ErrSessionClosed
		}
		if resp.Error != nil {
			return nil, &ProtocolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp, nil
	case <-time.After(timeout):
		c.dropPending(id)
		return nil, timeoutErr
	}
}

// notify sends a request without an id; no response is expected.
func (c *Conn) notify(method string, params interface{}) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	return tr.Send(data)
}

func (c *Conn) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop is the connection's owned background goroutine. It is the
// only reader of the transport and dispatches responses to waiters by
// id. When the transport dies it fails all pending waiters and marks
// the connection Failed so the next call reconnects.
func (c *Conn) readLoop(tr Transport, done chan struct{}) {
	defer close(done)

	for {
		data, err := tr.Recv()
		if err != nil {
			c.mu.Lock()
			if c.tr == tr {
				c.tr = nil
				for id, ch := range c.pending {
					delete(c.pending, id)
					close(ch)
				}
				if c.state == StateConnected || c.state == StateConnecting {
					c.state = StateFailed
					c.lastErr = err
				}
			}
			c.mu.Unlock()
			log.Debug().Str("provider", c.name).Err(err).Msg("Tool server channel closed")
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Warn().Str("provider", c.name).Err(err).Msg("Malformed tool server message")
			continue
		}
		// Server-initiated notifications carry no id.
		idFloat, ok := resp.ID.(float64)
		if !ok {
			continue
		}

		c.mu.Lock()
		ch, exists := c.pending[int64(idFloat)]
		if exists {
			delete(c.pending, int64(idFloat))
		}
		c.mu.Unlock()

		if exists {
			ch <- &resp
		}
	}
}

// Disconnect tears the session down: cancels in-flight waiters, kills
// the subprocess, clears the catalog. Idempotent and safe on a
// never-connected connection; it never returns an error.
func (c *Conn) Disconnect() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.teardownSession()

	c.mu.Lock()
	c.state = StateDisconnected
	c.lastErr = nil
	c.catalog = nil
	c.mu.Unlock()

	log.Debug().Str("provider", c.name).Msg("Tool server disconnected")
}

// teardownSession closes the transport and waits briefly for the reader
// goroutine to exit. Secondary errors are logged, never returned.
func (c *Conn) teardownSession() {
	c.mu.Lock()
	tr := c.tr
	c.tr = nil
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	done := c.readerDone
	c.readerDone = nil
	c.mu.Unlock()

	if tr != nil {
		if err := tr.Close(); err != nil {
			log.Debug().Str("provider", c.name).Err(err).Msg("Tool server close error")
		}
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			log.Warn().Str("provider", c.name).Msg("Tool server reader did not exit in time")
		}
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
	log.Warn().Str("provider", c.name).Err(err).Msg("Tool server connection failed")
}
