package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Pool is a named collection of provider connections. Records are
// registered up front; connections are established lazily on first
// list or execute and retried after failure.
type Pool struct {
	connectTimeout time.Duration
	executeTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*Conn
	cron  *cron.Cron
}

// NewPool creates a pool from provider records. Nothing is launched
// until a provider is first used.
func NewPool(records []Record) *Pool {
	p := &Pool{
		conns: make(map[string]*Conn, len(records)),
	}
	for _, rec := range records {
		p.conns[rec.Name] = NewConn(rec)
	}
	return p
}

// SetTimeouts sets connect/execute bounds for current and future
// connections. Zero values keep defaults.
func (p *Pool) SetTimeouts(connect, execute time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connectTimeout = connect
	p.executeTimeout = execute
	for _, c := range p.conns {
		c.SetTimeouts(connect, execute)
	}
}

// Add registers (or replaces) a connection for a custom dialer, mainly
// for embedding in-process tool servers and for tests.
func (p *Pool) Add(conn *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.conns[conn.Name()]; ok {
		old.Disconnect()
	}
	conn.SetTimeouts(p.connectTimeout, p.executeTimeout)
	p.conns[conn.Name()] = conn
}

// Get returns the connection for a provider name.
func (p *Pool) Get(name string) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[name]
	return c, ok
}

// Names returns the configured provider names, sorted.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.conns))
	for name := range p.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool on a named provider, connecting on demand. Like
// Conn.Execute it always returns a structured Result.
func (p *Pool) Execute(ctx context.Context, providerName, tool string, args map[string]interface{}) Result {
	conn, ok := p.Get(providerName)
	if !ok {
		return Result{
			Tool:   tool,
			Status: StatusError,
			Error:  fmt.Sprintf("%v: %s", ErrUnknownProvider, providerName),
		}
	}
	return conn.Execute(ctx, tool, args)
}

// ProviderCatalog is one provider's contribution to a tool listing. A
// provider that cannot connect is reported offline instead of omitted.
type ProviderCatalog struct {
	Provider string
	Tools    []ToolInfo
	Offline  bool
	Error    string
}

// Catalogs returns every configured provider's live catalog, connecting
// as needed. Connection failures never escape; they become offline
// entries.
func (p *Pool) Catalogs(ctx context.Context) []ProviderCatalog {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].Name() < conns[j].Name() })

	catalogs := make([]ProviderCatalog, 0, len(conns))
	for _, c := range conns {
		if err := c.Connect(ctx); err != nil {
			catalogs = append(catalogs, ProviderCatalog{
				Provider: c.Name(),
				Offline:  true,
				Error:    err.Error(),
			})
			continue
		}
		catalogs = append(catalogs, ProviderCatalog{
			Provider: c.Name(),
			Tools:    c.Catalog(),
		})
	}
	return catalogs
}

// SetRecords reconciles the pool against a new record set: new
// providers are added, removed ones are disconnected and dropped, and
// changed ones are disconnected so the next use relaunches them.
func (p *Pool) SetRecords(records []Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keep := make(map[string]bool, len(records))
	for _, rec := range records {
		keep[rec.Name] = true
		if _, ok := p.conns[rec.Name]; ok {
			// Relaunch with the new command on next use.
			p.conns[rec.Name].Disconnect()
		}
		conn := NewConn(rec)
		conn.SetTimeouts(p.connectTimeout, p.executeTimeout)
		p.conns[rec.Name] = conn
	}

	for name, c := range p.conns {
		if !keep[name] {
			c.Disconnect()
			delete(p.conns, name)
			log.Info().Str("provider", name).Msg("Provider removed")
		}
	}
}

// StartRefresh schedules a periodic reconnect of already-connected
// providers so their catalogs track server-side tool changes. The
// expression uses standard 5-field cron syntax.
func (p *Pool) StartRefresh(expr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		p.cron.Stop()
	}
	c := cron.New()
	if _, err := c.AddFunc(expr, p.refreshConnected); err != nil {
		return fmt.Errorf("invalid catalog refresh expression: %w", err)
	}
	c.Start()
	p.cron = c

	log.Info().Str("expr", expr).Msg("Catalog refresh scheduled")
	return nil
}

// StopRefresh stops the refresh schedule. Safe without a prior Start.
func (p *Pool) StopRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		p.cron.Stop()
		p.cron = nil
	}
}

func (p *Pool) refreshConnected() {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		if c.State() != StateConnected {
			continue
		}
		c.Disconnect()
		if err := c.Connect(context.Background()); err != nil {
			log.Warn().Str("provider", c.Name()).Err(err).Msg("Catalog refresh reconnect failed")
		}
	}
}

// DisconnectAll tears down every connection and the refresh schedule.
// Idempotent; never returns an error.
func (p *Pool) DisconnectAll() {
	p.StopRefresh()

	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		c.Disconnect()
	}
}
