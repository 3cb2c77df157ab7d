package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arfandy/toolbridge/pkg/localtools"
	"github.com/arfandy/toolbridge/pkg/provider"
	"github.com/arfandy/toolbridge/pkg/recorder"
)

// Router is the tool execution facade. Execute never panics and never
// returns a Go error: every outcome is a JSON document with a status.
type Router struct {
	registry *localtools.Registry
	pool     *provider.Pool

	mu            sync.RWMutex
	routes        map[string]Route
	adapters      map[string]AdapterFunc
	rec           recorder.Recorder
	maxEventBytes int

	// closers run on Close, for resources the router built itself.
	closers []func()
}

// New creates a router over a local registry and a provider pool.
func New(registry *localtools.Registry, pool *provider.Pool) *Router {
	return &Router{
		registry:      registry,
		pool:          pool,
		routes:        make(map[string]Route),
		adapters:      make(map[string]AdapterFunc),
		maxEventBytes: recorder.DefaultMaxEventBytes,
	}
}

// Registry returns the local tool registry.
func (r *Router) Registry() *localtools.Registry { return r.registry }

// Pool returns the provider pool.
func (r *Router) Pool() *provider.Pool { return r.pool }

// SetRoute installs (or replaces) a priority route for a logical name.
func (r *Router) SetRoute(logical string, route Route) {
	r.mu.Lock()
	r.routes[logical] = route
	r.mu.Unlock()
}

// SetRoutes replaces the whole priority route table.
func (r *Router) SetRoutes(routes map[string]Route) {
	r.mu.Lock()
	r.routes = make(map[string]Route, len(routes))
	for k, v := range routes {
		r.routes[k] = v
	}
	r.mu.Unlock()
}

// SetAdapter installs an argument adapter for a logical name.
func (r *Router) SetAdapter(logical string, adapter AdapterFunc) {
	r.mu.Lock()
	r.adapters[logical] = adapter
	r.mu.Unlock()
}

// SetRecorder installs the automation-event recorder. A nil recorder
// disables recording.
func (r *Router) SetRecorder(rec recorder.Recorder) {
	r.mu.Lock()
	r.rec = rec
	r.mu.Unlock()
}

// SetMaxEventBytes caps recorded event sizes.
func (r *Router) SetMaxEventBytes(n int) {
	r.mu.Lock()
	if n > 0 {
		r.maxEventBytes = n
	}
	r.mu.Unlock()
}

// Execute resolves a logical tool name through the three tiers and runs
// it. The return value is always a UTF-8 JSON document with at least a
// "status" field; it never panics.
func (r *Router) Execute(ctx context.Context, name string, args map[string]interface{}) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("Tool execution panicked")
			out = r.marshal(map[string]interface{}{
				"tool":   name,
				"status": provider.StatusError,
				"error":  fmt.Sprintf("internal error: %v", rec),
			})
		}
	}()

	if args == nil {
		args = map[string]interface{}{}
	}

	r.mu.RLock()
	route, hasRoute := r.routes[name]
	adapter := r.adapters[name]
	r.mu.RUnlock()

	// Tier 1: priority route. Failures fall through, not surfaced yet.
	var lastFailure *provider.Result
	if hasRoute {
		adapted := args
		if adapter != nil {
			adapted = adapter(args)
		}
		res := r.pool.Execute(ctx, route.Provider, route.Tool, adapted)
		if res.Status == provider.StatusSuccess {
			r.runFollowUp(ctx, route)
			return r.marshal(resultToMap(res))
		}
		log.Warn().
			Str("tool", name).
			Str("provider", route.Provider).
			Str("error", res.Error).
			Msg("Priority route failed, falling through")
		lastFailure = &res
	}

	// Tier 2: direct namespaced dispatch with unmodified arguments.
	if prov, tool, ok := splitNamespaced(name); ok {
		if _, configured := r.pool.Get(prov); configured {
			res := r.pool.Execute(ctx, prov, tool, args)
			if res.Status == provider.StatusSuccess {
				return r.marshal(resultToMap(res))
			}
			log.Warn().
				Str("tool", name).
				Str("provider", prov).
				Str("error", res.Error).
				Msg("Direct dispatch failed, falling through")
			lastFailure = &res
		}
	}

	// Tier 3: local dispatch. This tier's failure is surfaced.
	if r.registry.Has(name) {
		payload := r.executeLocal(ctx, name, args)
		r.notifyRecorder(name, args, payload)
		return payload
	}

	// No tier matched. If a provider tier ran and failed, surface that
	// failure rather than pretending the tool does not exist.
	if lastFailure != nil {
		return r.marshal(resultToMap(*lastFailure))
	}

	return r.marshal(map[string]interface{}{
		"tool":   name,
		"status": provider.StatusError,
		"error":  fmt.Sprintf("%v: %s", ErrToolNotFound, name),
		"code":   "tool_not_found",
	})
}

func (r *Router) runFollowUp(ctx context.Context, route Route) {
	if route.FollowUp == nil {
		return
	}
	res := r.pool.Execute(ctx, route.Provider, route.FollowUp.Tool, route.FollowUp.Args)
	if res.Status != provider.StatusSuccess {
		log.Debug().
			Str("provider", route.Provider).
			Str("tool", route.FollowUp.Tool).
			Str("error", res.Error).
			Msg("Follow-up call failed, ignored")
	}
}

func (r *Router) executeLocal(ctx context.Context, name string, args map[string]interface{}) string {
	start := time.Now()
	out, err := r.registry.Invoke(ctx, name, args)
	if err != nil {
		code := "local_tool_error"
		if errors.Is(err, localtools.ErrConfirmationRequired) {
			code = "confirmation_required"
		}
		return r.marshal(map[string]interface{}{
			"tool":       name,
			"status":     provider.StatusError,
			"error":      err.Error(),
			"code":       code,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	}

	// Local tools that return a map own the result shape; anything else
	// is wrapped as output.
	if m, ok := out.(map[string]interface{}); ok {
		result := make(map[string]interface{}, len(m)+2)
		for k, v := range m {
			result[k] = v
		}
		if _, ok := result["status"]; !ok {
			result["status"] = provider.StatusSuccess
		}
		if _, ok := result["tool"]; !ok {
			result["tool"] = name
		}
		return r.marshal(result)
	}

	return r.marshal(map[string]interface{}{
		"tool":       name,
		"status":     provider.StatusSuccess,
		"output":     out,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

// ListTools returns the merged tool name listing: local names plus each
// configured provider's namespaced catalog, with offline markers for
// providers that could not connect. It never returns an error.
func (r *Router) ListTools(ctx context.Context) []string {
	names := r.registry.Names()
	for _, cat := range r.pool.Catalogs(ctx) {
		if cat.Offline {
			names = append(names, fmt.Sprintf("%s [offline]", cat.Provider))
			continue
		}
		for _, t := range cat.Tools {
			names = append(names, cat.Provider+"."+t.Name)
		}
	}
	return names
}

// AllDefinitions returns the merged descriptor listing for the agent
// layer, connecting providers on demand. Offline providers appear as a
// single offline entry, never as an error.
func (r *Router) AllDefinitions(ctx context.Context) []Definition {
	defs := []Definition{}
	for _, desc := range r.registry.Descriptors() {
		defs = append(defs, Definition{
			Name:        desc.Name,
			Description: desc.Description,
			Source:      SourceLocal,
			InputSchema: localtools.InputSchemaMap(desc),
		})
	}

	for _, cat := range r.pool.Catalogs(ctx) {
		if cat.Offline {
			defs = append(defs, Definition{
				Name:        cat.Provider,
				Description: "provider offline",
				Source:      cat.Provider,
				Offline:     true,
				Error:       cat.Error,
			})
			continue
		}
		for _, t := range cat.Tools {
			def := Definition{
				Name:        cat.Provider + "." + t.Name,
				Description: t.Description,
				Source:      cat.Provider,
			}
			if len(t.InputSchema) > 0 {
				var schema map[string]interface{}
				if err := json.Unmarshal(t.InputSchema, &schema); err == nil {
					def.InputSchema = schema
				}
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// Close releases resources the router owns: provider sessions and any
// recorder it constructed. Idempotent.
func (r *Router) Close() {
	r.pool.DisconnectAll()

	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
}

func (r *Router) notifyRecorder(tool string, args map[string]interface{}, payload string) {
	r.mu.RLock()
	rec := r.rec
	maxBytes := r.maxEventBytes
	r.mu.RUnlock()

	if rec == nil || !rec.Running() {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.Debug().Interface("panic", p).Msg("Recorder notification panicked, ignored")
		}
	}()

	ev := recorder.Sanitize(recorder.Event{
		ID:     uuid.NewString(),
		Type:   recorder.EventTypeAutomation,
		TS:     time.Now(),
		Tool:   tool,
		Args:   args,
		Result: payload,
	}, maxBytes)
	rec.Enqueue(ev)
}

func (r *Router) marshal(result map[string]interface{}) string {
	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode tool result")
		return `{"status":"error","error":"failed to encode tool result"}`
	}
	return string(data)
}

func resultToMap(res provider.Result) map[string]interface{} {
	m := map[string]interface{}{
		"tool":       res.Tool,
		"status":     res.Status,
		"elapsed_ms": res.ElapsedMS,
	}
	if res.Output != "" {
		m["output"] = res.Output
	}
	if res.Error != "" {
		m["error"] = res.Error
	}
	if len(res.Raw) > 0 {
		m["raw"] = json.RawMessage(res.Raw)
	}
	return m
}

// splitNamespaced parses "provider.tool" names. The tool part may
// itself contain dots; only the first separates the namespace.
func splitNamespaced(name string) (prov, tool string, ok bool) {
	idx := strings.Index(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}
