// Package localtools holds the in-process tool registry. Every local
// tool is a callable taking one structured argument map; declared
// parameters compile to a JSON schema that arguments are validated
// against before the handler runs.
package localtools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ErrConfirmationRequired is returned by handlers that decline to act
// because a required allow-flag was false or absent.
var ErrConfirmationRequired = errors.New("confirmation required")

// ErrUnknownTool is returned when no tool is registered under a name.
var ErrUnknownTool = errors.New("unknown local tool")

// ConfirmParam is the conventional boolean parameter name for tools
// that gate destructive actions. When a descriptor declares it and the
// caller omits it, Invoke injects its default.
const ConfirmParam = "confirm"

// Handler is the local tool contract: one structured argument record
// in, a result value or error out. Expected failures should be
// reported in the returned value with status=error, not as errors.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Parameter describes one declared argument of a local tool.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Descriptor defines a local tool's metadata and handler.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

type entry struct {
	desc   Descriptor
	schema *gojsonschema.Schema
}

// Registry maps tool names to handlers. Registration is expected before
// concurrent execution begins; later registrations under the same name
// intentionally replace earlier ones.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool, replacing any prior registration under the same
// name.
func (r *Registry) Register(desc Descriptor) error {
	if err := validateDescriptor(desc); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(desc)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	r.mu.Lock()
	_, replaced := r.tools[desc.Name]
	r.tools[desc.Name] = &entry{desc: desc, schema: schema}
	r.mu.Unlock()

	log.Info().Str("tool", desc.Name).Bool("replaced", replaced).Msg("Local tool registered")
	return nil
}

// Unregister removes a tool. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.tools, name)
	r.mu.Unlock()

	log.Info().Str("tool", name).Msg("Local tool unregistered")
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns a tool descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all registered descriptors, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke validates arguments against the tool's schema, injects the
// confirmation default when the tool declares one and the caller
// omitted it, and runs the handler. Handler panics are recovered and
// returned as errors; the caller's args map is never mutated.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (out interface{}, err error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	callArgs := prepareArgs(e.desc, args)

	if err := validateArgs(e.schema, callArgs); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("Local tool panicked")
			out = nil
			err = fmt.Errorf("tool %s panicked: %v", name, rec)
		}
	}()

	return e.desc.Handler(ctx, callArgs)
}

// prepareArgs copies the caller's map and fills declared defaults for
// omitted parameters, including the confirmation flag.
func prepareArgs(desc Descriptor, args map[string]interface{}) map[string]interface{} {
	callArgs := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		callArgs[k] = v
	}

	for _, p := range desc.Parameters {
		if _, present := callArgs[p.Name]; present {
			continue
		}
		if p.Name == ConfirmParam && p.Type == "boolean" {
			def := true
			if b, ok := p.Default.(bool); ok {
				def = b
			}
			callArgs[p.Name] = def
			continue
		}
		if p.Default != nil {
			callArgs[p.Name] = p.Default
		}
	}
	return callArgs
}

func validateDescriptor(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if desc.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if desc.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range desc.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}
	return nil
}

// compileSchema builds a JSON schema from the declared parameters.
// Additional properties are allowed so handlers that accept arbitrary
// keys keep working; declared parameters are still type-checked.
func compileSchema(desc Descriptor) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(desc.Parameters))
	required := []string{}

	for _, param := range desc.Parameters {
		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := []string{}
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("validation errors: %v", msgs)
	}
	return nil
}

// InputSchemaMap returns the JSON-schema object for a descriptor's
// parameters, for export to LLM tool definitions.
func InputSchemaMap(desc Descriptor) map[string]interface{} {
	properties := make(map[string]interface{}, len(desc.Parameters))
	required := []string{}
	for _, param := range desc.Parameters {
		ps := map[string]interface{}{"type": param.Type}
		if param.Description != "" {
			ps["description"] = param.Description
		}
		properties[param.Name] = ps
		if param.Required {
			required = append(required, param.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
