// Package router resolves logical tool names to an execution location
// and always returns a structured result. Resolution tries three tiers
// in order: the priority route table, direct namespaced dispatch, and
// the local registry. Earlier-tier failures fall through silently; only
// the last matched tier's failure is surfaced.
package router

import (
	"errors"
)

// ErrToolNotFound is reported when no tier matches a logical name.
var ErrToolNotFound = errors.New("tool not found")

// Route maps a logical tool name to a provider tool (the priority tier).
type Route struct {
	Provider string
	Tool     string

	// FollowUp, when set, is issued best-effort after a successful
	// routed call (e.g. pressing Enter after typing into a field).
	// Its failure is ignored.
	FollowUp *FollowUp
}

// FollowUp is a secondary provider call attached to a route.
type FollowUp struct {
	Tool string
	Args map[string]interface{}
}

// AdapterFunc translates logical arguments into a provider's expected
// shape. Adapters are pure: they must return a new map and leave the
// input untouched.
type AdapterFunc func(args map[string]interface{}) map[string]interface{}

// Definition is one entry of the merged tool listing. Source is "local"
// for registry tools and the provider name for provider tools. Offline
// entries stand in for providers that could not connect.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Source      string                 `json:"source"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Offline     bool                   `json:"offline,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// SourceLocal marks registry-backed definitions.
const SourceLocal = "local"
