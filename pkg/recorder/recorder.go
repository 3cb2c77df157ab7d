// Package recorder streams automation events (tool calls and their
// results) to an optional external collaborator. Recorder failures are
// always swallowed; the tool layer's primary results never depend on it.
package recorder

import (
	"time"
)

// Event is one recorded automation step. Args and Result are expected
// to be sanitized (size-capped, redacted) before enqueueing.
type Event struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	TS     time.Time              `json:"ts"`
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Result string                 `json:"result,omitempty"`
}

// EventTypeAutomation is the event type emitted by the tool router.
const EventTypeAutomation = "automation"

// Recorder is the collaborator contract. Enqueue must never block the
// caller for long and must never panic.
type Recorder interface {
	Running() bool
	Enqueue(Event)
}

// Nop is a recorder that does nothing.
type Nop struct{}

func (Nop) Running() bool { return false }
func (Nop) Enqueue(Event) {}
