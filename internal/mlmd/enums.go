package mlmd

import (
	"encoding/json"
	"fmt"
)

// EventType codes match the store's Event.type column.
type EventType int

const (
	EventUnknown        EventType = 0
	EventDeclaredOutput EventType = 1
	EventDeclaredInput  EventType = 2
	EventInput          EventType = 3
	EventOutput         EventType = 4
	EventInternalInput  EventType = 5
	EventInternalOutput EventType = 6
	EventPendingOutput  EventType = 7
)

var eventTypeNames = []string{
	"UNKNOWN",
	"DECLARED_OUTPUT",
	"DECLARED_INPUT",
	"INPUT",
	"OUTPUT",
	"INTERNAL_INPUT",
	"INTERNAL_OUTPUT",
	"PENDING_OUTPUT",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EVENT_TYPE_%d", int(t))
}

func (t EventType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// IsInput reports whether the event draws an artifact into an execution.
func (t EventType) IsInput() bool {
	return t == EventInput || t == EventDeclaredInput || t == EventInternalInput
}

// IsOutput reports whether the event draws an execution out to an artifact.
func (t EventType) IsOutput() bool {
	return t == EventOutput || t == EventDeclaredOutput || t == EventInternalOutput || t == EventPendingOutput
}

// ParseEventType accepts the upper-case names, case-insensitively.
func ParseEventType(s string) (EventType, error) {
	i, ok := parseEnum(eventTypeNames, s)
	if !ok {
		return EventUnknown, fmt.Errorf("unknown event type %q", s)
	}
	return EventType(i), nil
}

type ArtifactState int

const (
	ArtifactUnknown ArtifactState = 0
	ArtifactPending ArtifactState = 1
	ArtifactLive    ArtifactState = 2
	ArtifactDeleted ArtifactState = 4
)

var artifactStateNames = []string{
	"UNKNOWN",
	"PENDING",
	"LIVE",
	"MARKED_FOR_DELETION",
	"DELETED",
	"ABANDONED",
	"REFERENCE",
}

func (s ArtifactState) String() string {
	if s >= 0 && int(s) < len(artifactStateNames) {
		return artifactStateNames[s]
	}
	return fmt.Sprintf("STATE_%d", int(s))
}

func (s ArtifactState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

type ExecutionState int

const (
	ExecutionUnknown  ExecutionState = 0
	ExecutionRunning  ExecutionState = 2
	ExecutionComplete ExecutionState = 3
	ExecutionFailed   ExecutionState = 4
	ExecutionCached   ExecutionState = 5
)

var executionStateNames = []string{
	"UNKNOWN",
	"NEW",
	"RUNNING",
	"COMPLETE",
	"FAILED",
	"CACHED",
	"CANCELED",
}

func (s ExecutionState) String() string {
	if s >= 0 && int(s) < len(executionStateNames) {
		return executionStateNames[s]
	}
	return fmt.Sprintf("STATE_%d", int(s))
}

func (s ExecutionState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
