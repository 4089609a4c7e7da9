// Package mlmd holds the entity snapshots read from an ML Metadata store.
package mlmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TypeKind identifies which entity kind a Type describes.
type TypeKind int

const (
	ExecutionType TypeKind = 0
	ArtifactType  TypeKind = 1
	ContextType   TypeKind = 2
)

func (k TypeKind) String() string {
	switch k {
	case ExecutionType:
		return "Execution"
	case ArtifactType:
		return "Artifact"
	case ContextType:
		return "Context"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

func (k TypeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

type Type struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Kind       TypeKind          `json:"kind"`
	Properties map[string]string `json:"properties,omitempty"`
}

type Artifact struct {
	ID               int64            `json:"id"`
	TypeID           int64            `json:"type_id"`
	TypeName         string           `json:"type"`
	URI              string           `json:"uri,omitempty"`
	Name             string           `json:"name,omitempty"`
	State            ArtifactState    `json:"state"`
	CreateTime       time.Time        `json:"create_time"`
	UpdateTime       time.Time        `json:"update_time"`
	Properties       map[string]Value `json:"properties,omitempty"`
	CustomProperties map[string]Value `json:"custom_properties,omitempty"`
}

type Execution struct {
	ID               int64            `json:"id"`
	TypeID           int64            `json:"type_id"`
	TypeName         string           `json:"type"`
	Name             string           `json:"name,omitempty"`
	State            ExecutionState   `json:"state"`
	CreateTime       time.Time        `json:"create_time"`
	UpdateTime       time.Time        `json:"update_time"`
	Properties       map[string]Value `json:"properties,omitempty"`
	CustomProperties map[string]Value `json:"custom_properties,omitempty"`
}

type Context struct {
	ID               int64            `json:"id"`
	TypeID           int64            `json:"type_id"`
	TypeName         string           `json:"type"`
	Name             string           `json:"name"`
	CreateTime       time.Time        `json:"create_time"`
	UpdateTime       time.Time        `json:"update_time"`
	Properties       map[string]Value `json:"properties,omitempty"`
	CustomProperties map[string]Value `json:"custom_properties,omitempty"`
}

// Event links one artifact to one execution. It has no identity of its own.
type Event struct {
	ArtifactID  int64     `json:"artifact_id"`
	ExecutionID int64     `json:"execution_id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}

// Value is a single property value. Exactly one field is set.
type Value struct {
	Int    *int64
	Double *float64
	String *string
	Bool   *bool
}

func IntValue(v int64) Value      { return Value{Int: &v} }
func DoubleValue(v float64) Value { return Value{Double: &v} }
func StringValue(v string) Value  { return Value{String: &v} }
func BoolValue(v bool) Value      { return Value{Bool: &v} }

func (v Value) IsZero() bool {
	return v.Int == nil && v.Double == nil && v.String == nil && v.Bool == nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Int != nil:
		return json.Marshal(*v.Int)
	case v.Double != nil:
		return json.Marshal(*v.Double)
	case v.String != nil:
		return json.Marshal(*v.String)
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	default:
		return []byte("null"), nil
	}
}

// FromMillis converts an MLMD epoch-milliseconds column to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToMillis is the inverse of FromMillis.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ToMillisOrZero maps the zero time to 0 rather than a large negative value.
func ToMillisOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func parseEnum(names []string, s string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, true
		}
	}
	return 0, false
}
