package trade

import (
	"encoding/json"
	"fmt"
)

// EngineSpecifics carries an opaque, trade-engine-defined payload. The core
// never interprets its contents beyond the "type" discriminator needed to
// round-trip it through JSON and, when a decoder is registered, to hand the
// application back a concrete value instead of raw bytes.
type EngineSpecifics struct {
	Type    string
	Payload json.RawMessage
}

// NewEngineSpecifics marshals v and tags it with typeName.
func NewEngineSpecifics(typeName string, v interface{}) (*EngineSpecifics, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal trade engine specifics: %w", err)
	}
	return &EngineSpecifics{Type: typeName, Payload: payload}, nil
}

// MarshalJSON renders {"type": ..., <payload fields merged in>}.
func (e EngineSpecifics) MarshalJSON() ([]byte, error) {
	var fields map[string]json.RawMessage
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &fields); err != nil {
			return nil, fmt.Errorf("trade engine specifics payload must be a JSON object: %w", err)
		}
	} else {
		fields = map[string]json.RawMessage{}
	}
	typeJSON, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	return json.Marshal(fields)
}

// UnmarshalJSON recovers the type discriminator and keeps the raw payload
// (including "type") for later decode via a Registry.
func (e *EngineSpecifics) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("trade engine specifics missing type discriminator: %w", err)
	}
	e.Type = probe.Type
	e.Payload = append(json.RawMessage{}, data...)
	return nil
}

// Decode unmarshals the payload into v.
func (e *EngineSpecifics) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Registry maps a trade-engine-specifics "type" discriminator to a factory
// for its concrete Go type. Applications register their message types
// before starting the Comms actor (see spec §9 design notes).
type Registry struct {
	factories map[string]func() interface{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() interface{})}
}

// Register associates a type discriminator with a zero-value factory.
func (r *Registry) Register(typeName string, factory func() interface{}) {
	r.factories[typeName] = factory
}

// Decode looks up the registered factory for e.Type and decodes the
// payload into it. Returns the raw EngineSpecifics unchanged (as *EngineSpecifics)
// if no factory is registered for this type — callers may still carry it
// through, they just can't downcast it.
func (r *Registry) Decode(e *EngineSpecifics) (interface{}, error) {
	factory, ok := r.factories[e.Type]
	if !ok {
		return e, nil
	}
	v := factory()
	if err := e.Decode(v); err != nil {
		return nil, fmt.Errorf("decode trade engine specifics %q: %w", e.Type, err)
	}
	return v, nil
}
