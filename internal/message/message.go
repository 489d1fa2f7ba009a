// Package message defines the unit of data that flows between modules.
//
// A Message is an open record of named, dynamically typed values. It carries
// no identity and no routing history: where a message goes is decided by the
// channel topology, never by the message itself.
//
// Messages have value semantics. Every constructor and mutator copies, so a
// message that has been handed to a channel can be read concurrently by any
// number of receivers without synchronization. A module that wants to change
// a field before forwarding uses With or Without, which return a new message.
package message

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Message is an immutable mapping from field names to values.
type Message struct {
	fields map[string]Value
}

// New builds a message from a field bag. No validation is performed; keys
// are unique by construction of the map.
func New(fields map[string]Value) Message {
	return Message{fields: cloneMap(fields)}
}

// FromMap builds a message from plain Go data.
func FromMap(fields map[string]any) (Message, error) {
	out := make(map[string]Value, len(fields))
	for k, raw := range fields {
		v, err := FromAny(raw)
		if err != nil {
			return Message{}, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return Message{fields: out}, nil
}

// Get returns the value stored under key.
func (m Message) Get(key string) (Value, bool) {
	v, ok := m.fields[key]
	if !ok {
		return Null(), false
	}
	return v.Clone(), true
}

// Len returns the number of fields.
func (m Message) Len() int { return len(m.fields) }

// Keys returns the field names in sorted order.
func (m Message) Keys() []string {
	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns the message as plain Go values, see Value.Interface.
func (m Message) Map() map[string]any {
	out := make(map[string]any, len(m.fields))
	for k, v := range m.fields {
		out[k] = v.Interface()
	}
	return out
}

// Fields returns a copy of the field bag.
func (m Message) Fields() map[string]Value { return cloneMap(m.fields) }

// With returns a copy of m with key set to v. The last write wins.
func (m Message) With(key string, v Value) Message {
	out := cloneMap(m.fields)
	out[key] = v.Clone()
	return Message{fields: out}
}

// Without returns a copy of m with key removed.
func (m Message) Without(key string) Message {
	out := cloneMap(m.fields)
	delete(out, key)
	return Message{fields: out}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message { return Message{fields: cloneMap(m.fields)} }

// Equal reports whether both messages hold the same fields and values.
func (m Message) Equal(o Message) bool {
	return Object(m.fields).Equal(Object(o.fields))
}

// String renders the message for logs, with keys sorted.
func (m Message) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", k, m.fields[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// MarshalJSON encodes the message as a JSON object.
func (m Message) MarshalJSON() ([]byte, error) {
	return marshalObject(m.fields)
}

// UnmarshalJSON decodes a JSON object into the message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	obj, ok := v.AsObject()
	if !ok {
		return fmt.Errorf("message: expected JSON object, got %s", v.Kind())
	}
	m.fields = obj
	return nil
}
