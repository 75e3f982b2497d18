package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// ExecutionContext is an ordered key-value store for sharing state between
// collaborators of one job execution. Keys keep their first insertion position.
// It is safe for concurrent use; the zero value is an empty context.
type ExecutionContext struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]interface{}
	dirty  bool
}

// Entry is one key-value pair of an ExecutionContext snapshot.
type Entry struct {
	Key   string
	Value interface{}
}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: make(map[string]interface{})}
}

// NewExecutionContextFrom creates an ExecutionContext holding entries in the given order.
func NewExecutionContextFrom(entries ...Entry) *ExecutionContext {
	ec := NewExecutionContext()
	for _, e := range entries {
		ec.put(e.Key, e.Value)
	}
	return ec
}

func (ec *ExecutionContext) put(key string, value interface{}) {
	if ec.values == nil {
		ec.values = make(map[string]interface{})
	}
	if _, exists := ec.values[key]; !exists {
		ec.keys = append(ec.keys, key)
	}
	ec.values[key] = value
}

// Put sets key to value. Re-putting an existing key keeps its position.
func (ec *ExecutionContext) Put(key string, value interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.put(key, value)
	ec.dirty = true
}

// Get returns the value stored under key.
func (ec *ExecutionContext) Get(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (ec *ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the value under key as an int. Whole float64 values produced
// by JSON decoding are accepted.
func (ec *ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// GetBool returns the value under key if it is a bool.
func (ec *ExecutionContext) GetBool(key string) (bool, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetFloat64 returns the value under key as a float64.
func (ec *ExecutionContext) GetFloat64(key string) (float64, bool) {
	v, ok := ec.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ContainsKey reports whether key is present.
func (ec *ExecutionContext) ContainsKey(key string) bool {
	_, ok := ec.Get(key)
	return ok
}

// Remove deletes key and returns the value it held.
func (ec *ExecutionContext) Remove(key string) (interface{}, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.values[key]
	if !ok {
		return nil, false
	}
	delete(ec.values, key)
	for i, k := range ec.keys {
		if k == key {
			ec.keys = append(ec.keys[:i], ec.keys[i+1:]...)
			break
		}
	}
	ec.dirty = true
	return v, true
}

// Keys returns the keys in insertion order.
func (ec *ExecutionContext) Keys() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]string, len(ec.keys))
	copy(out, ec.keys)
	return out
}

// Entries returns an ordered snapshot of the content.
func (ec *ExecutionContext) Entries() []Entry {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]Entry, 0, len(ec.keys))
	for _, k := range ec.keys {
		out = append(out, Entry{Key: k, Value: ec.values[k]})
	}
	return out
}

// ToMap returns an unordered snapshot of the content.
func (ec *ExecutionContext) ToMap() map[string]interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]interface{}, len(ec.values))
	for k, v := range ec.values {
		out[k] = v
	}
	return out
}

// Size returns the number of entries.
func (ec *ExecutionContext) Size() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.keys)
}

// IsEmpty reports whether the context holds no entries.
func (ec *ExecutionContext) IsEmpty() bool {
	return ec.Size() == 0
}

// Copy returns an independent shallow copy with the same order and a clean dirty flag.
func (ec *ExecutionContext) Copy() *ExecutionContext {
	return NewExecutionContextFrom(ec.Entries()...)
}

// IsDirty reports whether the context changed since creation or the last ClearDirtyFlag.
func (ec *ExecutionContext) IsDirty() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.dirty
}

// ClearDirtyFlag marks the current content as clean.
func (ec *ExecutionContext) ClearDirtyFlag() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.dirty = false
}

// String renders the content as "{k1=v1, k2=v2}".
func (ec *ExecutionContext) String() string {
	entries := ec.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%v", e.Key, e.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the context as a JSON object in insertion order.
func (ec *ExecutionContext) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range ec.Entries() {
		keyBytes, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		valBytes, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ExecutionContext key '%s': %w", e.Key, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the content with a JSON object, keeping the document's key order.
func (ec *ExecutionContext) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		ec.reset(nil, nil)
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ExecutionContext: expected JSON object, got %v", tok)
	}

	keys := make([]string, 0)
	values := make(map[string]interface{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ExecutionContext: expected string key, got %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("ExecutionContext: failed to decode value for key '%s': %w", key, err)
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	ec.reset(keys, values)
	return nil
}

func (ec *ExecutionContext) reset(keys []string, values map[string]interface{}) {
	if values == nil {
		values = make(map[string]interface{})
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.keys = keys
	ec.values = values
	ec.dirty = false
}
