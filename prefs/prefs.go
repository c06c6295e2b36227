// Package prefs implements persistent key-value preference stores for partsd
// state (profile tables, seek bar values, mode selections).
package prefs

import (
	"errors"
	"strconv"
	"sync"
)

// ErrClosed is returned when writing to a closed store.
var ErrClosed = errors.New("prefs: store closed")

// Store is a persistent key-value preference store. Reads never fail; a
// missing or unparseable value returns the provided default. Implementations
// are safe for concurrent use.
type Store interface {
	String(key, def string) string
	Int(key string, def int) int
	Bool(key string, def bool) bool
	PutString(key, value string) error
	PutInt(key string, value int) error
	PutBool(key string, value bool) error
}

// Memory is an in-memory Store.
type Memory struct {
	mu     sync.Mutex
	values map[string]any
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store with the provided initial values, which
// must be strings, ints, or bools.
func NewMemory(values map[string]any) *Memory {
	m := &Memory{values: map[string]any{}}
	for k, v := range values {
		m.values[k] = normalize(v)
	}
	return m
}

func (m *Memory) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) put(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]any{}
	}
	m.values[key] = value
	return nil
}

func (m *Memory) String(key, def string) string {
	v, _ := m.get(key)
	return asString(v, def)
}

func (m *Memory) Int(key string, def int) int {
	v, _ := m.get(key)
	return asInt(v, def)
}

func (m *Memory) Bool(key string, def bool) bool {
	v, _ := m.get(key)
	return asBool(v, def)
}

func (m *Memory) PutString(key, value string) error {
	return m.put(key, value)
}

func (m *Memory) PutInt(key string, value int) error {
	return m.put(key, int64(value))
}

func (m *Memory) PutBool(key string, value bool) error {
	return m.put(key, value)
}

func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return v
}

func asString(v any, def string) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

func asInt(v any, def int) int {
	switch v := v.(type) {
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func asBool(v any, def bool) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
