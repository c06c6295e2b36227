// Package settings abstracts the Android settings provider.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/pgaskin/partsd/metrics"
)

// ErrNotFound is returned by Provider.Get when the setting is unset.
var ErrNotFound = errors.New("setting not found")

// Namespace is a settings table.
type Namespace string

const (
	System Namespace = "system"
	Secure Namespace = "secure"
	Global Namespace = "global"
)

// Provider reads and writes settings as strings.
type Provider interface {
	Get(ns Namespace, key string) (string, error)
	Put(ns Namespace, key, value string) error
}

// Float reads a floating-point setting, returning def if it is unset or
// invalid.
func Float(p Provider, ns Namespace, key string, def float64) float64 {
	v, err := p.Get(ns, key)
	if err != nil {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return f
}

// PutFloat writes a floating-point setting in the form the framework parses,
// so values read with Float are written back unchanged.
func PutFloat(p Provider, ns Namespace, key string, value float64) error {
	return put(p, ns, key, FormatFloat(value))
}

// FormatFloat formats v as a 32-bit float the way the framework does, with at
// least one decimal and Infinity/NaN spelled out.
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	}
	s := strconv.FormatFloat(v, 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Int reads an integer setting, returning def if it is unset or invalid.
func Int(p Provider, ns Namespace, key string, def int) int {
	v, err := p.Get(ns, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// PutInt writes an integer setting.
func PutInt(p Provider, ns Namespace, key string, value int) error {
	return put(p, ns, key, strconv.Itoa(value))
}

// Bool reads a 0/1 setting.
func Bool(p Provider, ns Namespace, key string, def bool) bool {
	var d int
	if def {
		d = 1
	}
	return Int(p, ns, key, d) != 0
}

// PutBool writes a 0/1 setting.
func PutBool(p Provider, ns Namespace, key string, value bool) error {
	var v int
	if value {
		v = 1
	}
	return PutInt(p, ns, key, v)
}

func put(p Provider, ns Namespace, key, value string) error {
	err := p.Put(ns, key, value)
	metrics.SettingsWrites.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	return nil
}

// Write is a single settings write recorded by Memory.
type Write struct {
	Namespace Namespace
	Key       string
	Value     string
}

// Memory is an in-memory Provider which records writes.
type Memory struct {
	mu     sync.Mutex
	values map[Namespace]map[string]string
	writes []Write
}

var _ Provider = (*Memory)(nil)

// NewMemory creates an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{values: map[Namespace]map[string]string{}}
}

func (m *Memory) Get(ns Namespace, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[ns][key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (m *Memory) Put(ns Namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[Namespace]map[string]string{}
	}
	if m.values[ns] == nil {
		m.values[ns] = map[string]string{}
	}
	m.values[ns][key] = value
	m.writes = append(m.writes, Write{ns, key, value})
	return nil
}

// Writes returns and clears the recorded writes.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.writes
	m.writes = nil
	return w
}
