// Package kv provides the key-value storage port that stands in for a
// browser's local storage, plus memory, SQLite and Redis implementations.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrNoChange, returned from an UpdateFunc, ends Update without writing.
var ErrNoChange = errors.New("kv: no change")

// UpdateFunc maps the current value (ok=false when the key is missing) to the
// value to store. It may run more than once when writers collide.
type UpdateFunc func(current string, ok bool) (string, error)

// Store is a string key-value store. Get reports ok=false for missing keys.
// Update is atomic against every other writer of the key, including other
// processes sharing the same backend.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.data[key]
	next, err := fn(current, ok)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	m.data[key] = next
	return nil
}

// Namespaced prefixes every key so one backing store can hold many visitors.
type Namespaced struct {
	Store  Store
	Prefix string
}

func Namespace(store Store, visitorID string) *Namespaced {
	return &Namespaced{Store: store, Prefix: "visitor:" + visitorID + ":"}
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.Store.Get(ctx, n.Prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.Store.Set(ctx, n.Prefix+key, value)
}

func (n *Namespaced) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return n.Store.Update(ctx, n.Prefix+key, fn)
}
