// Package repository defines the opaque key-value collaborator the tracking core
// persists through, plus helpers shared by every backend.
package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed byte store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix in ascending order. An empty prefix lists everything.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Entry is a key and value written together.
type Entry struct {
	Key   string
	Value []byte
}

// BatchWriter is implemented by stores that can write several entries atomically.
type BatchWriter interface {
	SetMany(ctx context.Context, entries []Entry) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close(ctx context.Context) error
}

// SetAll writes entries atomically when the store supports it and sequentially otherwise.
// In the sequential case the first failure stops the write and is returned.
func SetAll(ctx context.Context, store Store, entries []Entry) error {
	if bw, ok := store.(BatchWriter); ok {
		return bw.SetMany(ctx, entries)
	}
	for _, e := range entries {
		if err := store.Set(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Namespaced scopes every key of the wrapped store under prefix.
type Namespaced struct {
	inner  Store
	prefix string
}

// WithNamespace wraps store so that all keys live under prefix.
func WithNamespace(store Store, prefix string) *Namespaced {
	return &Namespaced{inner: store, prefix: prefix}
}

// Prefix returns the namespace prefix.
func (n *Namespaced) Prefix() string { return n.prefix }

func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}

// SetMany keeps batch atomicity when the wrapped store supports it.
func (n *Namespaced) SetMany(ctx context.Context, entries []Entry) error {
	scoped := make([]Entry, len(entries))
	for i, e := range entries {
		scoped[i] = Entry{Key: n.prefix + e.Key, Value: e.Value}
	}
	return SetAll(ctx, n.inner, scoped)
}

// FilterPrefix returns the sorted subset of keys beginning with prefix. Backends
// without native prefix scans use it.
func FilterPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
