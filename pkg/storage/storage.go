// Package storage provides the durable key/value medium behind carts and order histories.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Store persists opaque snapshots under stable keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a remote medium.
type Pinger interface {
	Ping(ctx context.Context) error
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced scopes every key of inner under prefix (joined with ':').
func Namespaced(inner Store, prefix ...string) Store {
	parts := make([]string, 0, len(prefix))
	for _, p := range prefix {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return inner
	}
	return &namespaced{inner: inner, prefix: strings.Join(parts, ":") + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	return n.inner.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}
