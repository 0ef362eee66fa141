// Package kvstore holds the byte stores that case files are persisted in.
package kvstore

import (
	"context"
	"github.com/myrjola/pinearchives/internal/errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.NewSentinel("not found")

// Store is a string-keyed blob store. Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Namespace scopes every key of the underlying store under a prefix.
type Namespace struct {
	prefix string
	store  Store
}

// NewNamespace creates a view of store where every key is prefixed with prefix.
func NewNamespace(store Store, prefix string) *Namespace {
	return &Namespace{
		prefix: prefix,
		store:  store,
	}
}

func (n *Namespace) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.prefix+key) //nolint:wrapcheck // transparent view
}

func (n *Namespace) Put(ctx context.Context, key string, value []byte) error {
	return n.store.Put(ctx, n.prefix+key, value) //nolint:wrapcheck // transparent view
}

func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.prefix+key) //nolint:wrapcheck // transparent view
}

// PlayerNamespace is the prefix of the keys belonging to one player.
func PlayerNamespace(playerID string) string {
	return "player:" + playerID + ":"
}
