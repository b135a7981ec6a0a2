package storage

import "context"

type namespaced struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of inner under prefix. Closing the returned
// store does not close inner.
func Namespace(inner Store, prefix string) Store {
	return &namespaced{inner: inner, prefix: prefix}
}

// UserNamespace is the key prefix holding one user's documents.
func UserNamespace(userID string) string {
	return "user/" + userID + "/"
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

func (n *namespaced) Close() error {
	return nil
}
