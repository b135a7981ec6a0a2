package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.sqlite"))
			require.NoError(t, err)
			return s
		},
		"bolt": func(t *testing.T) Store {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "docs.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore("")
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "dojo:"})
			require.NoError(t, err)
			return s
		},
		"cached": func(t *testing.T) Store {
			return NewCachedStore(NewMemoryStore(), time.Minute)
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			_, err := s.Get(ctx, KeyIntervals)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, KeyIntervals, []byte(`[1,2]`)))
			got, err := s.Get(ctx, KeyIntervals)
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			require.NoError(t, s.Put(ctx, KeyIntervals, []byte(`[3]`)))
			got, err = s.Get(ctx, KeyIntervals)
			require.NoError(t, err)
			assert.Equal(t, `[3]`, string(got))

			require.NoError(t, s.Put(ctx, "user/a b/tempos", []byte(`[]`)))
			got, err = s.Get(ctx, "user/a b/tempos")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			require.NoError(t, s.Delete(ctx, KeyIntervals))
			_, err = s.Get(ctx, KeyIntervals)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, "never-written"))
		})
	}
}

func TestNamespaceIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	alice := Namespace(base, UserNamespace("alice"))
	bob := Namespace(base, UserNamespace("bob"))

	require.NoError(t, alice.Put(ctx, KeyTempos, []byte(`["a"]`)))

	_, err := bob.Get(ctx, KeyTempos)
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get(ctx, "user/alice/tempos")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(raw))

	require.NoError(t, alice.Close())
	_, err = base.Get(ctx, "user/alice/tempos")
	assert.NoError(t, err, "closing a namespace must not close the backend")
}

type failingStore struct {
	*MemoryStore
	putErr error
	getErr error
	gets   int
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, key, value)
}

func TestCachedStoreReadsThrough(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{MemoryStore: NewMemoryStore()}
	c := NewCachedStore(inner, time.Minute)

	require.NoError(t, c.Put(ctx, "k", []byte("v1")))
	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(v))
	}
	assert.Zero(t, inner.gets, "reads after a write are served from the cache")

	inner.putErr = errors.New("disk full")
	require.Error(t, c.Put(ctx, "k", []byte("v2")))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v), "failed writes must not reach the cache")
	assert.Equal(t, 1, inner.gets)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := LoadJSON[[]string](ctx, s, KeyTempos)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsPersistence(err))

	require.NoError(t, SaveJSON(ctx, s, KeyTempos, []string{"slow", "fast"}))
	got, err := LoadJSON[[]string](ctx, s, KeyTempos)
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "fast"}, got)

	require.NoError(t, s.Put(ctx, KeyTempos, []byte("{broken")))
	_, err = LoadJSON[[]string](ctx, s, KeyTempos)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "decode", pe.Op)
	assert.True(t, IsDecode(err))
	assert.False(t, IsNotFound(err))

	_, err = LoadJSON[[]string](ctx, &failingStore{MemoryStore: NewMemoryStore(), getErr: errors.New("i/o timeout")}, KeyTempos)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)
	assert.False(t, IsDecode(err))
	assert.False(t, IsNotFound(err))

	require.NoError(t, s.Close())
	err = SaveJSON(ctx, s, KeyTempos, []string{})
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: "file", Path: t.TempDir(), CacheTTL: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, Config{Backend: "sqlite"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)
}
