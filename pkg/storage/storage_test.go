package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

func TestFileStore_PutGetListDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := "550e8400-e29b-41d4-a716-446655440000:550e8400-e29b-41d4-a716-446655440001"
	require.NoError(t, store.Put(key, []byte(`{"x":1}`)))

	data, err := store.Get(key)
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(data))

	keys, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{key}, keys)

	require.NoError(t, store.Delete(key))
	_, err = store.Get(key)
	require.Equal(t, jacserr.KindFileNotFound, jacserr.KindOf(err))
}

func TestFileStore_PathSafety(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape", "a/b", "..", ""} {
		require.Error(t, store.Put(key, []byte("x")), key)
		_, err := store.Get(key)
		require.Error(t, err, key)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put("k:v", []byte("one")))
	require.NoError(t, store.Put("k:v", []byte("two")))
	data, err := store.Get("k:v")
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}
