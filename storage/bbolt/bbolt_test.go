package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thalikbussacro/acesso-clientes/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(storage.RecordTypeWorkspace, "current", []byte(`{"name":"Acme"}`)))

	data, err := store.Get(storage.RecordTypeWorkspace, "current")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"Acme"}`), data)

	require.NoError(t, store.Delete(storage.RecordTypeWorkspace, "current"))
	_, err = store.Get(storage.RecordTypeWorkspace, "current")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(storage.RecordTypeClient, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Also missing when the bucket exists but the key does not.
	require.NoError(t, store.Put(storage.RecordTypeClient, "c1", []byte("1")))
	_, err = store.Get(storage.RecordTypeClient, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListScopedToRecordType(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put(storage.RecordTypeClient, "c1", []byte("1")))
	require.NoError(t, store.Put(storage.RecordTypeClient, "c2", []byte("2")))
	require.NoError(t, store.Put(storage.RecordTypeAudit, "a1", []byte("3")))

	ids, err := store.List(storage.RecordTypeClient)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	ids, err = store.List(storage.RecordTypeMethod)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(storage.RecordTypeClient, "c1", []byte("persisted")))
	require.NoError(t, store.Close())

	store, err = NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer store.Close()

	data, err := store.Get(storage.RecordTypeClient, "c1")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), data)
}

func TestBatchRollback(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put(storage.RecordTypeClient, "c1", []byte("old")))

	boom := errors.New("boom")
	err := store.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(storage.RecordTypeClient, "c1", []byte("new")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := store.Get(storage.RecordTypeClient, "c1")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}

func TestBatchDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put(storage.RecordTypeClient, "c1", []byte("1")))
	require.NoError(t, store.Put(storage.RecordTypeClient, "c2", []byte("2")))

	err := store.Batch(func(tx storage.BatchTx) error {
		if err := tx.Delete(storage.RecordTypeClient, "c1"); err != nil {
			return err
		}
		return tx.Put(storage.RecordTypeClient, "c3", []byte("3"))
	})
	require.NoError(t, err)

	ids, err := store.List(storage.RecordTypeClient)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c2", "c3"}, ids)
}
