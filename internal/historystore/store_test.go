package historystore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dupgit/cid/internal/historystore"
)

func openTestStore(t *testing.T) *historystore.Store {
	t.Helper()

	dir := t.TempDir()
	store, err := historystore.Open(filepath.Join(dir, "cid.sqlite"))
	require.NoError(t, err)

	t.Cleanup(store.Close)

	return store
}

func TestInsertThenExists(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	date := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

	require.False(t, store.Exists("foo-20250710.qcow2", "abcd", date))

	err := store.Insert("foo-20250710.qcow2", "abcd", date)
	require.NoError(t, err)

	require.True(t, store.Exists("foo-20250710.qcow2", "abcd", date))
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	date := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert("foo.qcow2", "abcd", date))
	require.NoError(t, store.Insert("foo.qcow2", "abcd", date))

	require.True(t, store.Exists("foo.qcow2", "abcd", date))
}

func TestExistsDistinguishesChecksum(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	date := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert("foo.qcow2", "abcd", date))

	require.False(t, store.Exists("foo.qcow2", "different", date))
	require.False(t, store.Exists("foo.qcow2", "abcd", date.Add(24*time.Hour)))
}

func TestConcurrentAccessIsSerialized(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	date := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		i := i
		go func() {
			defer func() { done <- struct{}{} }()

			name := "image.qcow2"
			_ = store.Insert(name, "sum", date)
			_ = store.Exists(name, "sum", date)
			_ = i
		}()
	}

	for i := 0; i < 16; i++ {
		<-done
	}

	require.True(t, store.Exists("image.qcow2", "sum", date))
}

func TestReopenPersistsAcrossRuns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cid.sqlite")
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := historystore.Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Insert("a.qcow2", "sum", date))
	first.Close()

	second, err := historystore.Open(path)
	require.NoError(t, err)
	defer second.Close()

	require.True(t, second.Exists("a.qcow2", "sum", date))
}
