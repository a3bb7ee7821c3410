package directory_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dupgit/cid/internal/directory"
)

func TestFilterByName(t *testing.T) {
	t.Parallel()

	entries := directory.Entries{
		{Name: "20240101/"},
		{Name: "20240215/"},
		{Name: "latest/"},
	}

	dated := entries.FilterByName(regexp.MustCompile(`\d{8}(?:-\d{4})?/$`))
	require.Equal(t, 2, dated.Len())
}

func TestSortByNameDescending(t *testing.T) {
	t.Parallel()

	entries := directory.Entries{
		{Name: "20240101/"},
		{Name: "20240215/"},
		{Name: "20231231/"},
	}

	sorted := entries.SortByName(directory.Descending)
	first, ok := sorted.First()
	require.True(t, ok)
	require.Equal(t, "20240215/", first.Name)
}

func TestSortByDateDescendingPutsUntimedEntriesLast(t *testing.T) {
	t.Parallel()

	now := time.Now()
	entries := directory.Entries{
		{Name: "no-date.qcow2"},
		{Name: "older.qcow2", ModTime: now.Add(-time.Hour), HasTime: true},
		{Name: "newest.qcow2", ModTime: now, HasTime: true},
	}

	sorted := entries.SortByDate(directory.Descending)
	require.Equal(t, "newest.qcow2", sorted[0].Name)
	require.Equal(t, "older.qcow2", sorted[1].Name)
	require.Equal(t, "no-date.qcow2", sorted[2].Name)
}

func TestIsEmptyAndLen(t *testing.T) {
	t.Parallel()

	var empty directory.Entries
	require.True(t, empty.IsEmpty())
	require.Equal(t, 0, empty.Len())

	nonEmpty := directory.Entries{{Name: "a"}}
	require.False(t, nonEmpty.IsEmpty())
	require.Equal(t, 1, nonEmpty.Len())
}

func TestFilteringPredicate(t *testing.T) {
	t.Parallel()

	entries := directory.Entries{{Name: "a.qcow2"}, {Name: "b.iso"}}
	qcow2Only := entries.Filtering(func(e directory.Entry) bool {
		return e.Name == "a.qcow2"
	})

	require.Equal(t, 1, qcow2Only.Len())
}
