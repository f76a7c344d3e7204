package binstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ehsun7b/tuggerah/atomicfile"
	"github.com/ehsun7b/tuggerah/datastore"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	path := filepath.Join(t.TempDir(), "entries.bin")
	s := NewFileStore(path)
	_, err := os.Stat(path)
	require.NoError(t, err)
	return s
}

func entryIDs(entries []*datastore.Entry) []string {
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestFileStoreSaveLoad(t *testing.T) {
	s := newTestFileStore(t)
	e := fullEntry("id1")
	require.NoError(t, s.Save(e.ID, e))

	got, err := s.Load("id1")
	require.NoError(t, err)
	require.True(t, e.Equal(got))

	got, err = s.Load("missing")
	require.NoError(t, err)
	require.Nil(t, got)

	// file holds exactly one record
	d, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, EncodeRecord("id1", e), d)

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFileStoreUpsert(t *testing.T) {
	s := newTestFileStore(t)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Save(id, &datastore.Entry{ID: id, Title: "v1"}))
	}
	e := &datastore.Entry{ID: "1", Title: "v2"}
	require.NoError(t, s.Save("1", e))

	got, err := s.Load("1")
	require.NoError(t, err)
	require.Equal(t, "v2", got.Title)

	// updated record moves to the end
	all, err := s.Search(datastore.MatchAll)
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3", "1"}, entryIDs(all))
}

func TestFileStoreDelete(t *testing.T) {
	s := newTestFileStore(t)
	for _, id := range []string{"1", "2"} {
		require.NoError(t, s.Save(id, &datastore.Entry{ID: id, Title: "t" + id}))
	}
	require.NoError(t, s.Delete("1"))
	got, err := s.Load("1")
	require.NoError(t, err)
	require.Nil(t, got)

	// deleting missing id is not an error
	require.NoError(t, s.Delete("1"))
	require.NoError(t, s.Delete("nope"))

	all, err := s.Search(nil)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, entryIDs(all))
	_, err = os.Stat(s.Path() + atomicfile.TmpSuffix)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStoreSearch(t *testing.T) {
	s := newTestFileStore(t)
	titles := map[string]string{"1": "GitHub", "2": "gitlab", "3": "Bank"}
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Save(id, &datastore.Entry{ID: id, Title: titles[id]}))
	}
	res, err := s.Search(datastore.TitleContains("GIT"))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, entryIDs(res))

	res, err = s.Search(func(e *datastore.Entry) bool { return false })
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestFileStoreReopen(t *testing.T) {
	s := newTestFileStore(t)
	e := fullEntry("id1")
	require.NoError(t, s.Save(e.ID, e))

	s2 := NewFileStore(s.Path())
	got, err := s2.Load("id1")
	require.NoError(t, err)
	require.True(t, e.Equal(got))
}

func TestFileStoreStaleTemp(t *testing.T) {
	s := newTestFileStore(t)
	require.NoError(t, s.Save("1", &datastore.Entry{ID: "1", Title: "a"}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	tmpPath := s.Path() + atomicfile.TmpSuffix
	require.NoError(t, os.WriteFile(tmpPath, []byte("stale"), 0644))

	err = s.Save("2", &datastore.Entry{ID: "2", Title: "b"})
	require.True(t, errors.Is(err, ErrIO), "err: %v", err)
	err = s.Delete("1")
	require.True(t, errors.Is(err, ErrIO), "err: %v", err)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	// someone else's temp file is left alone
	d, err := os.ReadFile(tmpPath)
	require.NoError(t, err)
	require.Equal(t, "stale", string(d))
}

func TestFileStoreTruncated(t *testing.T) {
	s := newTestFileStore(t)
	for _, id := range []string{"1", "2"} {
		require.NoError(t, s.Save(id, &datastore.Entry{ID: id, Title: "t"}))
	}
	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.NoError(t, os.Truncate(s.Path(), st.Size()-2))

	_, err = s.Search(datastore.MatchAll)
	require.True(t, errors.Is(err, ErrIO))
	// a failed rebuild leaves no temp file behind
	err = s.Save("3", &datastore.Entry{ID: "3", Title: "t"})
	require.True(t, errors.Is(err, ErrIO))
	_, err = os.Stat(s.Path() + atomicfile.TmpSuffix)
	require.True(t, errors.Is(err, os.ErrNotExist))
	// first record is still readable
	got, err := s.Load("1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestFileStoreMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "no-such-dir")
	s := NewFileStore(filepath.Join(dir, "entries.bin"))
	_, err := s.Load("1")
	require.True(t, errors.Is(err, ErrIO))
	require.True(t, errors.Is(err, os.ErrNotExist))
	err = s.Save("1", &datastore.Entry{ID: "1", Title: "t"})
	require.True(t, errors.Is(err, ErrIO))
}

func TestFileStoreNilEntry(t *testing.T) {
	s := newTestFileStore(t)
	err := s.Save("1", nil)
	require.True(t, errors.Is(err, ErrSerialization))
}

func TestFileStoreKeyIsSaveID(t *testing.T) {
	// records are keyed by the id passed to Save, like in IndexedStore
	s := newTestFileStore(t)
	e := &datastore.Entry{ID: "entry-id", Title: "t"}
	require.NoError(t, s.Save("key", e))

	got, err := s.Load("key")
	require.NoError(t, err)
	require.True(t, e.Equal(got))
	got, err = s.Load("entry-id")
	require.NoError(t, err)
	require.Nil(t, got)

	d, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Equal(t, EncodeRecord("key", e), d)

	require.NoError(t, s.Delete("entry-id"))
	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, s.Delete("key"))
	n, err = s.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
