package binstore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"

	"github.com/ehsun7b/tuggerah/atomicfile"
	"github.com/ehsun7b/tuggerah/datastore"
	"github.com/ehsun7b/tuggerah/log"
)

var errNilEntry = errors.New("entry is nil")

// FileStore keeps all records in a single file. Every Save and Delete
// re-writes the whole file, which is fine for hundreds of entries.
type FileStore struct {
	path string
}

var _ datastore.DataStore = &FileStore{}

// createIfNotExists creates an empty file at path if there's none.
// Errors are logged, not returned. They'll show up on first access.
func createIfNotExists(path string) {
	_, err := os.Stat(path)
	if err == nil {
		log.Verbosef("using existing '%s'\n", path)
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Errorf("os.Stat('%s') failed with '%s'\n", path, err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Errorf("creating '%s' failed with '%s'\n", path, err)
		return
	}
	if err = f.Close(); err != nil {
		log.Errorf("closing '%s' failed with '%s'\n", path, err)
		return
	}
	log.Logf("created '%s'\n", path)
}

// NewFileStore returns a store backed by the file at path, creating
// the file if it doesn't exist
func NewFileStore(path string) *FileStore {
	createIfNotExists(path)
	return &FileStore{path: path}
}

// Path returns the path of the data file
func (s *FileStore) Path() string {
	return s.path
}

// rebuild replaces the file with a copy that skips the record keyed id
// and, if e is not nil, ends with (id, e)
func (s *FileStore) rebuild(op string, id string, e *datastore.Entry) error {
	f, err := os.Open(s.path)
	if err != nil {
		return ioErr(op, s.path, err)
	}
	defer f.Close()

	w, err := atomicfile.NewExclusive(s.path)
	if err != nil {
		return ioErr(op, s.path, err)
	}
	defer w.RemoveIfNotClosed()

	bw := bufio.NewWriter(w)
	it := newRecordIterator(f, s.path)
	for it.Next() {
		if it.ID() == id {
			continue
		}
		if err = WriteRecord(bw, it.ID(), it.Entry()); err != nil {
			return ioErr(op, w.TmpPath(), err)
		}
	}
	if err = it.Err(); err != nil {
		return err
	}
	if e != nil {
		if err = WriteRecord(bw, id, e); err != nil {
			return ioErr(op, w.TmpPath(), err)
		}
	}
	if err = bw.Flush(); err != nil {
		return ioErr(op, w.TmpPath(), err)
	}
	_ = f.Close()
	return ioErr(op, s.path, w.Close())
}

// Save stores e under id, replacing an existing record with the same id.
// The record becomes the last one in the file.
func (s *FileStore) Save(id string, e *datastore.Entry) error {
	if e == nil {
		return serializationErr("save", s.path, errNilEntry)
	}
	return s.rebuild("save", id, e)
}

// Delete removes the record keyed id. It's not an error if there's none.
func (s *FileStore) Delete(id string) error {
	return s.rebuild("delete", id, nil)
}

// each calls fn for every record in file order until fn returns false
func (s *FileStore) each(op string, fn func(id string, e *datastore.Entry) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		return ioErr(op, s.path, err)
	}
	defer f.Close()
	it := newRecordIterator(f, s.path)
	for it.Next() {
		if !fn(it.ID(), it.Entry()) {
			return nil
		}
	}
	return it.Err()
}

// Load returns the entry stored under id or nil if there's none
func (s *FileStore) Load(id string) (*datastore.Entry, error) {
	var res *datastore.Entry
	err := s.each("load", func(recID string, e *datastore.Entry) bool {
		if recID == id {
			res = e
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Search returns entries matching filter, in file order
func (s *FileStore) Search(filter datastore.Filter) ([]*datastore.Entry, error) {
	if filter == nil {
		filter = datastore.MatchAll
	}
	var res []*datastore.Entry
	err := s.each("search", func(_ string, e *datastore.Entry) bool {
		if filter(e) {
			res = append(res, e)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Len returns number of stored records
func (s *FileStore) Len() (int, error) {
	n := 0
	err := s.each("len", func(string, *datastore.Entry) bool {
		n++
		return true
	})
	return n, err
}
