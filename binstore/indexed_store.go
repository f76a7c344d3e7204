package binstore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/ehsun7b/tuggerah/atomicfile"
	"github.com/ehsun7b/tuggerah/datastore"
	"github.com/ehsun7b/tuggerah/log"
)

// IndexedStore appends entries to a data file and finds them through
// an in-memory index (id => position in data file).
//
// The index is persisted in a separate file, but only on RewriteIndex.
// Call ReloadIndex after NewIndexedStore to load it.
//
// Overwritten and deleted entries stay in the data file as garbage
// until WriteData (or Compact) re-writes it.
type IndexedStore struct {
	// if true, will call file.Sync() after every Save
	SyncWrites bool

	dataPath  string
	indexPath string
	index     map[string]Position

	needsIndexRewrite bool
	needsDataRewrite  bool
}

var _ datastore.DataStore = &IndexedStore{}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func createFile(path string) {
	f, err := os.Create(path)
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

// NewIndexedStore returns a store backed by the data file at dataPath
// and the index file at indexPath. Missing files are created.
// The in-memory index starts empty.
func NewIndexedStore(dataPath string, indexPath string) *IndexedStore {
	hasData, hasIndex := fileExists(dataPath), fileExists(indexPath)
	switch {
	case hasData && hasIndex:
		log.Verbosef("using existing '%s' and '%s'\n", dataPath, indexPath)
	case !hasData && !hasIndex:
		log.Verbosef("'%s' and '%s' don't exist, creating\n", dataPath, indexPath)
		createFile(dataPath)
		createFile(indexPath)
	case !hasIndex:
		log.Verbosef("'%s' doesn't exist, creating\n", indexPath)
		createFile(indexPath)
	default:
		log.Verbosef("'%s' doesn't exist, creating\n", dataPath)
		createFile(dataPath)
	}
	return &IndexedStore{
		dataPath:  dataPath,
		indexPath: indexPath,
		index:     map[string]Position{},
	}
}

// DataPath returns the path of the data file
func (s *IndexedStore) DataPath() string {
	return s.dataPath
}

// IndexPath returns the path of the index file
func (s *IndexedStore) IndexPath() string {
	return s.indexPath
}

// NeedsIndexRewrite returns true if the index file doesn't match
// the in-memory index
func (s *IndexedStore) NeedsIndexRewrite() bool {
	return s.needsIndexRewrite
}

// NeedsDataRewrite returns true if entries were deleted since the data
// file was last re-written
func (s *IndexedStore) NeedsDataRewrite() bool {
	return s.needsDataRewrite
}

// Len returns number of entries in the in-memory index
func (s *IndexedStore) Len() int {
	return len(s.index)
}

// appendData appends d to the data file and returns its position
func (s *IndexedStore) appendData(d []byte) (Position, error) {
	f, err := os.OpenFile(s.dataPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return Position{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return Position{}, err
	}
	pos := Position{
		Offset: uint64(st.Size()),
		Length: uint64(len(d)),
	}
	if _, err = f.Write(d); err != nil {
		f.Close()
		return Position{}, err
	}
	if s.SyncWrites {
		if err = f.Sync(); err != nil {
			f.Close()
			return Position{}, err
		}
	}
	if err = f.Close(); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// Save appends e to the data file and points id at it. A previous
// entry stored under id becomes garbage.
func (s *IndexedStore) Save(id string, e *datastore.Entry) error {
	if err := checkSlotID("save", s.indexPath, id); err != nil {
		return err
	}
	if e == nil {
		return serializationErr("save", s.dataPath, errNilEntry)
	}
	pos, err := s.appendData(EncodeEntry(e))
	if err != nil {
		return ioErr("save", s.dataPath, err)
	}
	s.index[id] = pos
	s.needsIndexRewrite = true
	return nil
}

// readAt reads the entry at pos from f
func readAt(f io.ReaderAt, pos Position, buf []byte) ([]byte, error) {
	if pos.Length > MaxRecordSize {
		return nil, fmt.Errorf("entry size %d exceeds %d", pos.Length, MaxRecordSize)
	}
	if pos.Offset > math.MaxInt64-pos.Length {
		return nil, fmt.Errorf("invalid offset %d", pos.Offset)
	}
	if uint64(cap(buf)) < pos.Length {
		buf = make([]byte, pos.Length)
	}
	buf = buf[:pos.Length]
	_, err := f.ReadAt(buf, int64(pos.Offset))
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("position %d+%d is past end of file: %w", pos.Offset, pos.Length, io.ErrUnexpectedEOF)
	}
	return buf, err
}

// Load returns the entry stored under id or nil if there's none
func (s *IndexedStore) Load(id string) (*datastore.Entry, error) {
	pos, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, ioErr("load", s.dataPath, err)
	}
	defer f.Close()
	d, err := readAt(f, pos, nil)
	if err != nil {
		return nil, ioErr("load", s.dataPath, err)
	}
	e, err := DecodeEntry(d)
	if err != nil {
		return nil, serializationErr("load", s.dataPath, err)
	}
	return e, nil
}

// Delete removes id from the in-memory index. The data file is not
// touched until WriteData.
func (s *IndexedStore) Delete(id string) error {
	delete(s.index, id)
	s.needsDataRewrite = true
	return nil
}

// sortedIndex returns the index ordered by position in the data file
func (s *IndexedStore) sortedIndex() []IndexEntry {
	res := make([]IndexEntry, 0, len(s.index))
	for id, pos := range s.index {
		res = append(res, IndexEntry{ID: id, Position: pos})
	}
	slices.SortFunc(res, func(a, b IndexEntry) int {
		if a.Position.Offset != b.Position.Offset {
			if a.Position.Offset < b.Position.Offset {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return res
}

// Search returns entries matching filter, ordered by position in the
// data file i.e. oldest write first
func (s *IndexedStore) Search(filter datastore.Filter) ([]*datastore.Entry, error) {
	if filter == nil {
		filter = datastore.MatchAll
	}
	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, ioErr("search", s.dataPath, err)
	}
	defer f.Close()

	var res []*datastore.Entry
	var buf []byte
	for _, ie := range s.sortedIndex() {
		buf, err = readAt(f, ie.Position, buf)
		if err != nil {
			return nil, ioErr("search", s.dataPath, err)
		}
		e, err := DecodeEntry(buf)
		if err != nil {
			return nil, serializationErr("search", s.dataPath, err)
		}
		if filter(e) {
			res = append(res, e)
		}
	}
	return res, nil
}

// LoadIndex replaces the in-memory index with the content of the index
// file. On error the in-memory index is unchanged.
func (s *IndexedStore) LoadIndex() error {
	f, err := os.Open(s.indexPath)
	if err != nil {
		return ioErr("load index", s.indexPath, err)
	}
	defer f.Close()

	index := map[string]Position{}
	it := newIndexIterator(f, IndexRecordSize, s.indexPath)
	for it.Next() {
		ie := it.Entry()
		index[ie.ID] = ie.Position
	}
	if err = it.Err(); err != nil {
		return err
	}
	s.index = index
	return nil
}

// ReloadIndex is LoadIndex that logs the error instead of returning it
func (s *IndexedStore) ReloadIndex() {
	err := s.LoadIndex()
	log.IfErrf(err, "reloading index '%s' failed with '%s'\n", s.indexPath, err)
}

// RewriteIndex writes the in-memory index to the index file
func (s *IndexedStore) RewriteIndex() error {
	w, err := atomicfile.New(s.indexPath)
	if err != nil {
		return ioErr("rewrite index", s.indexPath, err)
	}
	defer w.RemoveIfNotClosed()

	entries := s.sortedIndex()
	d := make([]byte, len(entries)*IndexRecordSize)
	for i, ie := range entries {
		slot := d[i*IndexRecordSize : (i+1)*IndexRecordSize]
		if err = checkSlotID("rewrite index", s.indexPath, ie.ID); err != nil {
			return err
		}
		encodeIndexSlot(slot, ie.ID, ie.Position)
	}
	if _, err = w.Write(d); err != nil {
		return ioErr("rewrite index", w.TmpPath(), err)
	}
	if err = w.Close(); err != nil {
		return ioErr("rewrite index", s.indexPath, err)
	}
	s.needsIndexRewrite = false
	log.Verbosef("wrote %d entries to '%s'\n", len(entries), s.indexPath)
	return nil
}

// WriteData re-writes the data file with only the entries in the
// in-memory index, in the same order.
// It doesn't write the index file, call RewriteIndex afterwards.
func (s *IndexedStore) WriteData() error {
	f, err := os.Open(s.dataPath)
	if err != nil {
		return ioErr("write data", s.dataPath, err)
	}
	defer f.Close()

	w, err := atomicfile.New(s.dataPath)
	if err != nil {
		return ioErr("write data", s.dataPath, err)
	}
	defer w.RemoveIfNotClosed()

	index := make(map[string]Position, len(s.index))
	var buf []byte
	for _, ie := range s.sortedIndex() {
		buf, err = readAt(f, ie.Position, buf)
		if err != nil {
			return ioErr("write data", s.dataPath, err)
		}
		pos := Position{
			Offset: uint64(w.Written()),
			Length: uint64(len(buf)),
		}
		if _, err = w.Write(buf); err != nil {
			return ioErr("write data", w.TmpPath(), err)
		}
		index[ie.ID] = pos
	}
	_ = f.Close()
	if err = w.Close(); err != nil {
		return ioErr("write data", s.dataPath, err)
	}
	s.index = index
	s.needsDataRewrite = false
	s.needsIndexRewrite = true
	return nil
}

func (s *IndexedStore) liveBytes() uint64 {
	var n uint64
	for _, pos := range s.index {
		n += pos.Length
	}
	return n
}

// GarbageBytes returns how many bytes of the data file are taken by
// entries no longer in the index
func (s *IndexedStore) GarbageBytes() (int64, error) {
	st, err := os.Stat(s.dataPath)
	if err != nil {
		return 0, ioErr("stat", s.dataPath, err)
	}
	live := s.liveBytes()
	size := uint64(st.Size())
	if size < live {
		return 0, nil
	}
	return int64(size - live), nil
}

// Compact removes garbage from the data file and writes the index file
func (s *IndexedStore) Compact() error {
	garbage, err := s.GarbageBytes()
	if err != nil {
		return err
	}
	if err = s.WriteData(); err != nil {
		return err
	}
	if err = s.RewriteIndex(); err != nil {
		return err
	}
	log.Event("compact", "data", s.dataPath, "entries", len(s.index), "reclaimed", garbage)
	return nil
}
