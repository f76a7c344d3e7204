package binstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ehsun7b/tuggerah/datastore"
)

// RecordIterator decodes records in the file store format, one at a time:
//
//	it := NewRecordIterator(r)
//	for it.Next() {
//		id, e := it.ID(), it.Entry()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// End of file at a record boundary ends the iteration. End of file inside
// a record is ErrIO wrapping io.ErrUnexpectedEOF.
type RecordIterator struct {
	r    *bufio.Reader
	path string

	hdr   [recordHeaderSize]byte
	buf   []byte
	id    string
	entry *datastore.Entry
	err   error
	done  bool
}

// NewRecordIterator returns an iterator over records read from r
func NewRecordIterator(r io.Reader) *RecordIterator {
	return newRecordIterator(r, "")
}

func newRecordIterator(r io.Reader, path string) *RecordIterator {
	return &RecordIterator{
		r:    bufio.NewReader(r),
		path: path,
	}
}

func (it *RecordIterator) fail(err error) bool {
	it.err = err
	it.done = true
	it.id = ""
	it.entry = nil
	return false
}

// Next advances to the next record. It returns false at the end of
// the data or on error.
func (it *RecordIterator) Next() bool {
	if it.done {
		return false
	}
	_, err := io.ReadFull(it.r, it.hdr[:])
	if err == io.EOF {
		it.done = true
		it.id = ""
		it.entry = nil
		return false
	}
	if err != nil {
		return it.fail(ioErr("read record", it.path, err))
	}
	n := binary.LittleEndian.Uint64(it.hdr[:])
	if n > MaxRecordSize {
		err = fmt.Errorf("record size %d exceeds %d", n, MaxRecordSize)
		return it.fail(ioErr("read record", it.path, err))
	}
	if uint64(cap(it.buf)) < n {
		it.buf = make([]byte, n)
	}
	it.buf = it.buf[:n]
	_, err = io.ReadFull(it.r, it.buf)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return it.fail(ioErr("read record", it.path, err))
	}
	id, e, err := decodeRecordPayload(it.buf)
	if err != nil {
		return it.fail(serializationErr("decode record", it.path, err))
	}
	it.id = id
	it.entry = e
	return true
}

// ID returns the key of the current record
func (it *RecordIterator) ID() string {
	return it.id
}

// Entry returns the entry of the current record
func (it *RecordIterator) Entry() *datastore.Entry {
	return it.entry
}

// Err returns the error that stopped the iteration, if any
func (it *RecordIterator) Err() error {
	return it.err
}

// IndexIterator decodes fixed size slots of an index file. Usage is the
// same as RecordIterator.
type IndexIterator struct {
	r          *bufio.Reader
	path       string
	recordSize int

	slot  []byte
	entry IndexEntry
	err   error
	done  bool
}

// NewIndexIterator returns an iterator over index slots read from r.
// recordSize is IndexRecordSize for index files written by IndexedStore.
func NewIndexIterator(r io.Reader, recordSize int) *IndexIterator {
	return newIndexIterator(r, recordSize, "")
}

func newIndexIterator(r io.Reader, recordSize int, path string) *IndexIterator {
	return &IndexIterator{
		r:          bufio.NewReader(r),
		path:       path,
		recordSize: recordSize,
		slot:       make([]byte, recordSize),
	}
}

func (it *IndexIterator) fail(err error) bool {
	it.err = err
	it.done = true
	it.entry = IndexEntry{}
	return false
}

// Next advances to the next slot. It returns false at the end of
// the data or on error.
func (it *IndexIterator) Next() bool {
	if it.done {
		return false
	}
	_, err := io.ReadFull(it.r, it.slot)
	if err == io.EOF {
		it.done = true
		it.entry = IndexEntry{}
		return false
	}
	if err != nil {
		return it.fail(ioErr("read index", it.path, err))
	}
	e, err := decodeIndexSlot(it.slot)
	if err != nil {
		return it.fail(serializationErr("decode index", it.path, err))
	}
	it.entry = e
	return true
}

// Entry returns the current slot
func (it *IndexIterator) Entry() IndexEntry {
	return it.entry
}

// Err returns the error that stopped the iteration, if any
func (it *IndexIterator) Err() error {
	return it.err
}
