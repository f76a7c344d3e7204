package binstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ehsun7b/tuggerah/datastore"
)

const (
	// IndexRecordSize is the size of a slot in the index file
	IndexRecordSize = 52

	// size of the id part of an index slot
	slotIDSize = IndexRecordSize - 16

	// MaxRecordSize is the largest record we'll read. A bigger length
	// prefix means the file is corrupted.
	MaxRecordSize = 64 * 1024 * 1024

	// size of the length prefix of a record in the file store
	recordHeaderSize = 8
)

var (
	errTrailingBytes  = errors.New("trailing bytes after entry")
	errLengthOverflow = errors.New("length exceeds remaining data")
	errBadOptionTag   = errors.New("invalid option tag")
)

// Position is the location of an encoded entry in the data file
type Position struct {
	Offset uint64
	Length uint64
}

// IndexEntry is a decoded index slot
type IndexEntry struct {
	ID       string
	Position Position
}

func appendU64(d []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(d, v)
}

func appendString(d []byte, s string) []byte {
	d = appendU64(d, uint64(len(s)))
	return append(d, s...)
}

func appendOptString(d []byte, s *string) []byte {
	if s == nil {
		return append(d, 0)
	}
	d = append(d, 1)
	return appendString(d, *s)
}

func appendEntry(d []byte, e *datastore.Entry) []byte {
	d = appendString(d, e.ID)
	d = appendString(d, e.Title)
	d = appendOptString(d, e.Username)
	d = appendOptString(d, e.Password)
	d = appendOptString(d, e.URL)
	d = appendOptString(d, e.Note)
	return d
}

func entrySize(e *datastore.Entry) int {
	opt := func(s *string) int {
		if s == nil {
			return 1
		}
		return 1 + 8 + len(*s)
	}
	return 8 + len(e.ID) + 8 + len(e.Title) +
		opt(e.Username) + opt(e.Password) + opt(e.URL) + opt(e.Note)
}

// EncodeEntry returns the binary encoding of e as stored in the data file
// of IndexedStore
func EncodeEntry(e *datastore.Entry) []byte {
	d := make([]byte, 0, entrySize(e))
	return appendEntry(d, e)
}

// encodeRecordPayload encodes (id, e), the payload of a record in the
// file store
func encodeRecordPayload(id string, e *datastore.Entry) []byte {
	d := make([]byte, 0, 8+len(id)+entrySize(e))
	d = appendString(d, id)
	return appendEntry(d, e)
}

// EncodeRecord returns a record in the file store format:
// [u64 len][payload]
func EncodeRecord(id string, e *datastore.Entry) []byte {
	payload := encodeRecordPayload(id, e)
	d := make([]byte, 0, recordHeaderSize+len(payload))
	d = appendU64(d, uint64(len(payload)))
	return append(d, payload...)
}

// WriteRecord writes a single record in the file store format
func WriteRecord(w io.Writer, id string, e *datastore.Entry) error {
	_, err := w.Write(EncodeRecord(id, e))
	return err
}

// decoder reads values from an in-memory payload
type decoder struct {
	d   []byte
	pos int
}

func (r *decoder) remaining() int {
	return len(r.d) - r.pos
}

func (r *decoder) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, errLengthOverflow
	}
	v := binary.LittleEndian.Uint64(r.d[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *decoder) string() (string, error) {
	n, err := r.u64()
	if err != nil {
		return "", err
	}
	if n > uint64(r.remaining()) {
		return "", errLengthOverflow
	}
	s := string(r.d[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *decoder) optString() (*string, error) {
	if r.remaining() < 1 {
		return nil, errLengthOverflow
	}
	tag := r.d[r.pos]
	r.pos++
	switch tag {
	case 0:
		return nil, nil
	case 1:
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		return &s, nil
	}
	return nil, fmt.Errorf("%w: %d", errBadOptionTag, tag)
}

func (r *decoder) entry() (*datastore.Entry, error) {
	var e datastore.Entry
	var err error
	if e.ID, err = r.string(); err != nil {
		return nil, err
	}
	if e.Title, err = r.string(); err != nil {
		return nil, err
	}
	for _, p := range []**string{&e.Username, &e.Password, &e.URL, &e.Note} {
		if *p, err = r.optString(); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (r *decoder) finish() error {
	if r.remaining() != 0 {
		return fmt.Errorf("%w: %d bytes", errTrailingBytes, r.remaining())
	}
	return nil
}

// DecodeEntry decodes an entry encoded with EncodeEntry.
// d must contain exactly one entry.
func DecodeEntry(d []byte) (*datastore.Entry, error) {
	r := &decoder{d: d}
	e, err := r.entry()
	if err != nil {
		return nil, err
	}
	if err = r.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// decodeRecordPayload decodes the payload of a file store record
func decodeRecordPayload(d []byte) (string, *datastore.Entry, error) {
	r := &decoder{d: d}
	id, err := r.string()
	if err != nil {
		return "", nil, err
	}
	e, err := r.entry()
	if err != nil {
		return "", nil, err
	}
	if err = r.finish(); err != nil {
		return "", nil, err
	}
	return id, e, nil
}

var (
	errEmptySlotID = errors.New("id is empty")
	errZeroInID    = errors.New("id contains a zero byte")
)

// indexSlotFits returns false if id can't be stored in an index slot
// and read back unchanged
func indexSlotFits(id string) bool {
	return checkSlotID("", "", id) == nil
}

// checkSlotID returns ErrIndexRecordTooLarge for ids longer than a slot
// and ErrSerialization for ids a zero padded slot can't represent
func checkSlotID(op, path string, id string) error {
	if len(id) > slotIDSize {
		return indexRecordTooLargeErr(op, path, id, len(id)+16)
	}
	if id == "" {
		return serializationErr(op, path, errEmptySlotID)
	}
	if strings.IndexByte(id, 0) >= 0 {
		return serializationErr(op, path, fmt.Errorf("%w: %q", errZeroInID, id))
	}
	return nil
}

// encodeIndexSlot encodes id and pos into slot, which must be
// IndexRecordSize bytes.
// Layout: [id, zero-padded to 36 bytes][offset u64][length u64]
func encodeIndexSlot(slot []byte, id string, pos Position) bool {
	if !indexSlotFits(id) {
		return false
	}
	n := copy(slot, id)
	clear(slot[n:slotIDSize])
	binary.LittleEndian.PutUint64(slot[slotIDSize:], pos.Offset)
	binary.LittleEndian.PutUint64(slot[slotIDSize+8:], pos.Length)
	return true
}

func decodeIndexSlot(slot []byte) (IndexEntry, error) {
	if len(slot) != IndexRecordSize {
		return IndexEntry{}, fmt.Errorf("slot is %d bytes, expected %d", len(slot), IndexRecordSize)
	}
	idBytes := slot[:slotIDSize]
	if i := bytes.IndexByte(idBytes, 0); i >= 0 {
		idBytes = idBytes[:i]
	}
	if len(idBytes) == 0 {
		return IndexEntry{}, errors.New("slot has an empty id")
	}
	return IndexEntry{
		ID: string(idBytes),
		Position: Position{
			Offset: binary.LittleEndian.Uint64(slot[slotIDSize:]),
			Length: binary.LittleEndian.Uint64(slot[slotIDSize+8:]),
		},
	}, nil
}
