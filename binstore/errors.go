package binstore

import (
	"errors"
	"fmt"
)

// Kinds of errors returned by the stores. Use errors.Is(err, ErrIO) etc.
var (
	// ErrIO is a failure to read or write a file, including a record
	// cut short by end of file
	ErrIO = errors.New("io error")
	// ErrSerialization is a failure to encode or decode the binary format
	ErrSerialization = errors.New("serialization error")
	// ErrIndexRecordTooLarge means id and position don't fit an index slot
	ErrIndexRecordTooLarge = errors.New("index record too large")
)

// Error describes a failed store operation.
// It matches its Kind and the underlying Err with errors.Is and errors.As.
type Error struct {
	Kind error  // ErrIO, ErrSerialization or ErrIndexRecordTooLarge
	Op   string // operation that failed e.g. "save"
	Path string // file involved, if any
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Path != "" {
		s += " " + e.Path
	}
	s += ": " + e.Kind.Error()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ioErr wraps err as ErrIO, unless it's already a store error
func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

func serializationErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrSerialization, Op: op, Path: path, Err: err}
}

func indexRecordTooLargeErr(op, path string, id string, size int) error {
	err := fmt.Errorf("id '%s' needs %d bytes, a slot has %d", id, size, IndexRecordSize)
	return &Error{Kind: ErrIndexRecordTooLarge, Op: op, Path: path, Err: err}
}
