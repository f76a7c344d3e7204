// Package backup exports entries of a store to a compressed stream and
// imports them back, into the same or a different kind of store.
//
// A backup is a sequence of records in the binstore.FileStore format,
// optionally compressed with zstd or brotli. Records are keyed by Entry.ID.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/ehsun7b/tuggerah/atomicfile"
	"github.com/ehsun7b/tuggerah/binstore"
	"github.com/ehsun7b/tuggerah/datastore"
	"github.com/ehsun7b/tuggerah/log"
	"github.com/klauspost/compress/zstd"
)

type Codec string

const (
	None   Codec = "none"
	Zstd   Codec = "zstd"
	Brotli Codec = "brotli"
)

// CodecFromPath picks a codec based on file extension:
// .zst and .zstd is Zstd, .br is Brotli, everything else is None
func CodecFromPath(path string) Codec {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zst", ".zstd":
		return Zstd
	case ".br":
		return Brotli
	}
	return None
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func newWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case None, "":
		return nopWriteCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	case Brotli:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	}
	return nil, fmt.Errorf("unknown codec '%s'", codec)
}

func newReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case None, "":
		return io.NopCloser(r), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	}
	return nil, fmt.Errorf("unknown codec '%s'", codec)
}

// Export writes all entries in ds to w and returns number of entries written
func Export(w io.Writer, ds datastore.DataStore, codec Codec) (int, error) {
	entries, err := ds.Search(datastore.MatchAll)
	if err != nil {
		return 0, fmt.Errorf("backup.Export: %w", err)
	}
	cw, err := newWriter(w, codec)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err = binstore.WriteRecord(cw, e.ID, e); err != nil {
			_ = cw.Close()
			return i, fmt.Errorf("backup.Export: %w", err)
		}
	}
	if err = cw.Close(); err != nil {
		return 0, fmt.Errorf("backup.Export: %w", err)
	}
	return len(entries), nil
}

// Import saves every entry read from r into ds and returns number of
// entries saved. On error, entries read before the error are saved.
func Import(r io.Reader, ds datastore.DataStore, codec Codec) (int, error) {
	cr, err := newReader(r, codec)
	if err != nil {
		return 0, err
	}
	defer cr.Close()

	n := 0
	it := binstore.NewRecordIterator(cr)
	for it.Next() {
		if err = ds.Save(it.ID(), it.Entry()); err != nil {
			return n, fmt.Errorf("backup.Import: saving '%s': %w", it.ID(), err)
		}
		n++
	}
	if err = it.Err(); err != nil {
		return n, fmt.Errorf("backup.Import: %w", err)
	}
	return n, nil
}

// ExportFile writes a backup of ds to path, replacing it atomically.
// The codec is picked with CodecFromPath.
func ExportFile(path string, ds datastore.DataStore) (int, error) {
	w, err := atomicfile.New(path)
	if err != nil {
		return 0, err
	}
	defer w.RemoveIfNotClosed()

	n, err := Export(w, ds, CodecFromPath(path))
	if err != nil {
		return 0, err
	}
	if err = w.Close(); err != nil {
		return 0, err
	}
	log.Event("backup", "path", path, "entries", n)
	return n, nil
}

// ImportFile reads a backup written by ExportFile into ds
func ImportFile(path string, ds datastore.DataStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := Import(f, ds, CodecFromPath(path))
	log.Event("restore", "path", path, "entries", n)
	return n, err
}
