package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func assertFileExists(t *testing.T, path string) {
	st, err := os.Stat(path)
	require.NoError(t, err, "file '%s' doesn't exist", path)
	require.True(t, st.Mode().IsRegular(), "path '%s' exists but is not a file", path)
}

func assertFileNotExists(t *testing.T, path string) {
	_, err := os.Stat(path)
	require.Error(t, err, "file '%s' exist, expected to not exist", path)
}

func assertFileContent(t *testing.T, path string, exp string) {
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, exp, string(d))
}

func TestSimulateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "entries.bin")
	f, err := New(dst)
	require.NoError(t, err)
	assertFileExists(t, f.TmpPath())
	_, err = f.Write([]byte("foo"))
	require.NoError(t, err)
	errSimulated := errors.New("simulated")
	f.err = errSimulated
	err = f.Close()
	require.Equal(t, errSimulated, err)
	assertFileNotExists(t, f.TmpPath())
	assertFileNotExists(t, dst)
	// on second Close() should get the same error
	err = f.Close()
	require.Equal(t, errSimulated, err)
}

func writeWithPanicCancel(t *testing.T, f *File) {
	defer f.RemoveIfNotClosed()

	_, err := f.Write([]byte("foo"))
	require.NoError(t, err)
	panic("simulating a crash")
}

func recoverCancelPanic(t *testing.T, f *File) {
	defer func() {
		err := recover()
		require.NotNil(t, err, "expected to panic")
	}()

	writeWithPanicCancel(t, f)
}

func TestCancel(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "entries.bin")
	err := os.WriteFile(dst, []byte("old"), 0644)
	require.NoError(t, err)
	f, err := New(dst)
	require.NoError(t, err)
	assertFileExists(t, f.TmpPath())
	recoverCancelPanic(t, f)
	assertFileNotExists(t, f.TmpPath())
	assertFileContent(t, dst, "old")

	_, err = f.Write([]byte("new"))
	require.Equal(t, ErrCancelled, err)
	require.Equal(t, ErrCancelled, f.Close())
}

func TestReplace(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "entries.bin")
	{
		f, err := New(dst)
		require.NoError(t, err)
		require.Equal(t, dst+TmpSuffix, f.TmpPath())
		require.NoError(t, f.Close())
		assertFileExists(t, dst)
		assertFileContent(t, dst, "")
		assertFileNotExists(t, f.TmpPath())
	}

	{
		f, err := New(dst)
		require.NoError(t, err)
		n, err := f.Write([]byte("hello"))
		require.NoError(t, err)
		require.Equal(t, 5, n)
		_, err = f.Write([]byte(" world"))
		require.NoError(t, err)
		require.Equal(t, int64(11), f.Written())
		// destination is untouched until Close
		assertFileContent(t, dst, "")
		require.NoError(t, f.Close())
		assertFileContent(t, dst, "hello world")
		// calling Close twice is a no-op
		require.NoError(t, f.Close())
	}
}

func TestNewTruncatesStaleTemp(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "entries.idx")
	err := os.WriteFile(dst+TmpSuffix, []byte("left over by a crash"), 0644)
	require.NoError(t, err)
	f, err := New(dst)
	require.NoError(t, err)
	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assertFileContent(t, dst, "new")
}

func TestNewExclusive(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "entries.bin")
	f, err := NewExclusive(dst)
	require.NoError(t, err)

	// a second writer can't start while the first one is active
	f2, err := NewExclusive(dst)
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrExist))
	require.Nil(t, f2)

	require.NoError(t, f.Close())
	f2, err = NewExclusive(dst)
	require.NoError(t, err)
	f2.RemoveIfNotClosed()
	assertFileNotExists(t, f2.TmpPath())
}

func TestMissingDir(t *testing.T) {
	// we can't create files in directories that don't exist
	// so verify we do an early check
	dst := filepath.Join(t.TempDir(), "foo", "bar.txt")
	f, err := New(dst)
	require.Error(t, err)
	require.Nil(t, f)
}
