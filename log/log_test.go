package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarshalEvent(t *testing.T) {
	tm := time.UnixMilli(1700000000123)
	got := string(MarshalEvent("compact", tm, []byte("a: 1")))
	require.Equal(t, "--- 4 1700000000123 compact\na: 1\n", got)

	got = string(MarshalEvent("", tm, []byte("a: 1\n")))
	require.Equal(t, "--- 5 1700000000123\na: 1\n", got)

	got = string(MarshalEvent("empty", tm, nil))
	require.Equal(t, "--- 0 1700000000123 empty\n", got)
}

func TestEventData(t *testing.T) {
	_, err := EventData("odd")
	require.Error(t, err)

	d, err := EventData()
	require.NoError(t, err)
	require.Nil(t, d)

	d, err = EventData("entries", 5, "data", "data.bin")
	require.NoError(t, err)
	s := string(d)
	require.Contains(t, s, "entries")
	require.Contains(t, s, "5")
	require.Contains(t, s, "data.bin")
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	Quiet = true
	defer func() { Quiet = false }()

	Init(&Config{Dir: dir})
	Logf("hello %s\n", "world")
	Errorf("bad thing")
	Event("compact", "entries", 3)
	Close()

	day := time.Now().UTC().Format("2006-01-02") + ".txt"
	d, err := os.ReadFile(filepath.Join(dir, "log", day))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(d), "hello world\n"))
	require.Contains(t, string(d), "bad thing")

	d, err = os.ReadFile(filepath.Join(dir, "errors", day))
	require.NoError(t, err)
	require.Contains(t, string(d), "bad thing")
	require.Contains(t, string(d), "log_test.go")

	d, err = os.ReadFile(filepath.Join(dir, "events", day))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(d), "--- "))
	require.Contains(t, string(d), " compact\n")

	// after Close we only log to stdout
	Logf("not in a file\n")
	require.False(t, IfErrf(nil))
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	Stdout = &buf
	defer func() { Stdout = os.Stdout }()

	Logf("created '%s'\n", "data.bin")
	require.Equal(t, "created 'data.bin'\n", buf.String())

	Quiet = true
	Logf("not shown\n")
	Quiet = false
	require.Equal(t, "created 'data.bin'\n", buf.String())
}
