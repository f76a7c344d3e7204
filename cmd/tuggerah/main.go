package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulldump/goconfig"
	"github.com/tidwall/pretty"

	"github.com/ehsun7b/tuggerah/backup"
	"github.com/ehsun7b/tuggerah/binstore"
	"github.com/ehsun7b/tuggerah/datastore"
	"github.com/ehsun7b/tuggerah/log"
)

const (
	engineIndexed = "indexed"
	engineFile    = "file"
)

var errUsage = errors.New("usage")

// store is an opened store together with what's needed to persist
// changes made through it
type store struct {
	ds      datastore.DataStore
	indexed *binstore.IndexedStore
	file    *binstore.FileStore
}

func openStore(c *Config) (*store, error) {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return nil, err
	}
	switch strings.ToLower(c.Engine) {
	case engineIndexed:
		s := binstore.NewIndexedStore(filepath.Join(c.Dir, "entries.data"), filepath.Join(c.Dir, "entries.idx"))
		s.ReloadIndex()
		return &store{ds: s, indexed: s}, nil
	case engineFile:
		s := binstore.NewFileStore(filepath.Join(c.Dir, "entries.bin"))
		return &store{ds: s, file: s}, nil
	}
	return nil, fmt.Errorf("%w: unknown engine '%s', must be '%s' or '%s'", errUsage, c.Engine, engineIndexed, engineFile)
}

// flush persists the in-memory index of the indexed store.
// Delete doesn't mark the index as changed so we always write it.
func (s *store) flush() error {
	if s.indexed == nil {
		return nil
	}
	return s.indexed.RewriteIndex()
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return datastore.Some(s)
}

func printJSON(w io.Writer, v any) error {
	d, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

func run(c *Config, w io.Writer) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}

	action := strings.ToLower(c.Action)
	switch action {
	case "list":
		res, err := s.ds.Search(datastore.MatchAll)
		if err != nil {
			return err
		}
		return printJSON(w, res)

	case "search":
		res, err := s.ds.Search(datastore.TitleContains(c.Query))
		if err != nil {
			return err
		}
		return printJSON(w, res)

	case "get":
		if c.ID == "" {
			return fmt.Errorf("%w: -id is required", errUsage)
		}
		e, err := s.ds.Load(c.ID)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("entry '%s' not found", c.ID)
		}
		return printJSON(w, e)

	case "put":
		e := datastore.NewEntry(c.Title)
		if c.ID != "" {
			e.ID = c.ID
		}
		e.Username = optString(c.Username)
		e.Password = optString(c.Password)
		e.URL = optString(c.URL)
		e.Note = optString(c.Note)
		if err = e.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		if err = s.ds.Save(e.ID, e); err != nil {
			return err
		}
		if err = s.flush(); err != nil {
			return err
		}
		log.Verbosef("saved '%s'\n", e.ID)
		return printJSON(w, e)

	case "delete":
		if c.ID == "" {
			return fmt.Errorf("%w: -id is required", errUsage)
		}
		if err = s.ds.Delete(c.ID); err != nil {
			return err
		}
		return s.flush()

	case "compact":
		if s.indexed == nil {
			fmt.Fprintf(w, "engine '%s' doesn't need compacting\n", c.Engine)
			return nil
		}
		if err = s.indexed.Compact(); err != nil {
			return err
		}
		fmt.Fprintf(w, "compacted '%s', %d entries\n", s.indexed.DataPath(), s.indexed.Len())
		return nil

	case "stats":
		stats := map[string]any{"engine": c.Engine}
		if s.indexed != nil {
			garbage, err := s.indexed.GarbageBytes()
			if err != nil {
				return err
			}
			stats["entries"] = s.indexed.Len()
			stats["garbageBytes"] = garbage
			stats["dataFile"] = s.indexed.DataPath()
			stats["indexFile"] = s.indexed.IndexPath()
		} else {
			n, err := s.file.Len()
			if err != nil {
				return err
			}
			stats["entries"] = n
			stats["dataFile"] = s.file.Path()
		}
		return printJSON(w, stats)

	case "backup":
		if c.File == "" {
			return fmt.Errorf("%w: -file is required", errUsage)
		}
		n, err := backup.ExportFile(c.File, s.ds)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "exported %d entries to '%s'\n", n, c.File)
		return nil

	case "restore":
		if c.File == "" {
			return fmt.Errorf("%w: -file is required", errUsage)
		}
		n, err := backup.ImportFile(c.File, s.ds)
		// keep what was restored before an error
		if errFlush := s.flush(); err == nil {
			err = errFlush
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "restored %d entries from '%s'\n", n, c.File)
		return nil
	}
	return fmt.Errorf("%w: unknown action '%s'", errUsage, c.Action)
}

// setupLog sends diagnostics to stderr so that stdout only has
// the output of the action
func setupLog(c *Config) {
	log.Verbose = c.Verbose
	log.Stdout = os.Stderr
	if c.LogDir != "" {
		log.Init(&log.Config{Dir: c.LogDir})
	}
}

func main() {
	c := Default()
	goconfig.Read(&c)

	setupLog(&c)
	defer log.Close()

	if c.ShowConfig {
		printJSON(os.Stdout, c)
	}

	err := run(&c, os.Stdout)
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		log.Close()
		os.Exit(2)
	}
	log.Errorf("%s: %s\n", c.Action, err)
	log.Close()
	os.Exit(1)
}
