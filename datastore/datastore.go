package datastore

import (
	"strings"
	"sync"
)

// Filter decides if an entry is part of a search result
type Filter func(e *Entry) bool

// DataStore is a persistent, unordered collection of entries keyed by id
type DataStore interface {
	// Save inserts or replaces the entry stored under id
	Save(id string, e *Entry) error
	// Load returns the entry stored under id or nil if there's none
	Load(id string) (*Entry, error)
	// Delete removes the entry stored under id. Deleting a missing id
	// is not an error
	Delete(id string) error
	// Search returns all entries for which filter returns true
	Search(filter Filter) ([]*Entry, error)
}

// MatchAll is a filter that matches every entry
func MatchAll(*Entry) bool {
	return true
}

// TitleContains matches entries whose title contains substr, ignoring case
func TitleContains(substr string) Filter {
	substr = strings.ToLower(substr)
	return func(e *Entry) bool {
		return strings.Contains(strings.ToLower(e.Title), substr)
	}
}

// And matches entries matched by all filters
func And(filters ...Filter) Filter {
	return func(e *Entry) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// lockedStore serializes access to a DataStore
type lockedStore struct {
	ds DataStore
	mu sync.RWMutex
}

// Locked wraps ds so that it can be shared between goroutines.
// Save and Delete take an exclusive lock, Load and Search a shared one.
func Locked(ds DataStore) DataStore {
	if ls, ok := ds.(*lockedStore); ok {
		return ls
	}
	return &lockedStore{ds: ds}
}

func (s *lockedStore) Save(id string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.Save(id, e)
}

func (s *lockedStore) Load(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds.Load(id)
}

func (s *lockedStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.Delete(id)
}

func (s *lockedStore) Search(filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds.Search(filter)
}
