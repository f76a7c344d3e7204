package datastore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxIDLen is the maximum length of an id in bytes. It's the length
// of a uuid in its canonical text form and what a slot in the index
// file reserves for the id.
const MaxIDLen = 36

var (
	// ErrInvalidID is returned for ids that can't be stored
	ErrInvalidID = errors.New("invalid id")
	// ErrEmptyTitle is returned by Entry.Validate
	ErrEmptyTitle = errors.New("title is empty")
)

// Entry is a stored record.
// Optional fields are nil when absent. Absent and empty ("") are
// different values.
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	URL      *string `json:"url,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// Some returns a pointer to s, for filling optional fields
func Some(s string) *string {
	return &s
}

// NewEntry creates an entry with a random (v4) uuid as id
func NewEntry(title string) *Entry {
	return &Entry{
		ID:    uuid.NewString(),
		Title: title,
	}
}

// IsUUID returns true if id is a uuid in canonical text form
func IsUUID(id string) bool {
	if len(id) != MaxIDLen {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ValidateID checks that id can be used as a key by every engine
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidID)
	}
	if len(id) > MaxIDLen {
		return fmt.Errorf("%w: '%s' is %d bytes, max is %d", ErrInvalidID, id, len(id), MaxIDLen)
	}
	if strings.IndexByte(id, 0) >= 0 {
		return fmt.Errorf("%w: %q contains a zero byte", ErrInvalidID, id)
	}
	return nil
}

// Validate checks the id and requires a title
func (e *Entry) Validate() error {
	if err := ValidateID(e.ID); err != nil {
		return err
	}
	if e.Title == "" {
		return ErrEmptyTitle
	}
	return nil
}

func optEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Equal returns true if all fields of e and other are equal
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID &&
		e.Title == other.Title &&
		optEqual(e.Username, other.Username) &&
		optEqual(e.Password, other.Password) &&
		optEqual(e.URL, other.URL) &&
		optEqual(e.Note, other.Note)
}

// Clone returns a deep copy of e
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := func(s *string) *string {
		if s == nil {
			return nil
		}
		return Some(*s)
	}
	return &Entry{
		ID:       e.ID,
		Title:    e.Title,
		Username: clone(e.Username),
		Password: clone(e.Password),
		URL:      clone(e.URL),
		Note:     clone(e.Note),
	}
}

func (e *Entry) String() string {
	return fmt.Sprintf("Entry{id: %s, title: %q}", e.ID, e.Title)
}
