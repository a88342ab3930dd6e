// File: internal/session/store.go
package session

import (
	"sync"

	"github.com/xkilldash9x/panelgate/internal/automation"
)

// Record is the session bound to one target: the exclusively owned page, the
// stored credentials, and the busy flag. The busy flag is only ever touched by
// the Gate under its own mutex; the Store stays a passive keyed container.
type Record struct {
	Page     *automation.Page
	Username string
	Password string

	busy bool
}

// Patch carries the fields an Upsert should merge into a record. Nil fields
// are left untouched, so a patch is a merge, never a replace.
type Patch struct {
	Page     *automation.Page
	Username *string
	Password *string
}

// Store maps target URLs to their session records. Exclusion between actions
// is the Gate's responsibility; the Store's lock only protects the map itself.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Has reports whether a record exists for the target.
func (s *Store) Has(target string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[target]
	return ok
}

// Get returns the record for the target, if one exists.
func (s *Store) Get(target string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[target]
	return rec, ok
}

// Upsert merges the patch into the target's record, creating the record if it
// is absent, and returns it.
func (s *Store) Upsert(target string, patch Patch) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[target]
	if !ok {
		rec = &Record{}
		s.records[target] = rec
	}
	if patch.Page != nil {
		rec.Page = patch.Page
	}
	if patch.Username != nil {
		rec.Username = *patch.Username
	}
	if patch.Password != nil {
		rec.Password = *patch.Password
	}
	return rec
}

// remove discards a record. Established sessions live for the whole process;
// this exists solely so the Gate can roll back a record shell it created for
// a login that failed before a page was ever acquired.
func (s *Store) remove(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, target)
}
