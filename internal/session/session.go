// Package session implements the per-browser key/value store that holds the
// ephemeral cart and pending checkout data between requests.
package session

import (
	"context"
	"maps"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Well-known session keys.
const (
	CartKey     = "cart"
	ShippingKey = "shipping"
)

// ErrNotFound is returned by Store.Load when no session exists for the id.
var ErrNotFound = errors.New("session not found")

// Session is a single browsing session. Values are opaque encoded blobs; the
// owning package decides the encoding for the keys it manages.
//
// A Session is owned by exactly one request at a time and is not safe for
// concurrent use.
type Session struct {
	ID string

	values   map[string][]byte
	modified bool
	fresh    bool
}

// New returns an empty session with a newly generated id.
func New() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string][]byte),
		fresh:  true,
	}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) ([]byte, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value under key and marks the session modified.
func (s *Session) Set(key string, value []byte) {
	s.values[key] = value
	s.modified = true
}

// Delete removes key. Removing an absent key leaves the session untouched.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.modified = true
}

// Values returns a copy of the stored key/value pairs.
func (s *Session) Values() map[string][]byte {
	return maps.Clone(s.values)
}

// MarkModified flags the session for saving even if no key changed.
func (s *Session) MarkModified() { s.modified = true }

// Modified reports whether the session must be saved.
func (s *Session) Modified() bool { return s.modified || s.fresh }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.fresh }

func (s *Session) markSaved() {
	s.modified = false
	s.fresh = false
}

// Store persists sessions.
type Store interface {
	// Load returns ErrNotFound when id is unknown or expired.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}
