package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by a Store when the id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Store persists session attributes between requests.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the per-caller attribute bag. The selected school lives here.
type Session struct {
	mu        sync.RWMutex
	id        string
	values    map[string]string
	dirty     bool
	destroyed bool
}

// New starts an empty session with a random id.
func New() *Session {
	return &Session{id: uuid.NewString(), values: map[string]string{}}
}

// Restore rebuilds a session loaded from a store.
func Restore(id string, values map[string]string) *Session {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Session{id: id, values: copied}
}

func (s *Session) ID() string {
	return s.id
}

// Get returns the attribute stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.values[key]; ok && current == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Values returns a copy of every attribute.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Dirty reports whether attributes changed since the session was loaded.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Destroy marks the session for removal from the store at the end of the request.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
	s.destroyed = true
}

func (s *Session) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// Persist writes the session through store, or deletes it when destroyed.
func (s *Session) Persist(ctx context.Context, store Store, ttl time.Duration) error {
	if s.Destroyed() {
		return store.Delete(ctx, s.id)
	}
	if !s.Dirty() {
		return nil
	}
	if err := store.Save(ctx, s.id, s.Values(), ttl); err != nil {
		return err
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}
