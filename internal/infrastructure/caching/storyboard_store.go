// Package caching provides the in-memory storyboard registry.
package caching

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/storyloom/storyloom-go/internal/domain"
)

// StoryboardStore is the keyed, idempotent registry of storyboards. The
// backing cache keeps entries for the process lifetime by default; a TTL can
// be configured for deployments that want eviction.
//
// The store is the only shared mutable state in the system. Get and Put
// exchange deep copies, so a storyboard handed to a caller is never aliased
// by a later mutation. Callers that read-modify-write a storyboard
// (generate, extend, edit) must still serialize on the per-key lock so the
// check-then-act around Has/Put cannot race.
type StoryboardStore struct {
	backing *gocache.Cache

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewStoryboardStore creates a store. A non-positive TTL keeps storyboards
// until process restart.
func NewStoryboardStore(ttl time.Duration) *StoryboardStore {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 10 * time.Minute
	}
	return &StoryboardStore{
		backing:  gocache.New(expiration, cleanup),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// Get returns a copy of the storyboard for an id, or nil and false when
// unknown. The copy is the caller's to mutate and serialize freely.
func (s *StoryboardStore) Get(id string) (*domain.Storyboard, bool) {
	v, found := s.backing.Get(id)
	if !found {
		return nil, false
	}
	return v.(*domain.Storyboard).Clone(), true
}

// Put records a copy of the storyboard under its id, replacing any previous
// entry. The caller keeps exclusive ownership of the value it passed in.
func (s *StoryboardStore) Put(id string, sb *domain.Storyboard) {
	s.backing.SetDefault(id, sb.Clone())
}

// Has reports whether a storyboard exists for the id.
func (s *StoryboardStore) Has(id string) bool {
	_, found := s.backing.Get(id)
	return found
}

// Count returns the number of stored storyboards.
func (s *StoryboardStore) Count() int {
	return s.backing.ItemCount()
}

// KeyLock returns the mutex serializing mutations for one storyboard id.
func (s *StoryboardStore) KeyLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.keyLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[id] = lock
	}
	return lock
}
