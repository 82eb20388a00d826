package envserver

import (
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	idempotencyTTL        = 24 * time.Hour
	idempotencyCleanupLen = 1000
)

type idempotencyEntry struct {
	response  *structpb.Struct
	createdAt time.Time
}

// IdempotencyManager caches Step responses by client supplied key so a
// retried request does not advance the environment twice.
type IdempotencyManager struct {
	cache map[string]*idempotencyEntry
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// NewIdempotencyManager creates a new idempotency manager
func NewIdempotencyManager() *IdempotencyManager {
	return &IdempotencyManager{
		cache: make(map[string]*idempotencyEntry),
		ttl:   idempotencyTTL,
		now:   time.Now,
	}
}

// Check returns the cached response for key, or nil
func (im *IdempotencyManager) Check(key string) *structpb.Struct {
	if key == "" {
		return nil
	}

	im.mu.RLock()
	defer im.mu.RUnlock()

	entry, exists := im.cache[key]
	if !exists || im.now().Sub(entry.createdAt) > im.ttl {
		return nil
	}
	return entry.response
}

// Store caches resp under key
func (im *IdempotencyManager) Store(key string, resp *structpb.Struct) {
	if key == "" {
		return
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.cache[key] = &idempotencyEntry{
		response:  resp,
		createdAt: im.now(),
	}

	if len(im.cache) > idempotencyCleanupLen {
		im.cleanupOldEntriesLocked()
	}
}

// Clear drops every cached response. Keys are scoped to an episode, so a
// reset invalidates them.
func (im *IdempotencyManager) Clear() {
	im.mu.Lock()
	defer im.mu.Unlock()
	clear(im.cache)
}

// Len returns the number of cached responses
func (im *IdempotencyManager) Len() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.cache)
}

// Must be called with mu held
func (im *IdempotencyManager) cleanupOldEntriesLocked() {
	cutoff := im.now().Add(-im.ttl)
	for key, entry := range im.cache {
		if entry.createdAt.Before(cutoff) {
			delete(im.cache, key)
		}
	}
}
