// ABOUTME: In-memory TTL-bounded session registry keyed by conversation key
// ABOUTME: Serializes exchanges per key and sweeps expired sessions lazily

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rkartside/docbridge/internal/chat"
)

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 24 * time.Hour

type entry struct {
	mu   sync.Mutex
	sess *Session
	// gone marks an entry evicted by the sweeper while a waiter was blocked
	// on its mutex. Waiters that observe gone retry the lookup.
	gone bool
}

// Store owns all live sessions. It is the only shared mutable resource in
// the core: get-or-create, rollback and sweep are atomic with respect to a
// given key, and the per-entry mutex serializes whole exchanges for one key
// while leaving distinct keys fully parallel.
type Store struct {
	mu      sync.Mutex
	entries map[chat.Key]*entry
	ttl     time.Duration
	onEvict func(chat.Key)
	logger  *slog.Logger
}

// NewStore creates a session store. ttl <= 0 falls back to DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[chat.Key]*entry),
		ttl:     ttl,
		logger:  logger.With("component", "conversations"),
	}
}

// SetEvictHook registers a callback fired with the key of every session the
// sweeper removes. Hooks run outside the store lock.
func (s *Store) SetEvictHook(hook func(chat.Key)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = hook
}

// Acquire is the store's get-or-create operation. It returns the live
// session for key, creating an empty one for a never-seen or expired key,
// refreshes last-activity, and locks the key so the caller owns the session
// exclusively until release is called. Two near-simultaneous events for the
// same thread therefore run their exchanges one after the other; a lookup
// never fails.
func (s *Store) Acquire(key chat.Key) (sess *Session, release func()) {
	for {
		e := s.lookupOrCreate(key)
		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		return e.sess, func() {
			s.mu.Lock()
			e.sess.LastActivity = time.Now().UTC()
			s.mu.Unlock()
			e.mu.Unlock()
		}
	}
}

func (s *Store) lookupOrCreate(key chat.Key) *entry {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && now.Sub(e.sess.LastActivity) > s.ttl {
		// Expired: evict eagerly so the lookup below yields a fresh, empty
		// session. An entry whose mutex is held is mid-exchange and counts
		// as live.
		if e.mu.TryLock() {
			e.gone = true
			e.mu.Unlock()
			delete(s.entries, key)
			ok = false
			s.logger.Debug("expired session replaced on access", "key", key.String())
		}
	}
	if !ok {
		e = &entry{sess: &Session{Key: key, LastActivity: now}}
		s.entries[key] = e
	}
	e.sess.LastActivity = now
	return e
}

// Rollback removes the most recently appended turn from the session
// identified by key. No-op if the session does not exist or has no turns.
// Must not be called while the caller holds the key via Acquire; exchange
// code rolls back through the session it already owns.
func (s *Store) Rollback(key chat.Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return
	}
	e.sess.RollbackTurn()
}

// Sweep removes every session whose last activity is older than the TTL.
// Idempotent, and safe to run concurrently with lookups: entries currently
// held by an exchange are skipped, never corrupted mid-read.
func (s *Store) Sweep(now time.Time) {
	var evicted []chat.Key

	s.mu.Lock()
	for key, e := range s.entries {
		if now.Sub(e.sess.LastActivity) <= s.ttl {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		e.gone = true
		e.mu.Unlock()
		delete(s.entries, key)
		evicted = append(evicted, key)
	}
	hook := s.onEvict
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Info("swept expired sessions", "count", len(evicted))
	}
	if hook != nil {
		for _, key := range evicted {
			hook(key)
		}
	}
}

// StartJanitor launches a background sweeper that runs until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(time.Now().UTC())
			}
		}
	}()
}

// Len reports how many sessions are currently live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
