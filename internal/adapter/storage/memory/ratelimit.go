package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
)

const rateLimitShards = 32

type actorWindow struct {
	hits        []time.Time
	bannedUntil time.Time
}

// idle reports whether w holds no live hits and no active ban at now.
func (w *actorWindow) idle(now time.Time, window time.Duration) bool {
	if now.Before(w.bannedUntil) {
		return false
	}
	return len(w.hits) == 0 || now.Sub(w.hits[len(w.hits)-1]) >= window
}

type rateShard struct {
	mu        sync.Mutex
	actors    map[string]*actorWindow
	lastSweep time.Time
}

// sweep drops idle actors at most once per window, so the map only holds
// actors seen within the last window or still banned.
func (sh *rateShard) sweep(now time.Time, window time.Duration) {
	if now.Sub(sh.lastSweep) < window {
		return
	}
	sh.lastSweep = now
	for id, w := range sh.actors {
		if w.idle(now, window) {
			delete(sh.actors, id)
		}
	}
}

// RateLimitStore implements ports.RateLimitStore in process memory.
// Actors are spread over shards so unrelated actors rarely contend.
type RateLimitStore struct {
	shards [rateLimitShards]rateShard
}

// NewRateLimitStore creates an empty store.
func NewRateLimitStore() *RateLimitStore {
	s := &RateLimitStore{}
	for i := range s.shards {
		s.shards[i].actors = make(map[string]*actorWindow)
	}
	return s
}

func (s *RateLimitStore) shard(actorID string) *rateShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(actorID))
	return &s.shards[h.Sum32()%rateLimitShards]
}

// Hit records one request at now and returns the decision.
func (s *RateLimitStore) Hit(_ context.Context, actorID string, now time.Time, policy ports.RateLimitPolicy) (domain.RateLimitDecision, error) {
	sh := s.shard(actorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sweep(now, policy.Window)

	w, ok := sh.actors[actorID]
	if !ok {
		w = &actorWindow{}
		sh.actors[actorID] = w
	}

	if !w.bannedUntil.IsZero() {
		if now.Before(w.bannedUntil) {
			return domain.RateLimitDecision{Banned: true, RetryAfter: w.bannedUntil.Sub(now)}, nil
		}
		w.bannedUntil = time.Time{}
		w.hits = w.hits[:0]
	}

	kept := w.hits[:0]
	for _, t := range w.hits {
		if now.Sub(t) < policy.Window {
			kept = append(kept, t)
		}
	}
	w.hits = kept

	if len(w.hits) >= policy.Limit {
		w.bannedUntil = now.Add(policy.Ban)
		return domain.RateLimitDecision{Banned: true, RetryAfter: policy.Ban}, nil
	}

	w.hits = append(w.hits, now)
	return domain.RateLimitDecision{Allowed: true, Remaining: policy.Limit - len(w.hits)}, nil
}

func (s *RateLimitStore) actorCount() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].actors)
		s.shards[i].mu.Unlock()
	}
	return n
}

// Reset forgets an actor.
func (s *RateLimitStore) Reset(_ context.Context, actorID string) error {
	sh := s.shard(actorID)
	sh.mu.Lock()
	delete(sh.actors, actorID)
	sh.mu.Unlock()
	return nil
}
