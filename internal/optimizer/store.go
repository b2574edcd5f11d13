package optimizer

import (
	"sort"
	"sync"
)

// ResultStore is the single synchronization point of a search run. Results
// are keyed by the canonical parameter identity; the first insert for a key
// wins and later inserts for the same key are dropped, which makes repeated
// evaluation of a set idempotent.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*Result
	order   []string
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*Result)}
}

// Insert stores r unless a result for the same parameter identity already
// exists. It reports whether r was stored.
func (s *ResultStore) Insert(r *Result) bool {
	key := r.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[key]; ok {
		return false
	}
	s.results[key] = r
	s.order = append(s.order, key)
	return true
}

// Get returns the stored result for a parameter identity, if any.
func (s *ResultStore) Get(key string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[key]
	return r, ok
}

// Contains reports whether a parameter identity was already evaluated.
func (s *ResultStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[key]
	return ok
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// All returns the results in insertion order.
func (s *ResultStore) All() []*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Result, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.results[key])
	}
	return out
}

// Best returns the usable result with the highest score, or nil when no
// candidate produced one. Score ties break on the canonical parameter key,
// so the winner does not depend on evaluation completion order.
func (s *ResultStore) Best() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Result
	for _, key := range s.order {
		r := s.results[key]
		if !r.Usable() {
			continue
		}
		if best == nil || r.Score > best.Score || (r.Score == best.Score && r.Key() < best.Key()) {
			best = r
		}
	}
	return best
}

// Leaderboard returns the usable results sorted by score, best first. Ties
// break on the canonical parameter key.
func (s *ResultStore) Leaderboard() []*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Result, 0, len(s.order))
	for _, key := range s.order {
		if r := s.results[key]; r.Usable() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}
