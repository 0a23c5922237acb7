// Package memory is an in-process [store.Store] used in tests and when no
// database is configured. Entries are kept per session up to a limit.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/captionlens/internal/store"
)

// Store keeps entries in memory. The zero value is not usable; call [New].
type Store struct {
	limit int

	mu       sync.RWMutex
	sessions map[string][]store.Entry
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store that keeps at most limit entries per session.
// limit <= 0 keeps everything.
func New(limit int) *Store {
	return &Store{limit: limit, sessions: make(map[string][]store.Entry)}
}

// AppendLines implements [store.Store].
func (s *Store) AppendLines(_ context.Context, sessionID string, lines []store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(sessionID, lines...)
	return nil
}

// AppendSummary implements [store.Store].
func (s *Store) AppendSummary(_ context.Context, sessionID string, summary store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(sessionID, summary)
	return nil
}

func (s *Store) append(sessionID string, entries ...store.Entry) {
	all := append(s.sessions[sessionID], entries...)
	if s.limit > 0 && len(all) > s.limit {
		all = append([]store.Entry(nil), all[len(all)-s.limit:]...)
	}
	s.sessions[sessionID] = all
}

// Recent implements [store.Store].
func (s *Store) Recent(_ context.Context, sessionID string, limit int) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, ok := s.sessions[sessionID]
	if !ok || len(all) == 0 {
		return nil, fmt.Errorf("memory store: session %q: %w", sessionID, store.ErrNotFound)
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]store.Entry, len(all))
	copy(out, all)
	return out, nil
}

// Sessions returns the ids of all sessions with entries.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Ping implements [store.Store].
func (s *Store) Ping(context.Context) error { return nil }

// Close implements [store.Store].
func (s *Store) Close() {}
