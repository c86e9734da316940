package ratelimit

import "sync"

// InflightGate admits at most one request per session at a time. A second
// request for the same session is rejected up front rather than queued, so
// a slow provider call cannot pile up concurrent turns on one conversation.
type InflightGate struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInflightGate() *InflightGate {
	return &InflightGate{active: make(map[string]struct{})}
}

// TryAcquire claims the session's slot. It returns false if a request for
// this session is already in flight. Callers that get true must call
// Release when done.
func (g *InflightGate) TryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[sessionID]; busy {
		return false
	}
	g.active[sessionID] = struct{}{}
	return true
}

// Release frees the session's slot.
func (g *InflightGate) Release(sessionID string) {
	g.mu.Lock()
	delete(g.active, sessionID)
	g.mu.Unlock()
}
