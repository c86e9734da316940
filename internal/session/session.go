package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session not found")

// Session is one conversation: its identity and retained window.
type Session struct {
	ID        string    `json:"id"`
	Window    *Window   `json:"window"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}

// Manager hands out sessions from a store, creating them on first use.
type Manager struct {
	store     Store
	windowCap int
}

func NewManager(store Store, windowCap int) *Manager {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Manager{store: store, windowCap: windowCap}
}

// GetOrCreate loads the session for id, or creates a fresh one. An empty
// id mints a new session with a generated id.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		sess := &Session{ID: uuid.NewString(), Window: NewWindow(m.windowCap), UpdatedAt: time.Now()}
		if err := m.store.Put(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}

	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sess = &Session{ID: id, Window: NewWindow(m.windowCap), UpdatedAt: time.Now()}
		if err := m.store.Put(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Window == nil {
		sess.Window = NewWindow(m.windowCap)
	}
	return sess, nil
}

// Save persists the session after a completed exchange.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	return m.store.Put(ctx, sess)
}

// Reset clears the session's window but keeps its identity, so the next
// request starts a fresh conversation under the same id.
func (m *Manager) Reset(ctx context.Context, id string) error {
	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sess.Window.Clear()
	sess.UpdatedAt = time.Now()
	return m.store.Put(ctx, sess)
}

// MemoryStore keeps sessions in process memory with a TTL enforced on
// read. Suitable for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session), ttl: ttl}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && time.Since(sess.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// RedisStore persists sessions as JSON values with a TTL, letting multiple
// gateway instances share conversation state.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("prism:session:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}
