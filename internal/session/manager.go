package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/cogito/internal/agent"
	"github.com/nidhogg/cogito/internal/provider"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "cogito:session:"

// Factory builds a fresh agent for a new session. Agents built by one
// factory share the knowledge base and service registry.
type Factory func() *agent.ThinkingAgent

// Manager maps session IDs to agents and serializes queries within each
// session, so one conversation history is never updated concurrently.
// When a Redis client is configured, histories survive restarts.
type Manager struct {
	factory Factory
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id    string
	agent *agent.ThinkingAgent
	mu    sync.Mutex
}

// NewManager creates a Manager. rdb may be nil, in which case sessions are
// memory-only.
func NewManager(factory Factory, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		factory:  factory,
		rdb:      rdb,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// get returns the session for id, creating it if needed. An empty id
// allocates a new session.
func (m *Manager) get(ctx context.Context, id string) *session {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}

	s := &session{id: id, agent: m.factory()}
	if history := m.loadHistory(ctx, id); len(history) > 0 {
		s.agent.SetHistory(history)
	}
	m.sessions[id] = s
	return s
}

// lookup returns the live session for id, or nil when none exists. Unlike
// get it never allocates, so read-only paths cannot leak sessions.
func (m *Manager) lookup(id string) *session {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Process runs a query inside the session and returns the response along
// with the session ID, which callers pass back to continue the
// conversation.
func (m *Manager) Process(ctx context.Context, sessionID, query string, queryContext map[string]any) (*agent.Response, string, error) {
	s := m.get(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	resp, err := s.agent.ProcessQuery(ctx, query, queryContext)
	if err != nil {
		return nil, s.id, err
	}
	m.saveHistory(ctx, s.id, s.agent.History())
	return resp, s.id, nil
}

// Explain describes how the session's agent would approach the query
// without executing the pipeline.
func (m *Manager) Explain(ctx context.Context, sessionID, query string) (string, string, error) {
	s := m.get(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.agent.ExplainReasoning(ctx, query)
	return out, s.id, err
}

// History returns the session's conversation history. Unknown IDs fall back
// to the persisted history, or nothing, without creating a session.
func (m *Manager) History(ctx context.Context, sessionID string) []provider.Message {
	s := m.lookup(sessionID)
	if s == nil {
		if sessionID == "" {
			return nil
		}
		return m.loadHistory(ctx, sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.History()
}

// ClearHistory drops the session's conversation history, in memory and in
// Redis. Unknown IDs only touch the persisted copy; no session is created.
func (m *Manager) ClearHistory(ctx context.Context, sessionID string) {
	if s := m.lookup(sessionID); s != nil {
		s.mu.Lock()
		s.agent.ClearHistory()
		s.mu.Unlock()
	}
	if sessionID != "" && m.rdb != nil {
		if err := m.rdb.Del(ctx, keyPrefix+sessionID+":history").Err(); err != nil {
			m.logger.Warn("session history delete failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
}

// Sessions reports how many sessions are live in memory.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) loadHistory(ctx context.Context, id string) []provider.Message {
	if m.rdb == nil {
		return nil
	}
	data, err := m.rdb.Get(ctx, keyPrefix+id+":history").Bytes()
	if err != nil {
		if err != redis.Nil {
			m.logger.Warn("session history load failed", zap.String("session", id), zap.Error(err))
		}
		return nil
	}
	var history []provider.Message
	if err := json.Unmarshal(data, &history); err != nil {
		m.logger.Warn("session history corrupt", zap.String("session", id), zap.Error(err))
		return nil
	}
	return history
}

func (m *Manager) saveHistory(ctx context.Context, id string, history []provider.Message) {
	if m.rdb == nil {
		return
	}
	data, err := json.Marshal(history)
	if err != nil {
		return
	}
	if err := m.rdb.Set(ctx, keyPrefix+id+":history", data, m.ttl).Err(); err != nil {
		m.logger.Warn("session history save failed", zap.String("session", id), zap.Error(err))
	}
}
