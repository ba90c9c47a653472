package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/config"
	"github.com/room4-2/interactive-avatar/logging"
	"github.com/room4-2/interactive-avatar/metrics"
)

// ErrMaxSessions is returned when the server is at capacity
var ErrMaxSessions = errors.New("maximum sessions reached")

// IDPrefix starts every session id
const IDPrefix = "session_"

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex
	store    *redisStore
	config   *config.Config
	handler  Handler
	logger   zerolog.Logger
}

// NewManager creates a session manager. Redis is optional: when it cannot
// be reached sessions live in memory only.
func NewManager(cfg *config.Config, handler Handler, logger zerolog.Logger) *Manager {
	logger = logging.Component(logger, "sessions")

	store, err := connectRedis(cfg.RedisURL, cfg.RedisPassword, cfg.SessionTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️ Redis unavailable, sessions kept in memory only")
	} else if store != nil {
		logger.Info().Str("addr", cfg.RedisURL).Msg("🗄️ Mirroring sessions to Redis")
	}

	return &Manager{
		sessions: make(map[string]*ClientSession),
		store:    store,
		config:   cfg,
		handler:  handler,
		logger:   logger,
	}
}

// NewID returns a fresh session id
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// CreateSession registers a new session for an upgraded connection
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, ErrMaxSessions
	}

	id := NewID()
	logger := sm.logger.With().Str("session", logging.ShortID(id)).Logger()
	session := NewClientSession(id, clientConn, sm.handler, sm.config.HistoryLimit, sm.config.MaxAudioBytes, logger)
	session.onRequestDone = sm.persistHistory

	sm.sessions[id] = session
	metrics.ActiveSessions.Inc()

	if err := sm.store.save(ctx, session); err != nil {
		logger.Warn().Err(err).Msg("Failed to mirror session to Redis")
	}
	return session, nil
}

func (sm *Manager) persistHistory(cs *ClientSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sm.store.saveHistory(ctx, cs); err != nil {
		cs.logger.Warn().Err(err).Msg("Failed to mirror history to Redis")
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if exists {
		delete(sm.sessions, sessionID)
		metrics.ActiveSessions.Dec()
	}
	sm.mu.Unlock()

	if !exists {
		return nil
	}
	session.Close()
	return sm.store.remove(ctx, sessionID)
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions closes sessions idle longer than the session
// timeout. Sessions with a request in flight are left alone.
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) int {
	now := time.Now()

	sm.mu.RLock()
	var stale []string
	for id, session := range sm.sessions {
		if !session.Busy() && now.Sub(session.Activity()) > sm.config.SessionTimeout {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		sm.logger.Info().Str("session", logging.ShortID(id)).Msg("🧹 Closing inactive session")
		if err := sm.RemoveSession(ctx, id); err != nil {
			sm.logger.Warn().Err(err).Msg("Failed to remove session from Redis")
		}
	}
	return len(stale)
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions and waits, bounded by ctx, for their
// requests to unwind before the Redis client is closed.
func (sm *Manager) Shutdown(ctx context.Context) {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*ClientSession)
	sm.mu.Unlock()

	for _, session := range sessions {
		session.Close()
		metrics.ActiveSessions.Dec()
	}
	for id, session := range sessions {
		if err := session.WaitContext(ctx); err != nil {
			sm.logger.Warn().Err(err).Str("session", logging.ShortID(id)).Msg("⚠️ Request still running at shutdown")
		}
		if err := sm.store.remove(ctx, id); err != nil {
			sm.logger.Warn().Err(err).Str("session", logging.ShortID(id)).Msg("Failed to remove session from Redis")
		}
	}

	if err := sm.store.close(); err != nil {
		sm.logger.Warn().Err(err).Msg("Failed to close Redis client")
	}
}
