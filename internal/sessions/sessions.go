// Package sessions keeps per-conversation history in memory. Histories
// are bounded by a turn cap and reaped after an idle TTL.
package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/conciergehq/concierge/pkg/models"
)

// Config bounds session growth.
type Config struct {
	// MaxTurns caps messages kept per session; the oldest are dropped
	// first. Zero means the default of 200.
	MaxTurns int `yaml:"max_turns"`

	// IdleTTL evicts sessions untouched for this long. Zero disables
	// eviction.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepInterval is how often the sweeper scans for idle sessions.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// MemoryStore holds histories keyed by session id.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*History
	config   Config
	logger   *slog.Logger
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(cfg Config, logger *slog.Logger) *MemoryStore {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 200
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]*History),
		config:   cfg,
		logger:   logger.With("component", "sessions"),
	}
}

// Get returns the history for the session, creating it on first use.
// Concurrent callers for the same id always receive the same history.
func (s *MemoryStore) Get(sessionID string) *History {
	s.mu.RLock()
	h, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		h.touch()
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions[sessionID]; ok {
		h.touch()
		return h
	}
	h = &History{
		sessionID: sessionID,
		maxTurns:  s.config.MaxTurns,
		lastUsed:  time.Now(),
	}
	s.sessions[sessionID] = h
	return h
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper evicts idle sessions periodically until the context is
// canceled. It is a no-op when no idle TTL is configured.
func (s *MemoryStore) StartSweeper(ctx context.Context) {
	if s.config.IdleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, h := range s.sessions {
		if now.Sub(h.lastUsedAt()) > s.config.IdleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted idle sessions", "count", evicted, "remaining", len(s.sessions))
	}
}

// History is the ordered message log of one conversation. All methods
// are safe for concurrent use.
type History struct {
	mu        sync.Mutex
	sessionID string
	turns     []models.Message
	maxTurns  int
	lastUsed  time.Time
}

// Append records one message at the end of the history, dropping the
// oldest messages once the turn cap is reached.
func (h *History) Append(role models.Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, models.Message{
		SessionID: h.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	if len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
	h.lastUsed = time.Now()
}

// Messages returns a copy of the history in insertion order.
func (h *History) Messages() []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) touch() {
	h.mu.Lock()
	h.lastUsed = time.Now()
	h.mu.Unlock()
}

func (h *History) lastUsedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}
