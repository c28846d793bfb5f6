package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/botloop/game/engine"
	"github.com/wricardo/botloop/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// idAttempts bounds retries when a generated id collides.
const idAttempts = 16

// Manager keeps game sessions in memory. Ids are matched case-insensitively.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*service.Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		now:      time.Now,
	}
}

func key(id string) string { return strings.ToLower(id) }

func checkID(id string) error {
	if strings.TrimSpace(id) != id || strings.ContainsAny(id, "/?#") {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Create starts a session playing levelID. An empty id gets a random 4-character one.
func (m *Manager) Create(id, levelID string, config *engine.LevelConfig) (*service.Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	eng, err := engine.NewEngine(levelID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		if id, err = m.freeIDLocked(); err != nil {
			return nil, err
		}
	} else if _, taken := m.sessions[key(id)]; taken {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyExists, id)
	}

	now := m.now()
	sess := &service.Session{
		ID:             id,
		Engine:         eng,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[key(id)] = sess
	return sess, nil
}

func (m *Manager) freeIDLocked() (string, error) {
	for i := 0; i < idAttempts; i++ {
		b := make([]byte, 2)
		_, _ = rand.Read(b)
		candidate := hex.EncodeToString(b)
		if _, taken := m.sessions[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free id after %d attempts", ErrSessionAlreadyExists, idAttempts)
}

func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[key(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns every session, oldest first.
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	list := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		list = append(list, sess)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key(id)]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, key(id))
	return nil
}

// UpdateLastAccessed marks the session as used now, postponing its expiry.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key(id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.LastAccessedAt = m.now()
	return nil
}

// CleanupExpiredSessions drops sessions idle for longer than maxAge and returns their ids, sorted.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	var expired []string
	for k, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, k)
			expired = append(expired, sess.ID)
		}
	}
	sort.Strings(expired)
	return expired
}

// RunCleanup sweeps expired sessions every interval until ctx is done. onExpire, when not nil,
// is called with the id of every dropped session.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration, onExpire func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := m.CleanupExpiredSessions(maxAge)
			if len(expired) == 0 {
				continue
			}
			slog.Info("expired sessions removed", "count", len(expired), "remaining", m.Count())
			if onExpire != nil {
				for _, id := range expired {
					onExpire(id)
				}
			}
		}
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
