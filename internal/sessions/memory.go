package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/agentd/internal/monitor"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// MemoryStore provides an in-memory Store implementation for testing and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*chatmodel.Session
	metrics  map[string][]monitor.Summary
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*chatmodel.Session{},
		metrics:  map[string][]monitor.Summary{},
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, channel chatmodel.Channel, mode string) (*chatmodel.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	session := &chatmodel.Session{
		ID:        uuid.NewString(),
		Channel:   channel,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[session.ID] = session
	return session.Clone(), nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*chatmodel.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg chatmodel.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.AppendBounded(msg)
	return nil
}

func (m *MemoryStore) RecordMetric(ctx context.Context, sessionID string, summary monitor.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	m.metrics[sessionID] = append(m.metrics[sessionID], summary)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*chatmodel.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*chatmodel.Session
	for _, session := range m.sessions {
		if opts.Channel != "" && session.Channel != opts.Channel {
			continue
		}
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(out) {
		return []*chatmodel.Session{}, nil
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return out[start:end], nil
}
