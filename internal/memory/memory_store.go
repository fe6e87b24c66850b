package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore 把事件保存在进程内，用于开发与测试。
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
	now    func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string][]Event),
		now:    time.Now,
	}
}

func storeKey(memoryID, actorID, sessionID string) string {
	return memoryID + "/" + actorID + "/" + sessionID
}

func (s *InMemoryStore) CreateEvent(_ context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	key := storeKey(event.MemoryID, event.ActorID, event.SessionID)
	s.events[key] = append(s.events[key], event)
	return event, nil
}

func (s *InMemoryStore) ListEvents(_ context.Context, memoryID, actorID, sessionID string, max int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.events[storeKey(memoryID, actorID, sessionID)]
	if max > 0 && len(all) > max {
		all = all[len(all)-max:]
	}
	out := make([]Event, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
