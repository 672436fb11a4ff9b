package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

// memoryStore keeps encoded snapshots in a map. Values are stored as JSON so
// they go through the same round trip as the durable drivers.
type memoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string][]byte)}
}

func (m *memoryStore) LoadRecentHistory(ctx context.Context, id string, limit int) ([]session.HistoryEntry, error) {
	return recentHistory(ctx, m, id, limit)
}

func (m *memoryStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	b, ok := m.items[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(b)
}

func (m *memoryStore) Persist(ctx context.Context, id string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored int64
	if b, ok := m.items[id]; ok {
		cur, err := decode(b)
		if err != nil {
			return err
		}
		stored = cur.Version
	}
	if stored != snap.Version {
		return ErrVersionConflict
	}

	snap.ConversationID = id
	snap.Version++
	snap.UpdatedAt = time.Now().UTC()
	b, err := encode(snap)
	if err != nil {
		return err
	}
	m.items[id] = b
	return nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string][]byte)
	return nil
}
