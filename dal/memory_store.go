package dal

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	val       []byte
	expiresAt time.Time // zero: never
}

// MemoryStore is a concurrency-safe in-memory IStore. It backs tests and
// the degraded mode when the durable store is unavailable.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

func (st *MemoryStore) Get(key string) ([]byte, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	entry, ok := st.data[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(time.Now()) {
		return nil, nil
	}
	res := make([]byte, len(entry.val))
	copy(res, entry.val)
	return res, nil
}

func (st *MemoryStore) Put(key string, value []byte, ttl time.Duration) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry := memoryEntry{val: make([]byte, len(value))}
	copy(entry.val, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	st.data[key] = entry
	return nil
}

func (st *MemoryStore) Delete(key string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.data, key)
	return nil
}

func (st *MemoryStore) ListByPrefix(prefix string) ([]string, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, entry := range st.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !entry.expiresAt.IsZero() && !entry.expiresAt.After(now) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
