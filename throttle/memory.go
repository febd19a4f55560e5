package throttle

import (
	"context"
	"sync"
)

// MemoryKV is a process-local KV, used in tests.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// MemoryBackend keeps one MemoryKV per visitor.
type MemoryBackend struct {
	mu       sync.Mutex
	visitors map[string]*MemoryKV
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{visitors: make(map[string]*MemoryKV)}
}

func (b *MemoryBackend) ForVisitor(visitorID string) KV {
	b.mu.Lock()
	defer b.mu.Unlock()
	kv, ok := b.visitors[visitorID]
	if !ok {
		kv = NewMemoryKV()
		b.visitors[visitorID] = kv
	}
	return kv
}
