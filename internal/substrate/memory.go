package substrate

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process substrate. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	quota  int
	failOn map[string]error
	revs   map[string]int64
	writes int
}

var (
	_ Substrate = (*Memory)(nil)
	_ Inspector = (*Memory)(nil)
)

// MemoryOption configures a Memory substrate.
type MemoryOption func(*Memory)

// WithQuota limits the total stored bytes across all keys.
// Zero means unlimited.
func WithQuota(bytes int) MemoryOption {
	return func(m *Memory) {
		m.quota = bytes
	}
}

// NewMemory creates an empty in-memory substrate.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		data:   make(map[string][]byte),
		failOn: make(map[string]error),
		revs:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the collection stored under key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Set stores a copy of data under key.
func (m *Memory) Set(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[key]; ok {
		return err
	}

	if m.quota > 0 {
		total := len(data)
		for k, v := range m.data {
			if k != key {
				total += len(v)
			}
		}
		if total > m.quota {
			return ErrQuotaExceeded
		}
	}

	m.data[key] = append([]byte(nil), data...)
	m.revs[key]++
	m.writes++
	return nil
}

// Keys returns every written key in sorted order.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Revision returns how many times key has been written, 0 if never.
func (m *Memory) Revision(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revs[key], nil
}

// FailWrites makes every subsequent Set on key return err. A nil err
// restores normal behavior.
func (m *Memory) FailWrites(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, key)
		return
	}
	m.failOn[key] = err
}

// Writes returns the number of successful Set calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
