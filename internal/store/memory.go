package store

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records map[key]Record
	closed  bool
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[key]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get implements Store. A missing record returns nil, nil.
func (m *Memory) Get(ctx context.Context, pk, sk string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.records[key{pk, sk}]
	if !ok {
		return nil, nil
	}
	rec.Data = append([]byte(nil), rec.Data...)
	return &rec, nil
}

// Put implements Store. It writes unconditionally and bumps the version.
func (m *Memory) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	k := key{rec.PK, rec.SK}
	m.write(k, rec, m.records[k].Version)
	return nil
}

// PutIfVersion implements Store. expected 0 means the record must not exist.
func (m *Memory) PutIfVersion(ctx context.Context, rec Record, expected int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	k := key{rec.PK, rec.SK}
	current, exists := m.records[k]
	switch {
	case expected == 0 && exists:
		return false, nil
	case expected != 0 && (!exists || current.Version != expected):
		return false, nil
	}
	m.write(k, rec, expected)
	return true, nil
}

func (m *Memory) write(k key, rec Record, prev int64) {
	rec.Version = prev + 1
	rec.UpdatedAt = m.now()
	rec.Data = append([]byte(nil), rec.Data...)
	m.records[k] = rec
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Close implements Store. Operations after Close return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
