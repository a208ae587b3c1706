package blobstore

import (
	"context"
	"sync"
)

// Memory serves bytes held in memory. It is used by tests and by callers that
// already have the database loaded.
type Memory struct {
	mu    sync.RWMutex
	data  []byte
	err   error
	calls int
}

func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

// SetError makes subsequent fetches fail with err until it is cleared with
// a nil error.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Fetch has been called.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *Memory) Fetch(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(m.data))
	copy(copied, m.data)
	return copied, nil
}
