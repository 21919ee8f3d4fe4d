package habits

import (
	"context"
	"sync"
)

// MemoryState is an in-process StateStore.
type MemoryState struct {
	mu      sync.Mutex
	pending *Suggestion
	status  map[string]Status
}

func NewMemoryState() *MemoryState {
	return &MemoryState{status: map[string]Status{}}
}

func (m *MemoryState) Pending(context.Context) (Suggestion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Suggestion{}, false, nil
	}
	return *m.pending, true, nil
}

func (m *MemoryState) SetPending(_ context.Context, s Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &s
	m.status[s.Tag] = StatusSuggested
	return nil
}

func (m *MemoryState) Resolve(_ context.Context, tag string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil && m.pending.Tag == tag {
		m.pending = nil
	}
	m.status[tag] = status
	return nil
}

func (m *MemoryState) Seen(_ context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.status[tag]
	return ok, nil
}
