package templatestore

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

// Memory keeps templates in process memory, in creation order.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]mapping.Template
	order []string
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]mapping.Template), now: time.Now}
}

// seed replaces the contents of m with ts. Used by File after reading disk.
func (m *Memory) seed(ts []mapping.Template) {
	m.byID = make(map[string]mapping.Template, len(ts))
	m.order = m.order[:0]
	for _, t := range ts {
		if _, dup := m.byID[t.ID]; dup {
			continue
		}
		m.byID[t.ID] = clone(t)
		m.order = append(m.order, t.ID)
	}
}

func (m *Memory) Save(ctx context.Context, t mapping.Template) (mapping.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t = mapping.NewRecord(clone(t), m.now())
	m.byID[t.ID] = t
	m.order = append(m.order, t.ID)
	logWrite(ctx, KindMemory, "save", t.ID)
	return clone(t), nil
}

func (m *Memory) Load(context.Context) ([]mapping.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]mapping.Template, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, clone(m.byID[id]))
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, id string, p mapping.Patch) (mapping.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return mapping.Template{}, notFound(ctx, KindMemory, "update", id)
	}
	t = p.Apply(t, m.now())
	m.byID[id] = clone(t)
	logWrite(ctx, KindMemory, "update", id)
	return clone(t), nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return notFound(ctx, KindMemory, "delete", id)
	}
	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	logWrite(ctx, KindMemory, "delete", id)
	return nil
}

func (m *Memory) IncrementUsage(ctx context.Context, id string, at time.Time) (mapping.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return mapping.Template{}, notFound(ctx, KindMemory, "use", id)
	}
	t = mapping.RecordUse(t, at)
	m.byID[id] = t
	logWrite(ctx, KindMemory, "use", id)
	return clone(t), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

