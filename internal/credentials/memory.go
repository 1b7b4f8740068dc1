package credentials

import (
	"sync"
)

// MemoryScope keeps credentials in process memory.
type MemoryScope struct {
	mu     sync.Mutex
	name   string
	values map[string]string
	err    error
}

// NewMemoryScope creates an empty in-memory scope.
func NewMemoryScope(name string) *MemoryScope {
	return &MemoryScope{name: name, values: make(map[string]string)}
}

// SetUnavailable makes every subsequent call fail with err. A nil err restores the scope.
func (m *MemoryScope) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryScope) Name() string { return "memory:" + m.name }

func (m *MemoryScope) Available() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MemoryScope) Read(f Field) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[f.Key()]
	return v, ok, nil
}

func (m *MemoryScope) Write(f Field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[f.Key()] = value
	return nil
}

func (m *MemoryScope) Delete(f Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.values, f.Key())
	return nil
}

func (m *MemoryScope) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values = make(map[string]string)
	return nil
}
