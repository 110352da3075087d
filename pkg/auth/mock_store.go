package auth

import "sync"

// MockStore is an in-memory TokenStore for tests
type MockStore struct {
	mu     sync.RWMutex
	tokens map[string]string

	// Error injection for testing
	GetError    error
	SetError    error
	DeleteError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]string)}
}

func (m *MockStore) Get(name string) (string, error) {
	if m.GetError != nil {
		return "", m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	tok, ok := m.tokens[name]
	if !ok {
		return "", ErrTokenNotFound
	}
	return tok, nil
}

func (m *MockStore) Set(name, token string) error {
	if m.SetError != nil {
		return m.SetError
	}
	if name == "" || token == "" {
		return ErrInvalidToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[name] = token
	return nil
}

func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[name]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, name)
	return nil
}

// Count returns the number of stored tokens
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// NewMockManager creates a Manager over a fresh mock store
func NewMockManager() (*Manager, *MockStore) {
	ms := NewMockStore()
	return NewManagerWithStores(ms), ms
}
