// Package auth stores the API bearer token used by the HTTP surface.
//
// Tokens are looked up in the system keychain first and then in the
// IGARCHIVE_API_TOKEN environment variable. Only the keychain is writable.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTokenName is the keychain entry used when none is given
const DefaultTokenName = "api_token"

// TokenStore is a backend able to hold named secrets
type TokenStore interface {
	// Get returns the token stored under name
	Get(name string) (string, error)

	// Set stores token under name
	Set(name, token string) error

	// Delete removes the token stored under name
	Delete(name string) error
}

// Manager resolves tokens across stores in priority order
type Manager struct {
	stores []TokenStore
}

// NewManager creates a manager backed by the keychain, when available, and
// the environment.
func NewManager() *Manager {
	var stores []TokenStore
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	stores = append(stores, NewEnvironmentStore())
	return &Manager{stores: stores}
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Token returns the first token found for name
func (m *Manager) Token(name string) (string, error) {
	if name == "" {
		name = DefaultTokenName
	}
	for _, s := range m.stores {
		if tok, err := s.Get(name); err == nil && tok != "" {
			return tok, nil
		}
	}
	return "", ErrTokenNotFound
}

// SetToken saves token in the first store that accepts it
func (m *Manager) SetToken(name, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	if name == "" {
		name = DefaultTokenName
	}

	var lastErr error
	for _, s := range m.stores {
		if err := s.Set(name, token); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// DeleteToken removes name from every writable store
func (m *Manager) DeleteToken(name string) error {
	if name == "" {
		name = DefaultTokenName
	}

	var deleted bool
	var lastErr error
	for _, s := range m.stores {
		if err := s.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	return ErrTokenNotFound
}

// Mask hides all but the first and last four characters of a token
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
