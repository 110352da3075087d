package auth

import "os"

// EnvVar holds the token when no keychain entry exists
const EnvVar = "IGARCHIVE_API_TOKEN"

// EnvironmentStore reads the token from the environment. It is read only
// and ignores the token name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Get returns IGARCHIVE_API_TOKEN
func (e *EnvironmentStore) Get(string) (string, error) {
	if tok := os.Getenv(EnvVar); tok != "" {
		return tok, nil
	}
	return "", ErrTokenNotFound
}

// Set is not supported for environment variables
func (e *EnvironmentStore) Set(string, string) error {
	return ErrStoreUnavailable
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}
