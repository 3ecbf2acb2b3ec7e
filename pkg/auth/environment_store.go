package auth

import (
	"os"
	"time"
)

// EnvRequestData is the environment variable holding raw request data
const EnvRequestData = "FBSCRAPER_REQUEST_DATA"

// EnvironmentStore reads a single account from FBSCRAPER_REQUEST_DATA. It is
// read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account under the requested name, or
// "default" when name is empty
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	raw := os.Getenv(EnvRequestData)
	if raw == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "default"
	}

	return &Account{
		Name:         name,
		RequestData:  raw,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(EnvRequestData) != ""
}
