package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a stored value with its write timestamps
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage holds small documents such as the latest dataset. Keys are
// case-insensitive.
type KeyValueStorage interface {
	// Get returns ErrKeyNotFound for a missing key
	Get(ctx context.Context, key string) (string, error)

	// GetPair returns the value with its timestamps
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)

	// Set keeps CreatedAt of an existing key
	Set(ctx context.Context, key string, value string, description string) error

	Delete(ctx context.Context, key string) error

	// ListByPrefix returns matching pairs, most recently updated first
	ListByPrefix(ctx context.Context, prefix string) ([]KeyValuePair, error)
}
