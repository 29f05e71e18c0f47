package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BackendType identifies a calendar backend implementation.
type BackendType string

const (
	BackendMemory   BackendType = "memory"
	BackendSQLite   BackendType = "sqlite"
	BackendPostgres BackendType = "postgres"
	BackendCalDAV   BackendType = "caldav"
)

// Errors returned by the calendar application layer.
var (
	ErrEmptyAgentID   = errors.New("agent id cannot be empty")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrDuplicateEvent = errors.New("event id already exists")
	ErrUnknownBackend = errors.New("unknown calendar backend")
)

// ClientFactory creates a calendar client for a backend.
type ClientFactory func(ctx context.Context) (Client, error)

// ProviderRegistry maps backend types to client factories. Backends register
// themselves at wiring time; the container resolves the configured one.
type ProviderRegistry struct {
	mu        sync.RWMutex
	factories map[BackendType]ClientFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[BackendType]ClientFactory)}
}

// Register adds a factory for a backend type, replacing any previous one.
func (r *ProviderRegistry) Register(backend BackendType, factory ClientFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create builds a client for the given backend.
func (r *ProviderRegistry) Create(ctx context.Context, backend BackendType) (Client, error) {
	r.mu.RLock()
	factory, ok := r.factories[backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	return factory(ctx)
}

// HasBackend reports whether a factory is registered for the backend.
func (r *ProviderRegistry) HasBackend(backend BackendType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[backend]
	return ok
}

// SupportedBackends returns all registered backend types.
func (r *ProviderRegistry) SupportedBackends() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backends := make([]BackendType, 0, len(r.factories))
	for b := range r.factories {
		backends = append(backends, b)
	}
	return backends
}
