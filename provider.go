// provider.go: Pluggable key-storage provider management.
//
// The KeyStore boundary can be backed by external providers - OS keychains,
// cloud KMS front-ends, hardware modules - loaded through the
// github.com/agilira/go-plugins framework. The manager tracks registered
// providers, initializes them with their configuration and hands out healthy
// instances. The in-process memory provider ships as the default.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"context"
	"fmt"
	"sync"
	"time"

	goplugins "github.com/agilira/go-plugins"
)

// StoreCapability names a feature a key-storage provider supports.
type StoreCapability string

const (
	// CapabilityPersistent marks providers whose keys survive process restart.
	CapabilityPersistent StoreCapability = "persistent"

	// CapabilityExtract marks providers that allow material to leave the store.
	CapabilityExtract StoreCapability = "extract"

	// CapabilityHardwareBacked marks providers holding material in hardware.
	CapabilityHardwareBacked StoreCapability = "hardware_backed"
)

// KeyStoreProvider is the interface key-storage plugins implement.
// Implementations must handle errors gracefully; the engine re-classifies
// every provider failure into the domain taxonomy at the KeyStore boundary.
type KeyStoreProvider interface {
	// Name returns the provider name (e.g. "memory", "keychain").
	Name() string

	// Capabilities returns the supported feature set.
	Capabilities() []StoreCapability

	// Initialize prepares the provider with its configuration.
	Initialize(ctx context.Context, config map[string]interface{}) error

	// Close releases provider resources.
	Close() error

	// IsHealthy reports whether the provider can serve requests.
	IsHealthy() bool

	// Open returns the KeyStore boundary backed by this provider.
	Open(ctx context.Context) (KeyStore, error)
}

// StoreRequest is the wire request for out-of-process provider plugins.
type StoreRequest struct {
	Operation  string                 `json:"operation"` // store, retrieve, delete, list
	KeyID      string                 `json:"key_id"`
	Material   []byte                 `json:"material,omitempty"`
	Metadata   *KeyMetadata           `json:"metadata,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// StoreResponse is the wire response for out-of-process provider plugins.
type StoreResponse struct {
	Success  bool          `json:"success"`
	KeyID    string        `json:"key_id,omitempty"`
	Material []byte        `json:"material,omitempty"`
	Metadata *KeyMetadata  `json:"metadata,omitempty"`
	Entries  []KeyMetadata `json:"entries,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ProviderManagerConfig configures the provider manager.
type ProviderManagerConfig struct {
	// DefaultProvider is the provider handed out when none is named.
	DefaultProvider string `json:"default_provider"`

	// ProviderConfigs holds per-provider initialization options.
	ProviderConfigs map[string]map[string]interface{} `json:"provider_configs"`

	// OperationTimeout bounds provider initialization.
	OperationTimeout time.Duration `json:"operation_timeout"`
}

// ProviderManager tracks key-storage providers, both in-process ones and
// plugins loaded through the go-plugins framework.
type ProviderManager struct {
	mu              sync.RWMutex
	pluginManager   *goplugins.Manager[StoreRequest, StoreResponse]
	activeProviders map[string]KeyStoreProvider
	defaultProvider string
	config          *ProviderManagerConfig
}

// NewProviderManager creates a provider manager. The plugin manager may be
// nil when only in-process providers are registered.
func NewProviderManager(config *ProviderManagerConfig, pluginManager *goplugins.Manager[StoreRequest, StoreResponse]) *ProviderManager {
	if config == nil {
		config = &ProviderManagerConfig{
			OperationTimeout: 10 * time.Second,
		}
	}
	return &ProviderManager{
		pluginManager:   pluginManager,
		activeProviders: make(map[string]KeyStoreProvider),
		config:          config,
	}
}

// Register initializes a provider with its configuration and makes it
// available for lookup. The first registered provider, or the configured
// default, becomes the one Get("") returns.
func (m *ProviderManager) Register(name string, provider KeyStoreProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if provider == nil {
		return newError(ErrInvalidInput, ErrCodeInvalidInput,
			"provider cannot be nil")
	}

	ctx := context.Background()
	if timeout := m.config.OperationTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := provider.Initialize(ctx, m.config.ProviderConfigs[name]); err != nil {
		return wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			fmt.Sprintf("failed to initialize provider %s", name),
			Public("provider", name))
	}

	m.activeProviders[name] = provider
	if m.defaultProvider == "" || m.config.DefaultProvider == name {
		m.defaultProvider = name
	}
	return nil
}

// Get returns a healthy provider by name; the empty name selects the default.
func (m *ProviderManager) Get(name string) (KeyStoreProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.defaultProvider
	}
	provider, exists := m.activeProviders[name]
	if !exists {
		return nil, newError(ErrKeyManagementFailed, ErrCodeStorageBoundary,
			fmt.Sprintf("provider %s not found", name),
			Public("provider", name))
	}
	if !provider.IsHealthy() {
		return nil, newError(ErrKeyManagementFailed, ErrCodeStorageBoundary,
			fmt.Sprintf("provider %s failed its health check", name),
			Public("provider", name))
	}
	return provider, nil
}

// Close shuts down every registered provider, reporting the first failure
// after attempting all of them.
func (m *ProviderManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, provider := range m.activeProviders {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
				fmt.Sprintf("failed to close provider %s", name),
				Public("provider", name))
		}
	}
	m.activeProviders = make(map[string]KeyStoreProvider)
	return firstErr
}

// MemoryProvider is the in-process provider over MemoryKeyStore. It is
// always healthy and requires no configuration.
type MemoryProvider struct {
	mu    sync.Mutex
	store *MemoryKeyStore
	open  bool
}

// NewMemoryProvider creates an uninitialized memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

// Name implements KeyStoreProvider.
func (p *MemoryProvider) Name() string { return "memory" }

// Capabilities implements KeyStoreProvider.
func (p *MemoryProvider) Capabilities() []StoreCapability {
	return []StoreCapability{CapabilityExtract}
}

// Initialize implements KeyStoreProvider.
func (p *MemoryProvider) Initialize(ctx context.Context, _ map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = NewMemoryKeyStore()
	p.open = true
	return nil
}

// Close implements KeyStoreProvider.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = nil
	p.open = false
	return nil
}

// IsHealthy implements KeyStoreProvider.
func (p *MemoryProvider) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Open implements KeyStoreProvider.
func (p *MemoryProvider) Open(ctx context.Context) (KeyStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"storage call abandoned")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, newError(ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"memory provider not initialized")
	}
	return p.store, nil
}
