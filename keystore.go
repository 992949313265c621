// keystore.go: Secure key storage boundary and in-memory reference store.
//
// The engine never holds raw key bytes longer than one operation's lifetime;
// the identifier-to-material mapping lives behind the KeyStore interface.
// The in-memory implementation keeps material encrypted at rest in memguard
// enclaves. Persistence formats are out of scope; external stores plug in
// through provider.go.
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

	"github.com/agilira/go-timecache"
	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// KeyUsage is a bit set of the operations a stored key may serve.
type KeyUsage uint8

const (
	// UsageEncrypt allows the key to encrypt payloads.
	UsageEncrypt KeyUsage = 1 << iota

	// UsageDecrypt allows the key to decrypt payloads.
	UsageDecrypt

	// UsageWrap allows the key to wrap or unwrap other keys.
	UsageWrap
)

// UsageAll grants every defined usage.
const UsageAll = UsageEncrypt | UsageDecrypt | UsageWrap

// Can reports whether the usage set includes the requested operation.
func (u KeyUsage) Can(op KeyUsage) bool { return u&op != 0 }

// KeyMetadata describes a stored key. The engine references keys by
// identifier only; metadata never contains material.
type KeyMetadata struct {
	// ID is the opaque key identifier. Generated when empty on Store.
	ID string `json:"id"`

	// Algorithm the key was created for.
	Algorithm Algorithm `json:"algorithm"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// Usage is the set of operations the key may serve.
	Usage KeyUsage `json:"usage"`

	// Extractable controls whether the material may leave the store through
	// an export operation.
	Extractable bool `json:"extractable"`
}

// KeyStore is the secure-storage boundary. Implementations own the only
// shared resource in the system - the identifier-to-material mapping - and
// must be safe for concurrent use. Calls accept a context because storage is
// one of the two boundaries where an operation may suspend.
type KeyStore interface {
	// Store persists key material under meta.ID, generating an identifier
	// when none is given, and returns the identifier in use. The material is
	// copied; the caller keeps ownership of its buffer.
	Store(ctx context.Context, material *SecureBuffer, meta KeyMetadata) (string, error)

	// Retrieve returns an independent copy of the material and its metadata.
	// The caller must destroy the returned buffer after use.
	Retrieve(ctx context.Context, keyID string) (*SecureBuffer, KeyMetadata, error)

	// Delete removes a key and wipes its material.
	Delete(ctx context.Context, keyID string) error

	// List returns metadata for every stored key.
	List(ctx context.Context) ([]KeyMetadata, error)
}

// MemoryKeyStore is the in-process KeyStore. Material rests inside memguard
// enclaves, so it stays encrypted in memory between operations and is opened
// only for the copy handed to the caller.
type MemoryKeyStore struct {
	mu      sync.RWMutex
	keys    map[string]*memguard.Enclave
	entries map[string]KeyMetadata
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys:    make(map[string]*memguard.Enclave),
		entries: make(map[string]KeyMetadata),
	}
}

// Store implements KeyStore.
func (s *MemoryKeyStore) Store(ctx context.Context, material *SecureBuffer, meta KeyMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"storage call abandoned")
	}
	if material == nil || material.Len() == 0 {
		return "", newError(ErrInvalidInput, ErrCodeInvalidInput,
			"key material cannot be empty")
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = timecache.CachedTime().UTC()
	}
	if meta.Usage == 0 {
		meta.Usage = UsageAll
	}

	// NewEnclave wipes its input, so seal a private copy and leave the
	// caller's buffer intact.
	dup := make([]byte, material.Len())
	copy(dup, material.Bytes())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[meta.ID]; exists {
		Zeroize(dup)
		return "", newError(ErrKeyManagementFailed, ErrCodeKeyManagement,
			fmt.Sprintf("key %s already exists", meta.ID),
			Public("key_id", meta.ID))
	}
	s.keys[meta.ID] = memguard.NewEnclave(dup)
	s.entries[meta.ID] = meta
	return meta.ID, nil
}

// Retrieve implements KeyStore.
func (s *MemoryKeyStore) Retrieve(ctx context.Context, keyID string) (*SecureBuffer, KeyMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, KeyMetadata{}, wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"storage call abandoned")
	}
	if keyID == "" {
		return nil, KeyMetadata{}, newError(ErrInvalidInput, ErrCodeInvalidInput,
			"key identifier cannot be empty")
	}

	s.mu.RLock()
	enclave, exists := s.keys[keyID]
	meta := s.entries[keyID]
	s.mu.RUnlock()

	if !exists {
		return nil, KeyMetadata{}, newError(ErrKeyManagementFailed, ErrCodeKeyManagement,
			fmt.Sprintf("key %s not found", keyID),
			Public("key_id", keyID))
	}

	view, err := enclave.Open()
	if err != nil {
		return nil, KeyMetadata{}, wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"failed to open key enclave",
			Public("key_id", keyID))
	}
	dup := make([]byte, view.Size())
	copy(dup, view.Bytes())
	view.Destroy()

	return NewSecureBuffer(dup), meta, nil
}

// Delete implements KeyStore.
func (s *MemoryKeyStore) Delete(ctx context.Context, keyID string) error {
	if err := ctx.Err(); err != nil {
		return wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"storage call abandoned")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[keyID]; !exists {
		return newError(ErrKeyManagementFailed, ErrCodeKeyManagement,
			fmt.Sprintf("key %s not found", keyID),
			Public("key_id", keyID))
	}
	delete(s.keys, keyID)
	delete(s.entries, keyID)
	return nil
}

// List implements KeyStore.
func (s *MemoryKeyStore) List(ctx context.Context) ([]KeyMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapError(err, ErrKeyManagementFailed, ErrCodeStorageBoundary,
			"storage call abandoned")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyMetadata, 0, len(s.entries))
	for _, meta := range s.entries {
		out = append(out, meta)
	}
	return out, nil
}
