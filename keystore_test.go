// keystore_test.go: Test cases for the in-memory key store.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agilira/kryptos"
)

func storedKey(t *testing.T, store *kryptos.MemoryKeyStore, meta kryptos.KeyMetadata) string {
	t.Helper()
	material := kryptos.NewSecureBuffer([]byte("0123456789abcdef0123456789abcdef"))
	defer material.Destroy()
	keyID, err := store.Store(context.Background(), material, meta)
	require.NoError(t, err)
	return keyID
}

func TestMemoryKeyStore_StoreDefaults(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	keyID := storedKey(t, store, kryptos.KeyMetadata{})
	require.NotEmpty(t, keyID)

	_, meta, err := store.Retrieve(context.Background(), keyID)
	require.NoError(t, err)
	assert.Equal(t, keyID, meta.ID)
	assert.Equal(t, kryptos.UsageAll, meta.Usage)
	assert.False(t, meta.CreatedAt.IsZero())
	assert.False(t, meta.Extractable)
}

func TestMemoryKeyStore_CallerKeepsOwnership(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	material := kryptos.NewSecureBuffer([]byte("0123456789abcdef0123456789abcdef"))
	defer material.Destroy()

	_, err := store.Store(context.Background(), material, kryptos.KeyMetadata{})
	require.NoError(t, err)

	assert.True(t, material.IsAlive())
	assert.Equal(t, 32, material.Len())
}

func TestMemoryKeyStore_RetrieveReturnsIndependentCopies(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	keyID := storedKey(t, store, kryptos.KeyMetadata{})

	first, _, err := store.Retrieve(context.Background(), keyID)
	require.NoError(t, err)
	first.Destroy()

	second, _, err := store.Retrieve(context.Background(), keyID)
	require.NoError(t, err)
	defer second.Destroy()
	assert.Equal(t, 32, second.Len())
}

func TestMemoryKeyStore_NotFound(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()

	_, _, err := store.Retrieve(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)

	err = store.Delete(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)
}

func TestMemoryKeyStore_DuplicateID(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	storedKey(t, store, kryptos.KeyMetadata{ID: "fixed-id"})

	material := kryptos.NewSecureBuffer([]byte("fedcba9876543210fedcba9876543210"))
	defer material.Destroy()
	_, err := store.Store(context.Background(), material, kryptos.KeyMetadata{ID: "fixed-id"})
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)
}

func TestMemoryKeyStore_RejectsEmptyMaterial(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()

	_, err := store.Store(context.Background(), nil, kryptos.KeyMetadata{})
	assert.ErrorIs(t, err, kryptos.ErrInvalidInput)

	empty := kryptos.NewSecureBuffer(nil)
	_, err = store.Store(context.Background(), empty, kryptos.KeyMetadata{})
	assert.ErrorIs(t, err, kryptos.ErrInvalidInput)
}

func TestMemoryKeyStore_DeleteAndList(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	ctx := context.Background()

	first := storedKey(t, store, kryptos.KeyMetadata{})
	second := storedKey(t, store, kryptos.KeyMetadata{})

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, store.Delete(ctx, first))

	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].ID)

	_, _, err = store.Retrieve(ctx, first)
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)
}

func TestMemoryKeyStore_AbandonedContext(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	keyID := storedKey(t, store, kryptos.KeyMetadata{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Retrieve(ctx, keyID)
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)

	material := kryptos.NewSecureBuffer([]byte("fedcba9876543210fedcba9876543210"))
	defer material.Destroy()
	_, err = store.Store(ctx, material, kryptos.KeyMetadata{})
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)

	assert.ErrorIs(t, store.Delete(ctx, keyID), kryptos.ErrKeyManagementFailed)

	_, err = store.List(ctx)
	assert.ErrorIs(t, err, kryptos.ErrKeyManagementFailed)
}
