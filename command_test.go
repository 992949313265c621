// command_test.go: Test cases for operation commands and their lifecycle.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agilira/kryptos"
)

func newTestFactory(store kryptos.KeyStore) *kryptos.CommandFactory {
	return kryptos.NewCommandFactory(store, &patternReader{}, kryptos.ProfileHighSecurity)
}

// seedKey stores 32 deterministic bytes and returns the identifier.
func seedKey(t *testing.T, store kryptos.KeyStore, meta kryptos.KeyMetadata) string {
	t.Helper()
	material := kryptos.NewSecureBuffer(bytes.Repeat([]byte{0x42}, kryptos.KeySize))
	defer material.Destroy()
	keyID, err := store.Store(context.Background(), material, meta)
	require.NoError(t, err)
	return keyID
}

func runCommand(t *testing.T, factory *kryptos.CommandFactory, req *kryptos.Request) *kryptos.OperationResult {
	t.Helper()
	command, err := factory.MakeCommand(req)
	require.NoError(t, err)
	if err := command.Validate(); err != nil {
		return &kryptos.OperationResult{Kind: command.Kind(), Err: err}
	}
	return command.Execute(context.Background())
}

func TestCommand_ExecuteWithoutValidate(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())
	command, err := factory.MakeCommand(&kryptos.Request{Kind: kryptos.OpGenerateKey, Length: kryptos.KeySize})
	require.NoError(t, err)

	result := command.Execute(context.Background())
	assert.ErrorIs(t, result.Err, kryptos.ErrInternal)
}

func TestCommand_ValidateTwice(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())
	command, err := factory.MakeCommand(&kryptos.Request{Kind: kryptos.OpGenerateKey, Length: kryptos.KeySize})
	require.NoError(t, err)

	require.NoError(t, command.Validate())
	assert.ErrorIs(t, command.Validate(), kryptos.ErrInternal)
}

func TestCommand_ExecuteTwice(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())
	command, err := factory.MakeCommand(&kryptos.Request{Kind: kryptos.OpGenerateKey, Length: kryptos.KeySize})
	require.NoError(t, err)
	require.NoError(t, command.Validate())

	first := command.Execute(context.Background())
	require.NoError(t, first.Err)
	first.Buffer.Destroy()

	second := command.Execute(context.Background())
	assert.ErrorIs(t, second.Err, kryptos.ErrInternal)
}

func TestGenerateKey(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpGenerateKey, Length: kryptos.KeySize})
	require.NoError(t, result.Err)
	defer result.Buffer.Destroy()
	assert.Equal(t, kryptos.KeySize, result.Buffer.Len())
}

func TestGenerateKey_RejectsNonPositiveLength(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())

	for _, length := range []int{0, -5} {
		result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpGenerateKey, Length: length})
		assert.ErrorIs(t, result.Err, kryptos.ErrInvalidInput, "length %d", length)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{})

	plaintext := []byte("command round trip payload")
	data := kryptos.NewSecureBuffer(append([]byte(nil), plaintext...))
	defer data.Destroy()

	sealed := runCommand(t, factory, &kryptos.Request{
		Kind:  kryptos.OpEncrypt,
		KeyID: keyID,
		Data:  data,
	})
	require.NoError(t, sealed.Err)
	assert.Equal(t, kryptos.ContainerMagic, string(sealed.Data[:4]))

	container := kryptos.NewSecureBuffer(append([]byte(nil), sealed.Data...))
	defer container.Destroy()

	opened := runCommand(t, factory, &kryptos.Request{
		Kind:  kryptos.OpDecrypt,
		KeyID: keyID,
		Data:  container,
	})
	require.NoError(t, opened.Err)
	defer opened.Buffer.Destroy()
	assert.Equal(t, plaintext, opened.Buffer.Bytes())
}

func TestEncrypt_RequiresKeyID(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())
	data := kryptos.NewSecureBuffer([]byte("payload"))
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpEncrypt, Data: data})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidInput)
}

func TestEncrypt_IVOverride(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{})

	iv := bytes.Repeat([]byte{0x7F}, kryptos.ContainerIVSize)
	results := make([][]byte, 2)
	for i := range results {
		data := kryptos.NewSecureBuffer([]byte("deterministic vector"))
		result := runCommand(t, factory, &kryptos.Request{
			Kind:    kryptos.OpEncrypt,
			KeyID:   keyID,
			Data:    data,
			Options: &kryptos.OperationOptions{IV: iv},
		})
		data.Destroy()
		require.NoError(t, result.Err)
		results[i] = result.Data
	}
	assert.Equal(t, results[0], results[1], "same key and IV must seal identically")
}

func TestEncrypt_RejectsBadIVOverride(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{})

	data := kryptos.NewSecureBuffer([]byte("payload"))
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{
		Kind:    kryptos.OpEncrypt,
		KeyID:   keyID,
		Data:    data,
		Options: &kryptos.OperationOptions{IV: make([]byte, 8)},
	})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidInput)
}

func TestEncrypt_UsageEnforcement(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Usage: kryptos.UsageDecrypt})

	data := kryptos.NewSecureBuffer([]byte("payload"))
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpEncrypt, KeyID: keyID, Data: data})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidKey)
}

func TestEncrypt_AlgorithmBinding(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Algorithm: kryptos.AlgorithmAES256GCM})

	data := kryptos.NewSecureBuffer([]byte("payload"))
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{
		Kind:      kryptos.OpEncrypt,
		KeyID:     keyID,
		Algorithm: kryptos.AlgorithmChaCha20Poly1305,
		Data:      data,
	})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidKey)
}

func TestDecrypt_RejectsTagLessContainer(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{})

	container := kryptos.PackContainer(make([]byte, kryptos.ContainerIVSize), []byte("short"), nil)
	data := kryptos.NewSecureBuffer(container)
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpDecrypt, KeyID: keyID, Data: data})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidMessageFormat)
}

func TestHashAndVerify(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())

	data := kryptos.NewSecureBuffer([]byte("hash this"))
	defer data.Destroy()
	hashed := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpHash, Data: data})
	require.NoError(t, hashed.Err)
	assert.Len(t, hashed.Data, 64) // high-security profile defaults to SHA-512

	verifyData := kryptos.NewSecureBuffer([]byte("hash this"))
	defer verifyData.Destroy()
	verified := runCommand(t, factory, &kryptos.Request{
		Kind:     kryptos.OpVerifyHash,
		Data:     verifyData,
		Expected: hashed.Data,
	})
	require.NoError(t, verified.Err)
	assert.True(t, verified.Verified)

	mismatchData := kryptos.NewSecureBuffer([]byte("hash that"))
	defer mismatchData.Destroy()
	mismatch := runCommand(t, factory, &kryptos.Request{
		Kind:     kryptos.OpVerifyHash,
		Data:     mismatchData,
		Expected: hashed.Data,
	})
	require.NoError(t, mismatch.Err)
	assert.False(t, mismatch.Verified)
}

func TestVerifyHash_RequiresExpected(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())
	data := kryptos.NewSecureBuffer([]byte("payload"))
	defer data.Destroy()

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpVerifyHash, Data: data})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidInput)
}

func TestImportKey_StoresMaterial(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)

	material := kryptos.NewSecureBuffer(bytes.Repeat([]byte{0x24}, kryptos.KeySize))
	defer material.Destroy()

	result := runCommand(t, factory, &kryptos.Request{
		Kind:  kryptos.OpImportKey,
		Data:  material,
		Usage: kryptos.UsageEncrypt | kryptos.UsageDecrypt,
	})
	require.NoError(t, result.Err)
	require.NotEmpty(t, result.KeyID)

	stored, meta, err := store.Retrieve(context.Background(), result.KeyID)
	require.NoError(t, err)
	defer stored.Destroy()
	assert.Equal(t, bytes.Repeat([]byte{0x24}, kryptos.KeySize), stored.Bytes())
	assert.Equal(t, kryptos.UsageEncrypt|kryptos.UsageDecrypt, meta.Usage)
}

func TestImportKey_ChecksAlgorithmLength(t *testing.T) {
	factory := newTestFactory(kryptos.NewMemoryKeyStore())

	material := kryptos.NewSecureBuffer(make([]byte, 16))
	defer material.Destroy()

	result := runCommand(t, factory, &kryptos.Request{
		Kind:      kryptos.OpImportKey,
		Algorithm: kryptos.AlgorithmAES256GCM,
		Data:      material,
	})
	assert.ErrorIs(t, result.Err, kryptos.ErrInvalidKey)
}

func TestExportKey_NotExtractable(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Extractable: false})

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpExportKey, KeyID: keyID})
	assert.ErrorIs(t, result.Err, kryptos.ErrKeyManagementFailed)
}

func TestExportKey_Raw(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Extractable: true})

	result := runCommand(t, factory, &kryptos.Request{Kind: kryptos.OpExportKey, KeyID: keyID})
	require.NoError(t, result.Err)
	defer result.Buffer.Destroy()
	assert.Equal(t, bytes.Repeat([]byte{0x42}, kryptos.KeySize), result.Buffer.Bytes())
}

func TestExportImport_PassphraseWrapped(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Extractable: true})

	exported := runCommand(t, factory, &kryptos.Request{
		Kind:  kryptos.OpExportKey,
		KeyID: keyID,
		Options: &kryptos.OperationOptions{
			Passphrase: []byte("transport passphrase"),
			KDF:        kryptos.FastKDFParams(),
		},
	})
	require.NoError(t, exported.Err)
	require.NotEmpty(t, exported.Data)
	assert.Nil(t, exported.Buffer, "wrapped export must not expose raw material")

	blob := kryptos.NewSecureBuffer(append([]byte(nil), exported.Data...))
	defer blob.Destroy()

	// The blob is self-describing, so import needs only the passphrase.
	imported := runCommand(t, factory, &kryptos.Request{
		Kind: kryptos.OpImportKey,
		Data: blob,
		Options: &kryptos.OperationOptions{
			Passphrase: []byte("transport passphrase"),
		},
	})
	require.NoError(t, imported.Err)

	restored, _, err := store.Retrieve(context.Background(), imported.KeyID)
	require.NoError(t, err)
	defer restored.Destroy()
	assert.Equal(t, bytes.Repeat([]byte{0x42}, kryptos.KeySize), restored.Bytes())
}

func TestImportKey_WrongPassphrase(t *testing.T) {
	store := kryptos.NewMemoryKeyStore()
	factory := newTestFactory(store)
	keyID := seedKey(t, store, kryptos.KeyMetadata{Extractable: true})

	exported := runCommand(t, factory, &kryptos.Request{
		Kind:  kryptos.OpExportKey,
		KeyID: keyID,
		Options: &kryptos.OperationOptions{
			Passphrase: []byte("right passphrase"),
			KDF:        kryptos.FastKDFParams(),
		},
	})
	require.NoError(t, exported.Err)

	blob := kryptos.NewSecureBuffer(append([]byte(nil), exported.Data...))
	defer blob.Destroy()

	imported := runCommand(t, factory, &kryptos.Request{
		Kind: kryptos.OpImportKey,
		Data: blob,
		Options: &kryptos.OperationOptions{
			Passphrase: []byte("wrong passphrase"),
			KDF:        kryptos.FastKDFParams(),
		},
	})
	assert.ErrorIs(t, imported.Err, kryptos.ErrDecryptionFailed)
}
