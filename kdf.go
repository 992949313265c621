// kdf.go: Argon2id key derivation for passphrase-wrapped key transport.
//
// Key material that leaves the secure-storage boundary as a passphrase-
// protected export is sealed under a key derived here. The cost parameters
// are selected by the security profile in effect.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters. These values balance security and
// interactive-use latency.
const (
	// DefaultKDFTime is the default number of Argon2id iterations.
	DefaultKDFTime = 3

	// DefaultKDFMemory is the default Argon2id memory usage in MB.
	DefaultKDFMemory = 64

	// DefaultKDFThreads is the default Argon2id parallelism.
	DefaultKDFThreads = 4

	// WrapSaltSize is the salt length carried in passphrase-wrapped exports.
	WrapSaltSize = 16
)

// Wrap blob layout:
// [1: algorithm] [4: time LE] [4: memory LE] [1: threads] [16: salt] [container]
//
// The header makes a blob self-describing: import needs only the passphrase,
// whatever profile or cost parameters the exporting side was running.
const wrapHeaderSize = 1 + 4 + 4 + 1

// Upper bounds on cost parameters accepted back from a wrap blob, so a
// crafted header cannot demand gigabytes of derivation memory.
const (
	maxWrapKDFTime    = 32
	maxWrapKDFMemory  = 1024
	maxWrapKDFThreads = 16
)

// KDFParams defines Argon2id cost parameters for passphrase-based derivation.
// A zero field falls back to the library default.
type KDFParams struct {
	// Time is the number of iterations.
	Time uint32 `json:"time,omitempty"`

	// Memory is the memory usage in MB.
	Memory uint32 `json:"memory,omitempty"`

	// Threads is the degree of parallelism. Should not exceed the number of
	// CPU cores.
	Threads uint8 `json:"threads,omitempty"`
}

// HighSecurityKDFParams returns cost parameters for the high-security
// profile: slower derivation, stronger resistance against offline attacks.
//
// Parameters: Time=5, Memory=128MB, Threads=4
func HighSecurityKDFParams() *KDFParams {
	return &KDFParams{
		Time:    5,
		Memory:  128,
		Threads: 4,
	}
}

// FastKDFParams returns cost parameters for the performance profile.
// Acceptable security margin at a fraction of the derivation cost.
//
// Parameters: Time=1, Memory=32MB, Threads=2
func FastKDFParams() *KDFParams {
	return &KDFParams{
		Time:    1,
		Memory:  32,
		Threads: 2,
	}
}

// DeriveKey derives a cipher key from a passphrase and salt using Argon2id.
//
// Argon2id resists both side-channel and time-memory trade-off attacks and is
// the only passphrase KDF this package offers. Pass nil params to use the
// library defaults (Time: 3, Memory: 64MB, Threads: 4).
//
// Parameters:
//   - passphrase: the passphrase to derive from (cannot be empty)
//   - salt: random salt (cannot be empty; WrapSaltSize bytes for exports)
//   - keyLen: desired key length in bytes (must be positive)
//   - params: custom cost parameters, or nil for defaults
func DeriveKey(passphrase, salt []byte, keyLen int, params *KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			"passphrase cannot be empty")
	}
	if len(salt) == 0 {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			"salt cannot be empty")
	}
	if keyLen <= 0 {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			"key length must be positive")
	}

	time, memory, threads := effectiveKDFParams(params)

	// Conversions are safe: keyLen validated positive above.
	key := argon2.IDKey(passphrase, salt, time, memory*1024, threads, uint32(keyLen)) // #nosec G115
	return key, nil
}

// effectiveKDFParams resolves zero or missing fields to the library defaults.
// Memory is returned in MB.
func effectiveKDFParams(params *KDFParams) (time, memory uint32, threads uint8) {
	time = DefaultKDFTime
	memory = DefaultKDFMemory
	threads = DefaultKDFThreads
	if params != nil {
		if params.Time > 0 {
			time = params.Time
		}
		if params.Memory > 0 {
			memory = params.Memory
		}
		if params.Threads > 0 {
			threads = params.Threads
		}
	}
	return time, memory, threads
}

// wrapMaterial seals key material for transport outside the storage
// boundary. The result is the wrap header, a fresh WrapSaltSize salt and a
// standard container sealed under the Argon2id-derived key.
//
// The wrap key is ephemeral, so the AEAD built from it is one-shot and never
// enters the shared cipher cache.
func wrapMaterial(random io.Reader, passphrase []byte, params *KDFParams, alg Algorithm, material []byte) ([]byte, error) {
	code, ok := algWireCode(alg)
	if !ok {
		return nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", alg),
			Public("algorithm", string(alg)))
	}
	time, memory, threads := effectiveKDFParams(params)
	if time > maxWrapKDFTime || memory > maxWrapKDFMemory || threads > maxWrapKDFThreads {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("KDF cost parameters exceed the wrap format bounds (%d/%d/%d)",
				maxWrapKDFTime, maxWrapKDFMemory, maxWrapKDFThreads))
	}

	saltBuf := getSmall(WrapSaltSize)
	defer putSmall(saltBuf)
	salt := *saltBuf
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, wrapError(err, ErrKeyManagementFailed, ErrCodeWrapFailed,
			"randomness source failed while generating wrap salt")
	}

	wrapKey, err := DeriveKey(passphrase, salt, alg.KeySizeBytes(),
		&KDFParams{Time: time, Memory: memory, Threads: threads})
	if err != nil {
		return nil, err
	}
	defer Zeroize(wrapKey)

	iv, err := randomIV(random, alg.NonceSize())
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(alg, wrapKey)
	if err != nil {
		return nil, wrapError(err, ErrKeyManagementFailed, ErrCodeWrapFailed,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}
	sealed := aead.Seal(nil, iv, material, nil)
	split := len(sealed) - alg.TagSize()
	container := PackContainer(iv, sealed[:split], sealed[split:])
	Zeroize(sealed)

	blob := make([]byte, 0, wrapHeaderSize+WrapSaltSize+len(container))
	blob = append(blob, code)
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], time)
	blob = append(blob, word[:]...)
	binary.LittleEndian.PutUint32(word[:], memory)
	blob = append(blob, word[:]...)
	blob = append(blob, threads)
	blob = append(blob, salt...)
	blob = append(blob, container...)
	return blob, nil
}

// unwrapMaterial reverses wrapMaterial. The cipher and cost parameters come
// from the blob header, not the caller. A wrong passphrase surfaces as
// ErrDecryptionFailed from the authenticated open, never a partial result.
func unwrapMaterial(passphrase, blob []byte) ([]byte, error) {
	if len(blob) <= wrapHeaderSize+WrapSaltSize {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("wrapped material too short: %d bytes", len(blob)),
			Private("blob_length", fmt.Sprintf("%d", len(blob))))
	}

	alg, ok := algFromWireCode(blob[0])
	if !ok {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("unknown cipher code %d in wrapped material", blob[0]))
	}
	time := binary.LittleEndian.Uint32(blob[1:5])
	memory := binary.LittleEndian.Uint32(blob[5:9])
	threads := blob[9]
	if time == 0 || time > maxWrapKDFTime ||
		memory == 0 || memory > maxWrapKDFMemory ||
		threads == 0 || threads > maxWrapKDFThreads {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"wrapped material declares out-of-bounds KDF cost parameters")
	}

	salt := blob[wrapHeaderSize : wrapHeaderSize+WrapSaltSize]
	iv, ciphertext, tag, err := UnpackContainer(blob[wrapHeaderSize+WrapSaltSize:])
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"wrapped material carries no authentication tag")
	}

	wrapKey, err := DeriveKey(passphrase, salt, alg.KeySizeBytes(),
		&KDFParams{Time: time, Memory: memory, Threads: threads})
	if err != nil {
		return nil, err
	}
	defer Zeroize(wrapKey)

	// Ephemeral wrap key, so the AEAD stays out of the shared cipher cache.
	aead, err := newAEAD(alg, wrapKey)
	if err != nil {
		return nil, wrapError(err, ErrDecryptionFailed, ErrCodeWrapFailed,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	defer Zeroize(sealed)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, wrapError(err, ErrDecryptionFailed, ErrCodeDecryptFailed,
			"authentication failed or wrapped material corrupted",
			Private("cipher_status", err.Error()))
	}
	return plaintext, nil
}
