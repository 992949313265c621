// cipher.go: Algorithm identifiers, security profiles and AEAD construction.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm identifies a symmetric authenticated cipher from the closed set
// this package implements. Both ciphers use a 32-byte key, a 12-byte nonce
// and a 16-byte tag, so every container has the same shape regardless of the
// backend a security profile selects.
type Algorithm string

const (
	// AlgorithmAES256GCM is AES-256 in Galois/Counter Mode.
	AlgorithmAES256GCM Algorithm = "aes-256-gcm"

	// AlgorithmChaCha20Poly1305 is the ChaCha20-Poly1305 AEAD.
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// KeySize is the required key size in bytes for every cipher in the set.
const KeySize = 32

// Valid reports whether the identifier names an implemented cipher.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmAES256GCM, AlgorithmChaCha20Poly1305:
		return true
	default:
		return false
	}
}

// KeySizeBytes returns the exact key length the cipher requires.
func (a Algorithm) KeySizeBytes() int { return KeySize }

// NonceSize returns the exact nonce length the cipher requires.
func (a Algorithm) NonceSize() int { return ContainerIVSize }

// TagSize returns the authentication-tag length the cipher produces.
func (a Algorithm) TagSize() int { return ContainerTagSize }

// Algorithm wire codes, shared by the stream header and the wrap-blob header.
const (
	wireAlgAES256GCM        = byte(1)
	wireAlgChaCha20Poly1305 = byte(2)
)

// algWireCode returns the one-byte wire code for a cipher.
func algWireCode(alg Algorithm) (byte, bool) {
	switch alg {
	case AlgorithmAES256GCM:
		return wireAlgAES256GCM, true
	case AlgorithmChaCha20Poly1305:
		return wireAlgChaCha20Poly1305, true
	default:
		return 0, false
	}
}

// algFromWireCode reverses algWireCode.
func algFromWireCode(code byte) (Algorithm, bool) {
	switch code {
	case wireAlgAES256GCM:
		return AlgorithmAES256GCM, true
	case wireAlgChaCha20Poly1305:
		return AlgorithmChaCha20Poly1305, true
	default:
		return "", false
	}
}

// HashAlgorithm identifies a digest function from the closed set.
type HashAlgorithm string

const (
	// HashSHA256 is SHA-256.
	HashSHA256 HashAlgorithm = "sha-256"

	// HashSHA512 is SHA-512.
	HashSHA512 HashAlgorithm = "sha-512"
)

// Valid reports whether the identifier names an implemented hash.
func (h HashAlgorithm) Valid() bool {
	switch h {
	case HashSHA256, HashSHA512:
		return true
	default:
		return false
	}
}

// SecurityProfile selects among interchangeable cipher backends and KDF cost
// parameters without changing any command's external contract.
type SecurityProfile string

const (
	// ProfileHighSecurity favours conservative choices: AES-256-GCM and
	// high-cost Argon2id parameters.
	ProfileHighSecurity SecurityProfile = "high-security"

	// ProfilePerformance favours throughput: ChaCha20-Poly1305 (fast without
	// AES hardware) and lighter Argon2id parameters.
	ProfilePerformance SecurityProfile = "performance"
)

// Valid reports whether the profile is one of the defined set.
func (p SecurityProfile) Valid() bool {
	switch p {
	case ProfileHighSecurity, ProfilePerformance:
		return true
	default:
		return false
	}
}

// DefaultAlgorithm returns the cipher a profile selects when the caller does
// not name one explicitly.
func (p SecurityProfile) DefaultAlgorithm() Algorithm {
	if p == ProfilePerformance {
		return AlgorithmChaCha20Poly1305
	}
	return AlgorithmAES256GCM
}

// DefaultHash returns the digest a profile selects when the caller does not
// name one explicitly.
func (p SecurityProfile) DefaultHash() HashAlgorithm {
	if p == ProfileHighSecurity {
		return HashSHA512
	}
	return HashSHA256
}

// KDFParams returns the Argon2id cost parameters the profile selects for
// passphrase-wrapped key export and import.
func (p SecurityProfile) KDFParams() *KDFParams {
	if p == ProfilePerformance {
		return FastKDFParams()
	}
	return HighSecurityKDFParams()
}

// Global AEAD cache - avoids aes.NewCipher + cipher.NewGCM overhead on hot
// paths. Entries are keyed by algorithm plus key fingerprint so two keys
// never collide on the same cipher instance.
var (
	aeadCacheMu sync.RWMutex
	aeadCache   = make(map[string]cipher.AEAD)
)

// aeadFor returns a cached AEAD for the algorithm and key, constructing and
// caching one if necessary. The key must already be validated to KeySize.
func aeadFor(alg Algorithm, key []byte) (cipher.AEAD, error) {
	cacheKey := string(alg) + ":" + Fingerprint(key)

	aeadCacheMu.RLock()
	if aead, exists := aeadCache[cacheKey]; exists {
		aeadCacheMu.RUnlock()
		return aead, nil
	}
	aeadCacheMu.RUnlock()

	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}

	aeadCacheMu.Lock()
	aeadCache[cacheKey] = aead
	aeadCacheMu.Unlock()

	return aead, nil
}

// newAEAD constructs the AEAD for an algorithm without caching.
func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
		}
		return gcm, nil
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
		return aead, nil
	default:
		return nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", alg),
			Public("algorithm", string(alg)))
	}
}
