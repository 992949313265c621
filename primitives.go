// primitives.go: Symmetric encryption, decryption, hashing and verification.
//
// The responsibility of this layer is strictly input validation, buffer
// sizing, and mapping underlying cipher status into the domain error
// taxonomy. The cryptographic work itself is delegated to the platform's
// audited implementations (crypto/aes, crypto/cipher, x/crypto).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
)

// Seal encrypts plaintext with the given key and IV, returning ciphertext and
// authentication tag separately so they can be packed into a container.
//
// Preconditions are enforced before any primitive is invoked: the key must be
// exactly the algorithm's required size and the IV exactly its nonce size.
// Violations fail fast with ErrInvalidKey / ErrInvalidInput; nothing is
// silently truncated or padded. Empty plaintext is supported and produces a
// tag-only payload.
func Seal(alg Algorithm, key, iv, plaintext []byte) (ciphertext, tag []byte, err error) {
	if !alg.Valid() {
		return nil, nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", alg),
			Public("algorithm", string(alg)))
	}
	if len(key) != alg.KeySizeBytes() {
		return nil, nil, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key must be %d bytes for %s, got %d", alg.KeySizeBytes(), alg, len(key)),
			Public("algorithm", string(alg)),
			Public("key_length", fmt.Sprintf("%d", len(key))))
	}
	if len(iv) != alg.NonceSize() {
		return nil, nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("IV must be %d bytes for %s, got %d", alg.NonceSize(), alg, len(iv)),
			Public("algorithm", string(alg)),
			Public("iv_length", fmt.Sprintf("%d", len(iv))))
	}

	aead, err := aeadFor(alg, key)
	if err != nil {
		return nil, nil, wrapError(err, ErrEncryptionFailed, ErrCodeEncryptFailed,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}

	sealed := aead.Seal(nil, iv, plaintext, nil) // #nosec G407 -- IV is caller-validated, random per operation
	split := len(sealed) - alg.TagSize()
	return sealed[:split], sealed[split:], nil
}

// Open decrypts ciphertext with the given key, IV and tag. A failure status
// from the underlying cipher always maps to ErrDecryptionFailed carrying the
// status as private diagnostic context, never the key or plaintext.
func Open(alg Algorithm, key, iv, ciphertext, tag []byte) ([]byte, error) {
	if !alg.Valid() {
		return nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", alg),
			Public("algorithm", string(alg)))
	}
	if len(key) != alg.KeySizeBytes() {
		return nil, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key must be %d bytes for %s, got %d", alg.KeySizeBytes(), alg, len(key)),
			Public("algorithm", string(alg)),
			Public("key_length", fmt.Sprintf("%d", len(key))))
	}
	if len(iv) != alg.NonceSize() {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("IV must be %d bytes for %s, got %d", alg.NonceSize(), alg, len(iv)),
			Public("algorithm", string(alg)),
			Public("iv_length", fmt.Sprintf("%d", len(iv))))
	}
	if len(tag) != alg.TagSize() {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("tag must be %d bytes for %s, got %d", alg.TagSize(), alg, len(tag)),
			Public("algorithm", string(alg)),
			Public("tag_length", fmt.Sprintf("%d", len(tag))))
	}

	aead, err := aeadFor(alg, key)
	if err != nil {
		return nil, wrapError(err, ErrDecryptionFailed, ErrCodeDecryptFailed,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}

	// Reassemble ciphertext||tag in pooled scratch; the concatenation never
	// outlives this call and is zeroed on return to the pool.
	scratch := getScratch()
	defer putScratch(scratch)
	*scratch = append(*scratch, ciphertext...)
	*scratch = append(*scratch, tag...)

	plaintext, err := aead.Open(nil, iv, *scratch, nil)
	if err != nil {
		return nil, wrapError(err, ErrDecryptionFailed, ErrCodeDecryptFailed,
			"authentication failed or ciphertext corrupted",
			Public("algorithm", string(alg)),
			Private("cipher_status", err.Error()))
	}
	return plaintext, nil
}

// Digest computes the digest of data under the named hash algorithm.
// The same input always yields the same digest.
func Digest(alg HashAlgorithm, data []byte) ([]byte, error) {
	switch alg {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case HashSHA512:
		sum := sha512.Sum512(data)
		return sum[:], nil
	default:
		return nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown hash %q", alg),
			Public("algorithm", string(alg)))
	}
}

// VerifyDigest recomputes the digest of data and compares it against the
// expected value in constant time, so the comparison leaks nothing about how
// many leading bytes matched. Digest length is public and may short-circuit.
func VerifyDigest(alg HashAlgorithm, data, expected []byte) (bool, error) {
	computed, err := Digest(alg, data)
	if err != nil {
		return false, err
	}
	if len(expected) != len(computed) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
