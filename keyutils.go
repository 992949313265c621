// keyutils.go: Key material helpers - zeroization and fingerprinting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// Zeroize securely wipes a byte slice from memory.
//
// This function overwrites all bytes in the slice with zeros to prevent
// sensitive data from remaining in memory after use. It modifies the original
// slice in place; SecureBuffer calls it implicitly on Destroy, this export
// covers plain slices that cross the package boundary.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Fingerprint generates a short identifier for key material (non-cryptographic).
//
// The fingerprint is the first 8 bytes of the SHA-256 hash, formatted as a
// 16-character hexadecimal string. It identifies keys in audit context and
// cache lookups without exposing the material itself. Returns the empty
// string for empty input.
func Fingerprint(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	hash := sha256.Sum256(key)
	return fmt.Sprintf("%016x", hash[:8])
}

// EncodeMaterial encodes raw bytes as standard base64 for text transport of
// wrapped key blobs and containers. Callers moving raw key material should
// prefer the passphrase-wrapped export form.
func EncodeMaterial(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeMaterial reverses EncodeMaterial.
func DecodeMaterial(s string) ([]byte, error) {
	if s == "" {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			"encoded material cannot be empty")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, wrapError(err, ErrInvalidInput, ErrCodeInvalidInput,
			"invalid base64 material")
	}
	return data, nil
}

// randomIV draws a fresh initialisation vector of the given size from the
// injected randomness source.
func randomIV(random io.Reader, size int) ([]byte, error) {
	iv := make([]byte, size)
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, wrapError(err, ErrInternal, ErrCodeRandomness,
			"randomness source failed while generating IV")
	}
	return iv, nil
}
