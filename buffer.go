// buffer.go: Secure byte buffer with guaranteed zero-on-release semantics.
//
// SecureBuffer is the only vehicle for secret material inside this package.
// Backing storage lives in memguard guarded memory so that release wipes the
// bytes deterministically instead of waiting for collection timing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// SecureBuffer owns a mutable byte sequence and guarantees the backing
// storage is overwritten with zeros when destroyed. Construction transfers
// exclusive ownership: the source slice is wiped as part of NewSecureBuffer.
//
// A SecureBuffer is created per operation and destroyed immediately after the
// operation's result is extracted. It is never logged or printed verbatim;
// String returns a redacted placeholder.
type SecureBuffer struct {
	inner *memguard.LockedBuffer // nil for the empty buffer
}

// NewSecureBuffer takes ownership of data and moves it into guarded memory.
// The source slice is zeroed before the function returns, so the caller must
// not use it afterwards. An empty or nil slice yields a valid empty buffer.
func NewSecureBuffer(data []byte) *SecureBuffer {
	if len(data) == 0 {
		return &SecureBuffer{}
	}
	return &SecureBuffer{inner: memguard.NewBufferFromBytes(data)}
}

// NewRandomBuffer fills a new SecureBuffer of the given size from the
// supplied randomness source. The package never provides its own generator;
// callers inject one (the service defaults to crypto/rand.Reader).
func NewRandomBuffer(random io.Reader, size int) (*SecureBuffer, error) {
	if size <= 0 {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("buffer size must be positive, got %d", size),
			Public("size", fmt.Sprintf("%d", size)))
	}
	material := make([]byte, size)
	if _, err := io.ReadFull(random, material); err != nil {
		return nil, wrapError(err, ErrInternal, ErrCodeRandomness,
			"randomness source failed")
	}
	return NewSecureBuffer(material), nil
}

// Bytes returns a view of the protected contents. The view is only valid
// until Destroy is called; callers must not retain it across operations.
func (b *SecureBuffer) Bytes() []byte {
	if b == nil || b.inner == nil {
		return nil
	}
	return b.inner.Bytes()
}

// Len returns the number of bytes held.
func (b *SecureBuffer) Len() int {
	if b == nil || b.inner == nil {
		return 0
	}
	return b.inner.Size()
}

// IsAlive reports whether the buffer still holds usable contents.
// The empty buffer is always alive.
func (b *SecureBuffer) IsAlive() bool {
	if b == nil {
		return false
	}
	if b.inner == nil {
		return true
	}
	return b.inner.IsAlive()
}

// Equal compares contents in constant time. It never logs or exposes them.
func (b *SecureBuffer) Equal(other *SecureBuffer) bool {
	if b.Len() != other.Len() {
		return false
	}
	if b.Len() == 0 {
		return true
	}
	return b.inner.EqualTo(other.Bytes())
}

// Copy returns an independent SecureBuffer with the same contents.
// Destroying one does not affect the other.
func (b *SecureBuffer) Copy() *SecureBuffer {
	if b == nil || b.inner == nil {
		return &SecureBuffer{}
	}
	dup := make([]byte, b.Len())
	copy(dup, b.inner.Bytes())
	return NewSecureBuffer(dup)
}

// Destroy wipes the backing storage and releases it. Safe to call more than
// once and on the empty buffer.
func (b *SecureBuffer) Destroy() {
	if b == nil || b.inner == nil {
		return
	}
	b.inner.Destroy()
}

// Fingerprint returns a short non-cryptographic identifier for the contents,
// suitable for audit context at SensitivitySensitive. Empty for the empty or
// destroyed buffer.
func (b *SecureBuffer) Fingerprint() string {
	if b == nil || b.inner == nil || !b.inner.IsAlive() {
		return ""
	}
	return Fingerprint(b.inner.Bytes())
}

// String implements fmt.Stringer with a redacted placeholder so accidental
// formatting never leaks contents.
func (b *SecureBuffer) String() string {
	return fmt.Sprintf("SecureBuffer(%d bytes)", b.Len())
}
