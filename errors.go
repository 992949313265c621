// errors.go: Classified error taxonomy for cryptographic operations.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Public standard errors for drop-in compatibility.
// These errors can be used with errors.Is() for error checking; every failure
// reported by this package wraps exactly one of them.
var (
	// ErrInvalidInput is returned when a structural precondition fails
	// (empty identifier, non-positive length, missing field).
	ErrInvalidInput = errors.New("kryptos: invalid input")

	// ErrInvalidKey is returned when key material does not match the
	// algorithm's required size or usage flags.
	ErrInvalidKey = errors.New("kryptos: invalid key")

	// ErrInvalidMessageFormat is returned when a container cannot be unpacked.
	ErrInvalidMessageFormat = errors.New("kryptos: invalid message format")

	// ErrEncryptionFailed is returned when the underlying cipher rejects an
	// encryption request after validation passed.
	ErrEncryptionFailed = errors.New("kryptos: encryption failed")

	// ErrDecryptionFailed is returned on authentication failure or corruption.
	ErrDecryptionFailed = errors.New("kryptos: decryption failed")

	// ErrKeyManagementFailed is returned when the key storage boundary fails
	// (unknown identifier, store unavailable, non-extractable key export).
	ErrKeyManagementFailed = errors.New("kryptos: key management failed")

	// ErrUnsupportedAlgorithm is returned for algorithm identifiers outside
	// the closed set this package implements.
	ErrUnsupportedAlgorithm = errors.New("kryptos: unsupported algorithm")

	// ErrInternal is returned for programming-contract violations, e.g. an
	// undefined operation kind or a command executed twice.
	ErrInternal = errors.New("kryptos: internal error")
)

// Error codes for rich error handling
const (
	ErrCodeInvalidInput     goerrors.ErrorCode = "KRYPTOS_INVALID_INPUT"
	ErrCodeInvalidKey       goerrors.ErrorCode = "KRYPTOS_INVALID_KEY"
	ErrCodeInvalidFormat    goerrors.ErrorCode = "KRYPTOS_INVALID_FORMAT"
	ErrCodeEncryptFailed    goerrors.ErrorCode = "KRYPTOS_ENCRYPT_FAILED"
	ErrCodeDecryptFailed    goerrors.ErrorCode = "KRYPTOS_DECRYPT_FAILED"
	ErrCodeKeyManagement    goerrors.ErrorCode = "KRYPTOS_KEY_MANAGEMENT"
	ErrCodeUnsupportedAlgo  goerrors.ErrorCode = "KRYPTOS_UNSUPPORTED_ALGORITHM"
	ErrCodeInternal         goerrors.ErrorCode = "KRYPTOS_INTERNAL"
	ErrCodeRandomness       goerrors.ErrorCode = "KRYPTOS_RANDOMNESS"
	ErrCodeStorageBoundary  goerrors.ErrorCode = "KRYPTOS_STORAGE_BOUNDARY"
	ErrCodeWrapFailed       goerrors.ErrorCode = "KRYPTOS_WRAP_FAILED"
	ErrCodeStreamingFailure goerrors.ErrorCode = "KRYPTOS_STREAMING"
)

// Sensitivity classifies a piece of error or audit context so a logging
// collaborator can redact appropriately. Raw key or plaintext bytes are never
// attached at any level; SensitivitySensitive marks derived values such as
// fingerprints that should still be withheld from shared logs.
type Sensitivity int

const (
	// SensitivityPublic marks context safe for any log sink (operation kind,
	// key identifier, lengths).
	SensitivityPublic Sensitivity = iota

	// SensitivityPrivate marks context for operator-only sinks
	// (malformed-message details, underlying status codes).
	SensitivityPrivate

	// SensitivitySensitive marks context that must be redacted everywhere
	// except explicitly trusted sinks (key fingerprints).
	SensitivitySensitive
)

// String returns the lowercase name of the sensitivity level.
func (s Sensitivity) String() string {
	switch s {
	case SensitivityPublic:
		return "public"
	case SensitivityPrivate:
		return "private"
	case SensitivitySensitive:
		return "sensitive"
	default:
		return "unknown"
	}
}

// Field is a single classified key/value pair attached to errors and audit
// events. Values are always strings; callers format lengths and status codes
// before attaching them.
type Field struct {
	Key         string
	Value       string
	Sensitivity Sensitivity
}

// Public builds a public-safe context field.
func Public(key, value string) Field {
	return Field{Key: key, Value: value, Sensitivity: SensitivityPublic}
}

// Private builds an operator-only context field.
func Private(key, value string) Field {
	return Field{Key: key, Value: value, Sensitivity: SensitivityPrivate}
}

// Sensitive builds a context field that log sinks redact by default.
func Sensitive(key, value string) Field {
	return Field{Key: key, Value: value, Sensitivity: SensitivitySensitive}
}

// ClassifiedError pairs a sentinel-wrapped rich error with privacy-classified
// context fields. errors.Is works against the package sentinels and the
// go-errors code remains reachable through the chain.
type ClassifiedError struct {
	err    error
	fields []Field
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string { return e.err.Error() }

// Unwrap exposes the sentinel-wrapped chain for errors.Is / errors.As.
func (e *ClassifiedError) Unwrap() error { return e.err }

// Fields returns the classified context attached to the error.
func (e *ClassifiedError) Fields() []Field { return e.fields }

// newError builds a classified error from scratch: a go-errors rich error
// carrying code and message, wrapped with the domain sentinel.
func newError(sentinel error, code goerrors.ErrorCode, message string, fields ...Field) error {
	richErr := goerrors.New(code, message)
	return &ClassifiedError{
		err:    fmt.Errorf("%w: %w", sentinel, richErr),
		fields: fields,
	}
}

// wrapError re-classifies a lower-level failure into the domain taxonomy.
// The cause is retained for diagnostics but never surfaced in public fields.
func wrapError(cause, sentinel error, code goerrors.ErrorCode, message string, fields ...Field) error {
	richErr := goerrors.Wrap(cause, code, message)
	return &ClassifiedError{
		err:    fmt.Errorf("%w: %w", sentinel, richErr),
		fields: fields,
	}
}

// ErrorFields extracts the classified context from an error chain.
// It returns nil when the chain carries no ClassifiedError.
func ErrorFields(err error) []Field {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Fields()
	}
	return nil
}
