// errors_internal_test.go: Test cases for the classified error constructors.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"errors"
	"testing"

	goerrors "github.com/agilira/go-errors"
)

// The code constants must satisfy goerrors.ErrorCode directly, so both
// constructors can hand them to goerrors.New and goerrors.Wrap unconverted.
func TestErrorCodes_CarryThroughConstructors(t *testing.T) {
	codes := []goerrors.ErrorCode{
		ErrCodeInvalidInput,
		ErrCodeInvalidKey,
		ErrCodeInvalidFormat,
		ErrCodeEncryptFailed,
		ErrCodeDecryptFailed,
		ErrCodeKeyManagement,
		ErrCodeUnsupportedAlgo,
		ErrCodeInternal,
		ErrCodeRandomness,
		ErrCodeStorageBoundary,
		ErrCodeWrapFailed,
		ErrCodeStreamingFailure,
	}

	seen := make(map[goerrors.ErrorCode]bool, len(codes))
	for _, code := range codes {
		if code == "" {
			t.Fatal("error code must not be empty")
		}
		if seen[code] {
			t.Fatalf("duplicate error code %q", code)
		}
		seen[code] = true

		built := newError(ErrInternal, code, "constructed for code check")
		if !errors.Is(built, ErrInternal) {
			t.Fatalf("sentinel lost for code %q", code)
		}

		wrapped := wrapError(errors.New("low-level cause"), ErrInternal, code, "wrapped for code check")
		if !errors.Is(wrapped, ErrInternal) {
			t.Fatalf("sentinel lost when wrapping with code %q", code)
		}
	}
}

func TestNewError_FieldsReachable(t *testing.T) {
	err := newError(ErrInvalidInput, ErrCodeInvalidInput, "bad input",
		Public("operation", "encrypt"),
		Private("detail", "short iv"))

	fields := ErrorFields(err)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != "operation" || fields[0].Sensitivity != SensitivityPublic {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
}
