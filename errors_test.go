// errors_test.go: Test cases for the classified error taxonomy.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos_test

import (
	"errors"
	"testing"

	"github.com/agilira/kryptos"
)

func TestErrors_SentinelMatching(t *testing.T) {
	_, _, _, err := kryptos.UnpackContainer([]byte("garbage"))
	if !errors.Is(err, kryptos.ErrInvalidMessageFormat) {
		t.Errorf("expected ErrInvalidMessageFormat, got %v", err)
	}
	if errors.Is(err, kryptos.ErrDecryptionFailed) {
		t.Error("format error must not match the decryption sentinel")
	}
}

func TestErrors_FieldsSurvivesWrapping(t *testing.T) {
	_, _, _, err := kryptos.UnpackContainer(nil)
	fields := kryptos.ErrorFields(err)
	if len(fields) == 0 {
		t.Fatal("expected classified fields on the format error")
	}
	if fields[0].Sensitivity != kryptos.SensitivityPrivate {
		t.Errorf("container diagnostics should be private, got %v", fields[0].Sensitivity)
	}

	wrapped := errors.Join(errors.New("outer"), err)
	if len(kryptos.ErrorFields(wrapped)) == 0 {
		t.Error("fields should be reachable through a wrapped chain")
	}
}

func TestErrors_FieldsNilWithoutClassification(t *testing.T) {
	if kryptos.ErrorFields(errors.New("plain")) != nil {
		t.Error("plain errors carry no classified fields")
	}
	if kryptos.ErrorFields(nil) != nil {
		t.Error("nil error carries no classified fields")
	}
}

func TestErrors_FieldConstructors(t *testing.T) {
	cases := []struct {
		field kryptos.Field
		want  kryptos.Sensitivity
	}{
		{kryptos.Public("k", "v"), kryptos.SensitivityPublic},
		{kryptos.Private("k", "v"), kryptos.SensitivityPrivate},
		{kryptos.Sensitive("k", "v"), kryptos.SensitivitySensitive},
	}
	for _, tc := range cases {
		if tc.field.Sensitivity != tc.want {
			t.Errorf("field %q: expected sensitivity %v, got %v", tc.field.Key, tc.want, tc.field.Sensitivity)
		}
		if tc.field.Key != "k" || tc.field.Value != "v" {
			t.Errorf("field constructor mangled key/value: %+v", tc.field)
		}
	}
}
