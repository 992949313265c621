// kdf_cache_test.go: Test cases for wrap-key isolation from the cipher cache.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"bytes"
	"crypto/rand"
	"testing"
)

// Wrap keys are derived per export from a fresh salt, so caching their AEADs
// would grow the cipher cache without bound and retain every ephemeral key
// schedule. The wrap path must leave the cache untouched.
func TestWrapMaterial_EphemeralKeysStayOutOfCipherCache(t *testing.T) {
	material := bytes.Repeat([]byte{0x42}, KeySize)
	passphrase := []byte("cache-isolation-passphrase")

	cacheLen := func() int {
		aeadCacheMu.RLock()
		defer aeadCacheMu.RUnlock()
		return len(aeadCache)
	}

	before := cacheLen()
	for i := 0; i < 10; i++ {
		blob, err := wrapMaterial(rand.Reader, passphrase, FastKDFParams(), AlgorithmAES256GCM, material)
		if err != nil {
			t.Fatalf("wrap failed: %v", err)
		}
		raw, err := unwrapMaterial(passphrase, blob)
		if err != nil {
			t.Fatalf("unwrap failed: %v", err)
		}
		if !bytes.Equal(raw, material) {
			t.Fatal("round trip did not restore the material")
		}
		Zeroize(raw)
	}

	if after := cacheLen(); after != before {
		t.Errorf("cipher cache grew from %d to %d entries across wrap round trips", before, after)
	}
}
