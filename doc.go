// doc.go: Package documentation for kryptos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package kryptos is a cryptographic operations layer built around a
// self-describing binary container and a single serialized access point.
//
// Every operation - encrypt, decrypt, hash, verify-hash, generate-key,
// import-key, export-key - is expressed as a command constructed by a
// factory and executed through the Service, which serializes operations
// that touch the same key while letting independent keys proceed
// concurrently:
//
//	store := kryptos.NewMemoryKeyStore()
//	svc := kryptos.NewService(store)
//
//	gen, _ := svc.Perform(ctx, &kryptos.Request{
//		Kind:   kryptos.OpGenerateKey,
//		Length: kryptos.KeySize,
//	})
//
//	imported, _ := svc.Perform(ctx, &kryptos.Request{
//		Kind: kryptos.OpImportKey,
//		Data: gen.Buffer,
//	})
//
//	sealed, _ := svc.Perform(ctx, &kryptos.Request{
//		Kind:  kryptos.OpEncrypt,
//		KeyID: imported.KeyID,
//		Data:  kryptos.NewSecureBuffer([]byte("payload")),
//	})
//
// Sealed payloads travel inside a versioned container (magic, version,
// IV, ciphertext, authentication tag) that decrypt operations validate
// before any key material is touched. Security profiles switch the cipher
// backend (AES-256-GCM or ChaCha20-Poly1305), the digest and the Argon2id
// cost parameters without changing any operation's contract.
//
// Key material lives in guarded memory (SecureBuffer) and inside the
// KeyStore boundary as sealed enclaves; export is refused unless the key
// was imported as extractable, and exports can be passphrase-wrapped for
// transport. Failures come back as classified errors that carry public,
// private and sensitive context fields so audit sinks can redact by
// policy.
package kryptos
