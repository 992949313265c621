// command.go: One command object per operation kind.
//
// A command instance moves through Constructed -> Validated -> Executed and
// runs at most once; callers needing a retry construct a new command.
// Validate checks structural preconditions only and short-circuits before any
// cryptographic work; Execute performs the operation and reports an
// OperationResult, succeeded or failed, instead of raising.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// OperationKind enumerates the closed set of operations the engine performs.
type OperationKind string

const (
	// OpEncrypt seals a plaintext into a packed container.
	OpEncrypt OperationKind = "encrypt"

	// OpDecrypt opens a packed container back into plaintext.
	OpDecrypt OperationKind = "decrypt"

	// OpHash computes a digest.
	OpHash OperationKind = "hash"

	// OpVerifyHash checks a digest in constant time.
	OpVerifyHash OperationKind = "verify-hash"

	// OpGenerateKey draws fresh key material from the randomness source.
	OpGenerateKey OperationKind = "generate-key"

	// OpImportKey moves key material into the storage boundary.
	OpImportKey OperationKind = "import-key"

	// OpExportKey moves key material out of the storage boundary.
	OpExportKey OperationKind = "export-key"
)

// Valid reports whether the kind is one of the defined operations.
func (k OperationKind) Valid() bool {
	switch k {
	case OpEncrypt, OpDecrypt, OpHash, OpVerifyHash, OpGenerateKey, OpImportKey, OpExportKey:
		return true
	default:
		return false
	}
}

// OperationOptions is the optional per-call configuration. Defaults apply
// for every absent field.
type OperationOptions struct {
	// IV overrides the random initialisation vector. Must match the cipher's
	// nonce size exactly when set. Reusing an IV under the same key breaks
	// the cipher's guarantees; overrides are for deterministic test vectors.
	IV []byte

	// Passphrase switches key export and import to the wrapped form: the
	// material travels as a self-describing blob sealed under an Argon2id-
	// derived key instead of leaving the boundary raw.
	Passphrase []byte

	// KDF overrides the profile's Argon2id cost parameters for a wrapped
	// export. Ignored on import, where the blob names its own parameters.
	KDF *KDFParams
}

// Request is the operation request contract: an operation kind, an opaque
// key identifier, algorithm selectors, payloads and optional options.
// Commands read from it; they never mutate it.
type Request struct {
	// Kind is the requested operation.
	Kind OperationKind

	// KeyID names the key involved, where the operation needs one.
	KeyID string

	// Algorithm selects the cipher; empty means the profile default.
	Algorithm Algorithm

	// Hash selects the digest; empty means the profile default.
	Hash HashAlgorithm

	// Data is the operation payload: plaintext for encrypt, a packed
	// container for decrypt, input data for hash/verify, key material for
	// import. The caller keeps ownership and destroys it after the result
	// is extracted.
	Data *SecureBuffer

	// Expected is the digest to check for verify-hash.
	Expected []byte

	// Length is the requested key length in bytes for generate-key.
	Length int

	// Usage and Extractable describe imported keys.
	Usage       KeyUsage
	Extractable bool

	// Options is the optional per-call configuration.
	Options *OperationOptions
}

// options returns the request options, never nil.
func (r *Request) options() *OperationOptions {
	if r.Options == nil {
		return &OperationOptions{}
	}
	return r.Options
}

// OperationResult is the tagged success/failure outcome of one operation.
// Exactly one of the payload fields is meaningful, selected by Kind; a
// failure carries only the classified error, never a raw buffer.
type OperationResult struct {
	// Kind echoes the operation that produced the result.
	Kind OperationKind

	// Buffer carries secret success payloads: decrypted plaintext, generated
	// or exported key material. The caller must destroy it.
	Buffer *SecureBuffer

	// Data carries non-secret success payloads: packed containers, digests,
	// wrapped key blobs.
	Data []byte

	// Verified carries the verify-hash outcome.
	Verified bool

	// KeyID carries the identifier of an imported key.
	KeyID string

	// Err is the classified failure, nil on success.
	Err error
}

// Succeeded reports whether the operation completed without error.
func (r *OperationResult) Succeeded() bool { return r.Err == nil }

// Command is one executable operation. Validate must be called before
// Execute; both are single-shot.
type Command interface {
	// Kind identifies the operation.
	Kind() OperationKind

	// Validate checks structural preconditions without touching any
	// primitive or collaborator.
	Validate() error

	// Execute performs the operation. The context covers the storage and
	// randomness boundaries, the only points where the command may suspend.
	Execute(ctx context.Context) *OperationResult
}

// commandEnv carries the collaborators a command executes against.
type commandEnv struct {
	store   KeyStore
	random  io.Reader
	profile SecurityProfile
}

// commandState tracks the per-instance lifecycle.
type commandState int

const (
	stateConstructed commandState = iota
	stateValidated
	stateExecuted
)

// baseCommand implements the state machine shared by every command kind.
type baseCommand struct {
	kind  OperationKind
	state commandState
}

// Kind implements Command.
func (c *baseCommand) Kind() OperationKind { return c.kind }

// beginValidate enforces that validation happens once, first.
func (c *baseCommand) beginValidate() error {
	if c.state != stateConstructed {
		return newError(ErrInternal, ErrCodeInternal,
			fmt.Sprintf("%s command validated twice", c.kind))
	}
	return nil
}

// beginExecute enforces validate-before-execute and at-most-once execution.
func (c *baseCommand) beginExecute() error {
	switch c.state {
	case stateValidated:
		c.state = stateExecuted
		return nil
	case stateExecuted:
		return newError(ErrInternal, ErrCodeInternal,
			fmt.Sprintf("%s command executed twice", c.kind))
	default:
		return newError(ErrInternal, ErrCodeInternal,
			fmt.Sprintf("%s command executed without validation", c.kind))
	}
}

// markValidated advances the state machine after successful validation.
func (c *baseCommand) markValidated() { c.state = stateValidated }

// failure builds a failed result for this command.
func (c *baseCommand) failure(err error) *OperationResult {
	return &OperationResult{Kind: c.kind, Err: err}
}

// Shared struct validator; validator.Validate is safe for concurrent use.
var structValidator = validator.New()

// checkStruct runs tag-based structural validation and maps violations into
// ErrInvalidInput with the offending fields as public context.
func checkStruct(v interface{}) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if errors.As(err, &violations) {
		names := make([]string, 0, len(violations))
		fields := make([]Field, 0, len(violations))
		for _, violation := range violations {
			names = append(names, violation.Field())
			fields = append(fields, Public("field_"+violation.Field(), violation.Tag()))
		}
		return newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("structural validation failed: %s", strings.Join(names, ", ")),
			fields...)
	}
	return wrapError(err, ErrInternal, ErrCodeInternal, "struct validation error")
}

// checkIVOverride validates an explicit IV override against the cipher.
func checkIVOverride(opts *OperationOptions, alg Algorithm) error {
	if len(opts.IV) == 0 {
		return nil
	}
	if len(opts.IV) != alg.NonceSize() {
		return newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("IV override must be %d bytes for %s, got %d",
				alg.NonceSize(), alg, len(opts.IV)),
			Public("iv_length", fmt.Sprintf("%d", len(opts.IV))))
	}
	return nil
}

// retrieveFor fetches a key and enforces its usage flags and algorithm
// binding. The caller owns the returned buffer.
func retrieveFor(ctx context.Context, env commandEnv, keyID string, usage KeyUsage, alg Algorithm) (*SecureBuffer, KeyMetadata, error) {
	key, meta, err := env.store.Retrieve(ctx, keyID)
	if err != nil {
		return nil, KeyMetadata{}, err
	}
	if !meta.Usage.Can(usage) {
		key.Destroy()
		return nil, KeyMetadata{}, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key %s does not allow the requested usage", keyID),
			Public("key_id", keyID))
	}
	if meta.Algorithm != "" && alg != "" && meta.Algorithm != alg {
		key.Destroy()
		return nil, KeyMetadata{}, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key %s is bound to %s, not %s", keyID, meta.Algorithm, alg),
			Public("key_id", keyID),
			Public("algorithm", string(alg)))
	}
	return key, meta, nil
}

// --- Encrypt ---

type encryptParams struct {
	KeyID     string        `validate:"required"`
	Algorithm Algorithm     `validate:"required"`
	Plaintext *SecureBuffer `validate:"required"`
}

// EncryptCommand seals a plaintext into a packed container under a stored key.
type EncryptCommand struct {
	baseCommand
	env    commandEnv
	params encryptParams
	opts   *OperationOptions
}

// Validate implements Command.
func (c *EncryptCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	if !c.params.Algorithm.Valid() {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", c.params.Algorithm),
			Public("algorithm", string(c.params.Algorithm)))
	}
	if err := checkIVOverride(c.opts, c.params.Algorithm); err != nil {
		return err
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *EncryptCommand) Execute(ctx context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}

	key, _, err := retrieveFor(ctx, c.env, c.params.KeyID, UsageEncrypt, c.params.Algorithm)
	if err != nil {
		return c.failure(err)
	}
	defer key.Destroy()

	iv := c.opts.IV
	if len(iv) == 0 {
		iv, err = randomIV(c.env.random, c.params.Algorithm.NonceSize())
		if err != nil {
			return c.failure(err)
		}
	}

	ciphertext, tag, err := Seal(c.params.Algorithm, key.Bytes(), iv, c.params.Plaintext.Bytes())
	if err != nil {
		return c.failure(err)
	}

	return &OperationResult{Kind: c.kind, Data: PackContainer(iv, ciphertext, tag)}
}

// --- Decrypt ---

type decryptParams struct {
	KeyID     string        `validate:"required"`
	Algorithm Algorithm     `validate:"required"`
	Container *SecureBuffer `validate:"required"`
}

// DecryptCommand opens a packed container back into plaintext.
type DecryptCommand struct {
	baseCommand
	env    commandEnv
	params decryptParams
}

// Validate implements Command.
func (c *DecryptCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	if !c.params.Algorithm.Valid() {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", c.params.Algorithm),
			Public("algorithm", string(c.params.Algorithm)))
	}
	if c.params.Container.Len() == 0 {
		return newError(ErrInvalidInput, ErrCodeInvalidInput,
			"container cannot be empty")
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *DecryptCommand) Execute(ctx context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}

	iv, ciphertext, tag, err := UnpackContainer(c.params.Container.Bytes())
	if err != nil {
		return c.failure(err)
	}
	if tag == nil {
		return c.failure(newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"container carries no authentication tag",
			Private("ciphertext_length", fmt.Sprintf("%d", len(ciphertext)))))
	}

	key, _, err := retrieveFor(ctx, c.env, c.params.KeyID, UsageDecrypt, c.params.Algorithm)
	if err != nil {
		return c.failure(err)
	}
	defer key.Destroy()

	plaintext, err := Open(c.params.Algorithm, key.Bytes(), iv, ciphertext, tag)
	if err != nil {
		return c.failure(err)
	}

	return &OperationResult{Kind: c.kind, Buffer: NewSecureBuffer(plaintext)}
}

// --- Hash ---

type hashParams struct {
	Hash HashAlgorithm `validate:"required"`
	Data *SecureBuffer `validate:"required"`
}

// HashCommand computes a digest over the request data.
type HashCommand struct {
	baseCommand
	params hashParams
}

// Validate implements Command.
func (c *HashCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	if !c.params.Hash.Valid() {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown hash %q", c.params.Hash),
			Public("algorithm", string(c.params.Hash)))
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *HashCommand) Execute(context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}
	digest, err := Digest(c.params.Hash, c.params.Data.Bytes())
	if err != nil {
		return c.failure(err)
	}
	return &OperationResult{Kind: c.kind, Data: digest}
}

// --- VerifyHash ---

type verifyHashParams struct {
	Hash     HashAlgorithm `validate:"required"`
	Data     *SecureBuffer `validate:"required"`
	Expected []byte        `validate:"required,min=1"`
}

// VerifyHashCommand checks a digest against the request data in constant time.
type VerifyHashCommand struct {
	baseCommand
	params verifyHashParams
}

// Validate implements Command.
func (c *VerifyHashCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	if !c.params.Hash.Valid() {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown hash %q", c.params.Hash),
			Public("algorithm", string(c.params.Hash)))
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *VerifyHashCommand) Execute(context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}
	verified, err := VerifyDigest(c.params.Hash, c.params.Data.Bytes(), c.params.Expected)
	if err != nil {
		return c.failure(err)
	}
	return &OperationResult{Kind: c.kind, Verified: verified}
}

// --- GenerateKey ---

type generateKeyParams struct {
	Length int `validate:"gt=0"`
}

// GenerateKeyCommand draws fresh key material from the injected randomness
// source. It does not store the material; import does that.
type GenerateKeyCommand struct {
	baseCommand
	env    commandEnv
	params generateKeyParams
}

// Validate implements Command.
func (c *GenerateKeyCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *GenerateKeyCommand) Execute(context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}
	buffer, err := NewRandomBuffer(c.env.random, c.params.Length)
	if err != nil {
		return c.failure(err)
	}
	return &OperationResult{Kind: c.kind, Buffer: buffer}
}

// --- ImportKey ---

type importKeyParams struct {
	Material  *SecureBuffer `validate:"required"`
	Algorithm Algorithm
}

// ImportKeyCommand moves key material across the storage boundary into the
// store: a thin pass-through, except that a passphrase option switches the
// expected input to the wrapped form produced by export.
type ImportKeyCommand struct {
	baseCommand
	env         commandEnv
	params      importKeyParams
	usage       KeyUsage
	extractable bool
	opts        *OperationOptions
}

// Validate implements Command.
func (c *ImportKeyCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	if c.params.Algorithm != "" && !c.params.Algorithm.Valid() {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", c.params.Algorithm),
			Public("algorithm", string(c.params.Algorithm)))
	}
	if c.params.Material.Len() == 0 {
		return newError(ErrInvalidInput, ErrCodeInvalidInput,
			"key material cannot be empty")
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *ImportKeyCommand) Execute(ctx context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}

	material := c.params.Material
	if len(c.opts.Passphrase) > 0 {
		// The blob header names the wrap cipher and KDF cost, so a wrapped
		// export imports under any profile.
		raw, err := unwrapMaterial(c.opts.Passphrase, material.Bytes())
		if err != nil {
			return c.failure(err)
		}
		material = NewSecureBuffer(raw)
		defer material.Destroy()
	}

	if c.params.Algorithm != "" && material.Len() != c.params.Algorithm.KeySizeBytes() {
		return c.failure(newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("material must be %d bytes for %s, got %d",
				c.params.Algorithm.KeySizeBytes(), c.params.Algorithm, material.Len()),
			Public("algorithm", string(c.params.Algorithm)),
			Public("material_length", fmt.Sprintf("%d", material.Len()))))
	}

	keyID, err := c.env.store.Store(ctx, material, KeyMetadata{
		Algorithm:   c.params.Algorithm,
		Usage:       c.usage,
		Extractable: c.extractable,
	})
	if err != nil {
		return c.failure(err)
	}
	return &OperationResult{Kind: c.kind, KeyID: keyID}
}

// --- ExportKey ---

type exportKeyParams struct {
	KeyID string `validate:"required"`
}

// ExportKeyCommand moves key material out of the storage boundary. Raw
// export requires the key to be extractable; a passphrase option seals the
// material into the wrapped form instead.
type ExportKeyCommand struct {
	baseCommand
	env    commandEnv
	params exportKeyParams
	opts   *OperationOptions
}

// Validate implements Command.
func (c *ExportKeyCommand) Validate() error {
	if err := c.beginValidate(); err != nil {
		return err
	}
	if err := checkStruct(&c.params); err != nil {
		return err
	}
	c.markValidated()
	return nil
}

// Execute implements Command.
func (c *ExportKeyCommand) Execute(ctx context.Context) *OperationResult {
	if err := c.beginExecute(); err != nil {
		return c.failure(err)
	}

	key, meta, err := c.env.store.Retrieve(ctx, c.params.KeyID)
	if err != nil {
		return c.failure(err)
	}
	if !meta.Extractable {
		key.Destroy()
		return c.failure(newError(ErrKeyManagementFailed, ErrCodeKeyManagement,
			fmt.Sprintf("key %s is not extractable", c.params.KeyID),
			Public("key_id", c.params.KeyID)))
	}

	if len(c.opts.Passphrase) == 0 {
		return &OperationResult{Kind: c.kind, Buffer: key}
	}
	defer key.Destroy()

	blob, err := wrapMaterial(c.env.random, c.opts.Passphrase, c.wrapParams(),
		c.env.profile.DefaultAlgorithm(), key.Bytes())
	if err != nil {
		return c.failure(err)
	}
	return &OperationResult{Kind: c.kind, Data: blob}
}

func (c *ExportKeyCommand) wrapParams() *KDFParams {
	if c.opts.KDF != nil {
		return c.opts.KDF
	}
	return c.env.profile.KDFParams()
}
