// factory.go: Command construction from operation requests.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"fmt"
	"io"
)

// CommandFactory selects and constructs the command object for a requested
// operation under a security profile. Selection is a pure function of the
// request and profile; the factory holds no mutable state, only references
// to the collaborators it injects into commands.
type CommandFactory struct {
	env commandEnv
}

// NewCommandFactory creates a factory over the given storage boundary,
// randomness source and security profile.
func NewCommandFactory(store KeyStore, random io.Reader, profile SecurityProfile) *CommandFactory {
	return &CommandFactory{env: commandEnv{
		store:   store,
		random:  random,
		profile: profile,
	}}
}

// Profile returns the security profile the factory builds commands for.
func (f *CommandFactory) Profile() SecurityProfile { return f.env.profile }

// MakeCommand constructs the command for the request. The switch over the
// operation kind is exhaustive; an undefined kind is a programming-contract
// violation and the only error this method returns. Algorithm and hash
// selectors default from the security profile when the request leaves them
// empty, without changing any command's external contract.
func (f *CommandFactory) MakeCommand(req *Request) (Command, error) {
	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = f.env.profile.DefaultAlgorithm()
	}
	hash := req.Hash
	if hash == "" {
		hash = f.env.profile.DefaultHash()
	}

	switch req.Kind {
	case OpEncrypt:
		return &EncryptCommand{
			baseCommand: baseCommand{kind: OpEncrypt},
			env:         f.env,
			params: encryptParams{
				KeyID:     req.KeyID,
				Algorithm: algorithm,
				Plaintext: req.Data,
			},
			opts: req.options(),
		}, nil
	case OpDecrypt:
		return &DecryptCommand{
			baseCommand: baseCommand{kind: OpDecrypt},
			env:         f.env,
			params: decryptParams{
				KeyID:     req.KeyID,
				Algorithm: algorithm,
				Container: req.Data,
			},
		}, nil
	case OpHash:
		return &HashCommand{
			baseCommand: baseCommand{kind: OpHash},
			params: hashParams{
				Hash: hash,
				Data: req.Data,
			},
		}, nil
	case OpVerifyHash:
		return &VerifyHashCommand{
			baseCommand: baseCommand{kind: OpVerifyHash},
			params: verifyHashParams{
				Hash:     hash,
				Data:     req.Data,
				Expected: req.Expected,
			},
		}, nil
	case OpGenerateKey:
		return &GenerateKeyCommand{
			baseCommand: baseCommand{kind: OpGenerateKey},
			env:         f.env,
			params:      generateKeyParams{Length: req.Length},
		}, nil
	case OpImportKey:
		return &ImportKeyCommand{
			baseCommand: baseCommand{kind: OpImportKey},
			env:         f.env,
			params: importKeyParams{
				Material:  req.Data,
				Algorithm: req.Algorithm,
			},
			usage:       req.Usage,
			extractable: req.Extractable,
			opts:        req.options(),
		}, nil
	case OpExportKey:
		return &ExportKeyCommand{
			baseCommand: baseCommand{kind: OpExportKey},
			env:         f.env,
			params:      exportKeyParams{KeyID: req.KeyID},
			opts:        req.options(),
		}, nil
	default:
		return nil, newError(ErrInternal, ErrCodeInternal,
			fmt.Sprintf("undefined operation kind %q", req.Kind),
			Public("operation", string(req.Kind)))
	}
}
