// container.go: Versioned binary container for encrypted payloads.
//
// Every encrypted payload travels as a self-describing envelope:
//
//	magic(4) || version(1) || reserved(3, zero) || IV(12) || ciphertext(N) || tag(0 or 16)
//
// The version byte is incremented on any layout change; decoders reject
// unknown versions instead of attempting best-effort parsing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"bytes"
	"fmt"
)

const (
	// ContainerMagic is the fixed ASCII tag opening every container.
	ContainerMagic = "SEAL"

	// ContainerVersion is the current container layout version.
	ContainerVersion = byte(1)

	// ContainerIVSize is the fixed initialisation-vector length.
	ContainerIVSize = 12

	// ContainerTagSize is the authentication-tag length when present.
	ContainerTagSize = 16

	// containerHeaderSize covers magic, version and the reserved bytes.
	containerHeaderSize = 4 + 1 + 3
)

// PackContainer concatenates the container fields in the fixed layout and
// always emits the current magic and version. It does not validate IV or tag
// lengths; that is the caller's responsibility (the primitive layer enforces
// them before any material reaches the codec). Pass a nil tag for tag-less
// payloads.
func PackContainer(iv, ciphertext, tag []byte) []byte {
	out := make([]byte, 0, containerHeaderSize+len(iv)+len(ciphertext)+len(tag))
	out = append(out, ContainerMagic...)
	out = append(out, ContainerVersion)
	out = append(out, 0, 0, 0) // reserved
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out
}

// UnpackContainer splits a packed container back into IV, ciphertext and
// optional tag. The returned slices are copies, decoupled from the input.
//
// Tag presence is decided by length: when the payload past header and IV is
// at least ContainerTagSize bytes, the trailing 16 bytes are treated as the
// tag and the remainder as ciphertext; otherwise the whole remainder
// (possibly empty) is tag-less ciphertext. The codec cannot otherwise know
// whether a tag is present, so callers using tag-less ciphers must ensure
// ciphertext length never reaches 16 bytes past the IV. The authenticated
// ciphers in this package always produce a tag, so their containers are
// never misread.
func UnpackContainer(data []byte) (iv, ciphertext, tag []byte, err error) {
	if len(data) < containerHeaderSize+ContainerIVSize {
		return nil, nil, nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("container too short: %d bytes, need at least %d",
				len(data), containerHeaderSize+ContainerIVSize),
			Private("container_length", fmt.Sprintf("%d", len(data))))
	}
	if !bytes.Equal(data[:4], []byte(ContainerMagic)) {
		return nil, nil, nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"container magic mismatch",
			Private("magic", fmt.Sprintf("%x", data[:4])))
	}
	if data[4] != ContainerVersion {
		return nil, nil, nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported container version %d, current is %d",
				data[4], ContainerVersion),
			Private("version", fmt.Sprintf("%d", data[4])))
	}

	iv = make([]byte, ContainerIVSize)
	copy(iv, data[containerHeaderSize:containerHeaderSize+ContainerIVSize])

	rest := data[containerHeaderSize+ContainerIVSize:]
	if len(rest) >= ContainerTagSize {
		ciphertext = make([]byte, len(rest)-ContainerTagSize)
		copy(ciphertext, rest[:len(rest)-ContainerTagSize])
		tag = make([]byte, ContainerTagSize)
		copy(tag, rest[len(rest)-ContainerTagSize:])
		return iv, ciphertext, tag, nil
	}

	ciphertext = make([]byte, len(rest))
	copy(ciphertext, rest)
	return iv, ciphertext, nil, nil
}

// ContainerOverhead returns the fixed byte cost a container adds to its
// ciphertext, with or without an authentication tag.
func ContainerOverhead(withTag bool) int {
	overhead := containerHeaderSize + ContainerIVSize
	if withTag {
		overhead += ContainerTagSize
	}
	return overhead
}
