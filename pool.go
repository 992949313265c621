// pool.go: Scratch buffer pooling with zero-on-return for hot crypto paths.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"sync"
)

var (
	// smallPool serves fixed-size scratch needs: nonces (12 bytes),
	// keys and digests (up to 64 bytes).
	smallPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 64)
			return &buf
		},
	}

	// scratchPool serves variable-size intermediate buffers such as the
	// ciphertext||tag concatenation during decryption. Pointers avoid the
	// extra allocation on Put (SA6002).
	scratchPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 4*1024)
			return &buf
		},
	}
)

// getSmall returns a pooled buffer sliced to size, or a fresh allocation when
// the request exceeds the pooled capacity.
func getSmall(size int) *[]byte {
	if size > 64 {
		buf := make([]byte, size)
		return &buf
	}
	buf := smallPool.Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

// putSmall zeroes a small buffer and returns it to the pool. Buffers that
// were allocated outside the pool are zeroed and dropped.
func putSmall(buf *[]byte) {
	if buf == nil {
		return
	}
	Zeroize(*buf)
	if cap(*buf) == 64 {
		*buf = (*buf)[:cap(*buf)]
		smallPool.Put(buf)
	}
}

// getScratch returns an empty scratch buffer with pooled capacity.
func getScratch() *[]byte {
	buf := scratchPool.Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

// putScratch zeroes the full capacity of a scratch buffer before reuse so no
// intermediate material survives, then returns it to the pool. Oversized
// buffers are zeroed and dropped to keep the pool bounded.
func putScratch(buf *[]byte) {
	if buf == nil || cap(*buf) == 0 {
		return
	}
	Zeroize((*buf)[:cap(*buf)])
	if cap(*buf) <= 64*1024 {
		scratchPool.Put(buf)
	}
}
