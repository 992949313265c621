// streaming.go: Chunked streaming encryption for payloads too large to seal
// in one container.
//
// The stream format is a 24-byte header followed by length-prefixed sealed
// chunks. Each chunk is sealed under a nonce derived from the stream's random
// base nonce and the chunk counter, so no two chunks share a nonce under the
// same key. The last chunk is sealed under a marked nonce, so a reader can
// tell a complete stream from one whose trailing chunks were dropped.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package kryptos

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultChunkSize is the plaintext chunk size streams use unless told
// otherwise. 64KB balances memory use against per-chunk overhead.
const DefaultChunkSize = 64 * 1024

// maxChunkSize caps configurable chunk sizes at 10MB.
const maxChunkSize = 10 * 1024 * 1024

// Stream header layout:
// [4: magic "SEAL"] [1: version] [1: algorithm] [2: reserved] [12: base nonce] [4: chunk size LE]
const streamHeaderSize = 4 + 1 + 1 + 2 + ContainerIVSize + 4

// StreamWriter encrypts data written to it and emits the sealed stream to an
// underlying writer. Close must be called to flush the final partial chunk.
type StreamWriter struct {
	dst       io.Writer
	aead      cipher.AEAD
	baseNonce []byte
	buffer    []byte
	chunkSize int
	counter   uint32
	closed    bool
}

// StreamReader decrypts a sealed stream produced by StreamWriter. The header
// is consumed on the first Read; the algorithm comes from the header, not the
// caller, so a reader needs only the key.
type StreamReader struct {
	src        io.Reader
	key        []byte
	aead       cipher.AEAD
	baseNonce  []byte
	chunkSize  int
	remaining  []byte
	counter    uint32
	headerRead bool
	finalSeen  bool
	closed     bool
}

// NewStreamWriter creates a streaming encryptor over dst with the default
// chunk size. The header is written immediately.
func NewStreamWriter(dst io.Writer, random io.Reader, alg Algorithm, key []byte) (*StreamWriter, error) {
	return NewStreamWriterChunked(dst, random, alg, key, DefaultChunkSize)
}

// NewStreamWriterChunked creates a streaming encryptor with a custom chunk
// size between 1 byte and 10MB.
func NewStreamWriterChunked(dst io.Writer, random io.Reader, alg Algorithm, key []byte, chunkSize int) (*StreamWriter, error) {
	code, ok := algWireCode(alg)
	if !ok {
		return nil, newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher %q", alg),
			Public("algorithm", string(alg)))
	}
	if len(key) != alg.KeySizeBytes() {
		return nil, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key must be %d bytes for %s, got %d", alg.KeySizeBytes(), alg, len(key)),
			Public("algorithm", string(alg)))
	}
	if chunkSize <= 0 || chunkSize > maxChunkSize {
		return nil, newError(ErrInvalidInput, ErrCodeInvalidInput,
			fmt.Sprintf("chunk size must be between 1 and %d bytes, got %d", maxChunkSize, chunkSize))
	}

	aead, err := aeadFor(alg, key)
	if err != nil {
		return nil, wrapError(err, ErrEncryptionFailed, ErrCodeStreamingFailure,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}

	baseNonce, err := randomIV(random, alg.NonceSize())
	if err != nil {
		return nil, err
	}

	w := &StreamWriter{
		dst:       dst,
		aead:      aead,
		baseNonce: baseNonce,
		chunkSize: chunkSize,
		buffer:    make([]byte, 0, chunkSize),
	}

	header := make([]byte, streamHeaderSize)
	copy(header[0:4], ContainerMagic)
	header[4] = ContainerVersion
	header[5] = code
	copy(header[8:8+ContainerIVSize], baseNonce)
	binary.LittleEndian.PutUint32(header[8+ContainerIVSize:], uint32(chunkSize)) // #nosec G115 -- bounded by maxChunkSize
	if _, err := dst.Write(header); err != nil {
		return nil, wrapError(err, ErrEncryptionFailed, ErrCodeStreamingFailure,
			"failed to write stream header")
	}
	return w, nil
}

// Write buffers plaintext and seals full chunks as they accumulate.
func (w *StreamWriter) Write(data []byte) (int, error) {
	if w.closed {
		return 0, newError(ErrInvalidInput, ErrCodeStreamingFailure,
			"write on closed stream")
	}

	// A full buffer is flushed only once more data arrives, so the last
	// chunk always stays buffered for Close to mark as final.
	written := 0
	for len(data) > 0 {
		if len(w.buffer) == w.chunkSize {
			if err := w.flush(false); err != nil {
				return written, err
			}
		}
		room := w.chunkSize - len(w.buffer)
		n := len(data)
		if n > room {
			n = room
		}
		w.buffer = append(w.buffer, data[:n]...)
		data = data[n:]
		written += n
	}
	return written, nil
}

// Close seals and writes the final chunk, which may be empty, under the
// final-chunk nonce marker. Idempotent.
func (w *StreamWriter) Close() error {
	if w.closed {
		return nil
	}
	if err := w.flush(true); err != nil {
		return err
	}
	w.closed = true
	Zeroize(w.buffer[:cap(w.buffer)])
	return nil
}

func (w *StreamWriter) flush(final bool) error {
	nonce, err := chunkNonce(w.baseNonce, w.counter, final)
	if err != nil {
		return err
	}
	w.counter++

	sealed := w.aead.Seal(nil, nonce, w.buffer, nil)

	var frame [4]byte
	binary.LittleEndian.PutUint32(frame[:], uint32(len(sealed))) // #nosec G115 -- bounded by chunkSize+tag
	if _, err := w.dst.Write(frame[:]); err != nil {
		return wrapError(err, ErrEncryptionFailed, ErrCodeStreamingFailure,
			"failed to write chunk frame")
	}
	if _, err := w.dst.Write(sealed); err != nil {
		return wrapError(err, ErrEncryptionFailed, ErrCodeStreamingFailure,
			"failed to write sealed chunk")
	}

	Zeroize(w.buffer)
	w.buffer = w.buffer[:0]
	return nil
}

// NewStreamReader creates a streaming decryptor over src. The key must match
// the algorithm recorded in the stream header.
func NewStreamReader(src io.Reader, key []byte) (*StreamReader, error) {
	if len(key) != KeySize {
		return nil, newError(ErrInvalidKey, ErrCodeInvalidKey,
			fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return &StreamReader{src: src, key: keyCopy}, nil
}

// Read decrypts and returns plaintext from the stream. A tampered chunk fails
// the whole read with ErrDecryptionFailed; a stream that ends before its
// marked final chunk fails with ErrInvalidMessageFormat.
func (r *StreamReader) Read(data []byte) (int, error) {
	if r.closed {
		return 0, newError(ErrInvalidInput, ErrCodeStreamingFailure,
			"read on closed stream")
	}
	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return 0, err
		}
	}

	total := 0
	for len(data) > 0 {
		if len(r.remaining) > 0 {
			n := copy(data, r.remaining)
			Zeroize(r.remaining[:n])
			r.remaining = r.remaining[n:]
			data = data[n:]
			total += n
			continue
		}

		chunk, err := r.nextChunk()
		if err != nil {
			if err == io.EOF && total > 0 {
				return total, nil
			}
			return total, err
		}

		n := copy(data, chunk)
		if n < len(chunk) {
			r.remaining = chunk[n:]
		}
		Zeroize(chunk[:n])
		data = data[n:]
		total += n
	}
	return total, nil
}

// Close wipes the reader's key copy. Idempotent.
func (r *StreamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	Zeroize(r.key)
	Zeroize(r.remaining)
	return nil
}

func (r *StreamReader) readHeader() error {
	header := make([]byte, streamHeaderSize)
	if _, err := io.ReadFull(r.src, header); err != nil {
		return wrapError(err, ErrInvalidMessageFormat, ErrCodeStreamingFailure,
			"failed to read stream header")
	}

	if string(header[0:4]) != ContainerMagic {
		return newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"stream header magic mismatch",
			Private("magic", fmt.Sprintf("%x", header[0:4])))
	}
	if header[4] != ContainerVersion {
		return newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported stream version %d", header[4]),
			Private("version", fmt.Sprintf("%d", header[4])))
	}
	alg, ok := algFromWireCode(header[5])
	if !ok {
		return newError(ErrUnsupportedAlgorithm, ErrCodeUnsupportedAlgo,
			fmt.Sprintf("unknown cipher code %d in stream header", header[5]))
	}

	r.baseNonce = make([]byte, ContainerIVSize)
	copy(r.baseNonce, header[8:8+ContainerIVSize])

	chunkSize := int(binary.LittleEndian.Uint32(header[8+ContainerIVSize:]))
	if chunkSize <= 0 || chunkSize > maxChunkSize {
		return newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("stream header declares invalid chunk size %d", chunkSize))
	}
	r.chunkSize = chunkSize

	aead, err := aeadFor(alg, r.key)
	if err != nil {
		return wrapError(err, ErrDecryptionFailed, ErrCodeStreamingFailure,
			"cipher initialization failed",
			Public("algorithm", string(alg)))
	}
	r.aead = aead
	r.headerRead = true
	return nil
}

func (r *StreamReader) nextChunk() ([]byte, error) {
	var frame [4]byte
	if _, err := io.ReadFull(r.src, frame[:]); err != nil {
		if err == io.EOF {
			if r.finalSeen {
				return nil, io.EOF
			}
			return nil, newError(ErrInvalidMessageFormat, ErrCodeStreamingFailure,
				"stream ended before the final chunk")
		}
		return nil, wrapError(err, ErrInvalidMessageFormat, ErrCodeStreamingFailure,
			"failed to read chunk frame")
	}
	if r.finalSeen {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			"data past the final chunk")
	}

	sealedSize := int(binary.LittleEndian.Uint32(frame[:]))
	if sealedSize < ContainerTagSize || sealedSize > r.chunkSize+ContainerTagSize {
		return nil, newError(ErrInvalidMessageFormat, ErrCodeInvalidFormat,
			fmt.Sprintf("chunk frame declares invalid size %d", sealedSize))
	}

	sealed := make([]byte, sealedSize)
	if _, err := io.ReadFull(r.src, sealed); err != nil {
		return nil, wrapError(err, ErrInvalidMessageFormat, ErrCodeStreamingFailure,
			"sealed chunk truncated")
	}

	// An interior chunk and the final chunk differ only in the nonce marker,
	// so try the plain nonce first, then the marked one.
	nonce, err := chunkNonce(r.baseNonce, r.counter, false)
	if err != nil {
		return nil, err
	}
	chunk, err := r.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		finalNonce, nerr := chunkNonce(r.baseNonce, r.counter, true)
		if nerr != nil {
			return nil, nerr
		}
		chunk, err = r.aead.Open(nil, finalNonce, sealed, nil)
		if err != nil {
			return nil, wrapError(err, ErrDecryptionFailed, ErrCodeStreamingFailure,
				"chunk authentication failed",
				Private("cipher_status", err.Error()))
		}
		r.finalSeen = true
	}
	r.counter++
	return chunk, nil
}

// chunkNonce derives the nonce for one chunk by mixing the counter into the
// tail of the base nonce. Distinct counters under one base nonce never yield
// the same value. The final chunk additionally flips the top bit of the first
// byte, a region the counter never touches, so no interior nonce can collide
// with a final one.
func chunkNonce(base []byte, counter uint32, final bool) ([]byte, error) {
	if counter == ^uint32(0) {
		return nil, newError(ErrEncryptionFailed, ErrCodeStreamingFailure,
			"chunk counter exhausted")
	}
	nonce := make([]byte, len(base))
	copy(nonce, base)
	tail := len(nonce) - 4
	binary.LittleEndian.PutUint32(nonce[tail:], binary.LittleEndian.Uint32(nonce[tail:])^counter)
	if final {
		nonce[0] ^= 0x80
	}
	return nonce, nil
}
