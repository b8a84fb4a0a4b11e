package envelope

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// DefaultChunkSize bounds memory use when sealing large files.
const DefaultChunkSize = 1 << 20

// FileSealer seals a file as a sequence of independently authenticated
// chunks. One random base nonce is drawn per file; each chunk's nonce is
// derived by folding the chunk counter into the base nonce, so a single
// key/nonce pair covers the whole file without nonce reuse. The file id,
// chunk index and last-chunk flag are bound into each chunk's AAD, which
// makes reordering, dropping or truncating chunks detectable.
type FileSealer struct {
	gcm       cipher.AEAD
	fileID    string
	baseNonce []byte
	next      uint32
	closed    bool
}

// NewFileSealer creates a sealer for one file under one key.
func NewFileSealer(key []byte, fileID string) (*FileSealer, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id is required")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	baseNonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(baseNonce); err != nil {
		return nil, fmt.Errorf("failed to generate base nonce: %w", err)
	}
	return &FileSealer{gcm: gcm, fileID: fileID, baseNonce: baseNonce}, nil
}

// BaseNonce returns the per-file nonce the opener needs.
func (s *FileSealer) BaseNonce() []byte {
	out := make([]byte, len(s.baseNonce))
	copy(out, s.baseNonce)
	return out
}

// chunkNonce derives the nonce for one chunk by XOR-ing the counter into
// the trailing bytes of the base nonce.
func chunkNonce(base []byte, index uint32) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	var ctr [4]byte
	binary.BigEndian.PutUint32(ctr[:], index)
	for i := 0; i < 4; i++ {
		nonce[len(nonce)-4+i] ^= ctr[i]
	}
	return nonce
}

// chunkAAD binds a chunk to its file, position and terminal flag.
func chunkAAD(fileID string, index uint32, last bool) []byte {
	return []byte(fmt.Sprintf("v%d|%s|%d|%t", FormatVersion, fileID, index, last))
}

// Seal encrypts the next chunk. last must be true on the final chunk and
// the sealer refuses further input afterwards.
func (s *FileSealer) Seal(chunk []byte, last bool) (*types.FileChunk, error) {
	if s.closed {
		return nil, fmt.Errorf("sealer already finalized")
	}
	index := s.next
	nonce := chunkNonce(s.baseNonce, index)
	sealed := s.gcm.Seal(nil, nonce, chunk, chunkAAD(s.fileID, index, last))

	s.next++
	if last {
		s.closed = true
	}
	return &types.FileChunk{Index: index, Last: last, Ciphertext: sealed}, nil
}

// FileOpener verifies and decrypts a chunk sequence in order.
type FileOpener struct {
	gcm       cipher.AEAD
	fileID    string
	baseNonce []byte
	next      uint32
	done      bool
}

// NewFileOpener creates an opener for one sealed file.
func NewFileOpener(key []byte, fileID string, baseNonce []byte) (*FileOpener, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(baseNonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("base nonce must be %d bytes, got %d", gcm.NonceSize(), len(baseNonce))
	}
	nonce := make([]byte, len(baseNonce))
	copy(nonce, baseNonce)
	return &FileOpener{gcm: gcm, fileID: fileID, baseNonce: nonce}, nil
}

// Open decrypts the next chunk. Out-of-order delivery fails before any
// cryptographic work; a forged or repositioned chunk fails tag verification
// because its index is part of the AAD.
func (o *FileOpener) Open(c *types.FileChunk) ([]byte, error) {
	if o.done {
		return nil, fmt.Errorf("%w: chunk after final chunk", ErrIntegrity)
	}
	if c.Index != o.next {
		return nil, fmt.Errorf("%w: chunk %d out of order, expected %d", ErrIntegrity, c.Index, o.next)
	}

	nonce := chunkNonce(o.baseNonce, c.Index)
	plaintext, err := o.gcm.Open(nil, nonce, c.Ciphertext, chunkAAD(o.fileID, c.Index, c.Last))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	o.next++
	if c.Last {
		o.done = true
	}
	return plaintext, nil
}

// Complete reports whether the final chunk has been opened. A stream that
// ends without Complete() was truncated.
func (o *FileOpener) Complete() bool {
	return o.done
}

// SealFile is a convenience that seals an in-memory buffer in chunkSize
// pieces. Returns the chunks and the base nonce the opener needs.
func SealFile(key []byte, fileID string, data []byte, chunkSize int) ([]types.FileChunk, []byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	sealer, err := NewFileSealer(key, fileID)
	if err != nil {
		return nil, nil, err
	}

	var chunks []types.FileChunk
	for offset := 0; ; offset += chunkSize {
		end := offset + chunkSize
		last := end >= len(data)
		if last {
			end = len(data)
		}
		chunk, err := sealer.Seal(data[offset:end], last)
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, *chunk)
		if last {
			break
		}
	}
	return chunks, sealer.BaseNonce(), nil
}

// OpenFile reassembles a sealed buffer, failing on any tampered, missing or
// reordered chunk.
func OpenFile(key []byte, fileID string, baseNonce []byte, chunks []types.FileChunk) ([]byte, error) {
	opener, err := NewFileOpener(key, fileID, baseNonce)
	if err != nil {
		return nil, err
	}
	var out []byte
	for i := range chunks {
		plaintext, err := opener.Open(&chunks[i])
		if err != nil {
			return nil, err
		}
		out = append(out, plaintext...)
	}
	if !opener.Complete() {
		return nil, fmt.Errorf("%w: truncated chunk stream", ErrIntegrity)
	}
	return out, nil
}
