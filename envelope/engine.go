// Package envelope implements authenticated encryption of message and file
// payloads under conversation keys supplied by the key manager.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// FormatVersion is bound into every payload's associated data so ciphertext
// cannot be replayed into a different format context.
const FormatVersion = 1

const gcmTagSize = 16

var (
	// ErrIntegrity indicates an AEAD tag that did not verify: tampering,
	// truncation or the wrong key. Decrypt never returns partial output.
	ErrIntegrity = errors.New("payload integrity check failed")
)

// Engine performs stateless AEAD operations. Safe for concurrent use.
type Engine struct {
	// now is swappable so tests can pin the AAD timestamp
	now func() time.Time
}

// NewEngine creates a new cipher engine
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// newGCM builds an AES-256-GCM instance for the given key.
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with a fresh random nonce. The associated data
// binds the format version and a timestamp into the tag without being
// encrypted, so the bundle cannot be replayed into a different context.
func (e *Engine) Encrypt(plaintext, key []byte) (*types.EncryptedPayload, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aad := []byte(fmt.Sprintf("v%d|%d", FormatVersion, e.now().UTC().Unix()))

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	// Seal appends the tag; keep ciphertext and tag as discrete fields
	split := len(sealed) - gcmTagSize

	return &types.EncryptedPayload{
		Ciphertext: sealed[:split],
		IV:         nonce,
		Tag:        sealed[split:],
		AAD:        aad,
	}, nil
}

// Decrypt opens a sealed payload. Any tag mismatch surfaces as ErrIntegrity;
// there is no partial or garbage output path.
func (e *Engine) Decrypt(p *types.EncryptedPayload, key []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(p.IV) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrIntegrity, len(p.IV))
	}

	sealed := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	sealed = append(sealed, p.Ciphertext...)
	sealed = append(sealed, p.Tag...)

	plaintext, err := gcm.Open(nil, p.IV, sealed, p.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plaintext, nil
}
