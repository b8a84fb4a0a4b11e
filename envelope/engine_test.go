package envelope

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

func testKey(seed byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	engine := NewEngine()
	key := testKey(1)

	plaintexts := [][]byte{
		[]byte(""),
		[]byte("hello"),
		[]byte("a longer message with unicode: héllo wörld 你好"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}

	for _, plaintext := range plaintexts {
		payload, err := engine.Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if len(payload.IV) == 0 || len(payload.Tag) != 16 {
			t.Fatalf("unexpected payload shape: iv=%d tag=%d", len(payload.IV), len(payload.Tag))
		}

		got, err := engine.Decrypt(payload, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestFreshNoncePerCall(t *testing.T) {
	engine := NewEngine()
	key := testKey(1)

	a, err := engine.Encrypt([]byte("same input"), key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.Encrypt([]byte("same input"), key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.IV, b.IV) {
		t.Fatal("two encrypt calls reused a nonce")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Fatal("two encrypt calls produced identical ciphertext")
	}
}

func TestTamperDetection(t *testing.T) {
	engine := NewEngine()
	key := testKey(1)

	payload, err := engine.Encrypt([]byte("sensitive content"), key)
	if err != nil {
		t.Fatal(err)
	}

	flipBit := func(b []byte) []byte {
		out := make([]byte, len(b))
		copy(out, b)
		out[len(out)/2] ^= 0x01
		return out
	}

	tests := []struct {
		name   string
		mutate func(p types.EncryptedPayload) types.EncryptedPayload
	}{
		{"Flipped Ciphertext Bit", func(p types.EncryptedPayload) types.EncryptedPayload {
			p.Ciphertext = flipBit(p.Ciphertext)
			return p
		}},
		{"Flipped Tag Bit", func(p types.EncryptedPayload) types.EncryptedPayload {
			p.Tag = flipBit(p.Tag)
			return p
		}},
		{"Flipped AAD Bit", func(p types.EncryptedPayload) types.EncryptedPayload {
			p.AAD = flipBit(p.AAD)
			return p
		}},
		{"Flipped IV Bit", func(p types.EncryptedPayload) types.EncryptedPayload {
			p.IV = flipBit(p.IV)
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := tt.mutate(*payload)
			got, err := engine.Decrypt(&mutated, key)
			if err == nil {
				t.Fatalf("expected integrity failure, got plaintext %q", got)
			}
			if !errors.Is(err, ErrIntegrity) {
				t.Fatalf("expected ErrIntegrity, got %v", err)
			}
			if got != nil {
				t.Fatal("decrypt must never return output on failure")
			}
		})
	}
}

func TestKeyIsolation(t *testing.T) {
	engine := NewEngine()

	payload, err := engine.Encrypt([]byte("for conversation A only"), testKey(1))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Decrypt(payload, testKey(2)); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("decrypt with a different key must fail with ErrIntegrity, got %v", err)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Fingerprint(types.MessageDigest{SenderID: "u1", SentAt: at, Content: "hello"})
	b := Fingerprint(types.MessageDigest{SenderID: "u1", SentAt: at, Content: "hello"})
	c := Fingerprint(types.MessageDigest{SenderID: "u1", SentAt: at, Content: "hello!"})

	if a != b {
		t.Fatal("fingerprint must be deterministic over identical input")
	}
	if a == c {
		t.Fatal("fingerprint must change when content changes")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}
