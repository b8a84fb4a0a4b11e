package types

import (
	"time"
)

// MessageType distinguishes plain text messages from file attachments.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

// Message is the sanitized plaintext record kept for search and display.
// It is immutable once created except for the archive/tombstone flags.
type Message struct {
	ID             string      `json:"id" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	SenderID       string      `json:"senderId" bson:"senderId"`
	RecipientID    string      `json:"recipientId,omitempty" bson:"recipientId,omitempty"`
	Content        string      `json:"content" bson:"content"`
	Type           MessageType `json:"type" bson:"type"`
	FileRef        *FileRef    `json:"fileRef,omitempty" bson:"fileRef,omitempty"`
	Archived       bool        `json:"archived" bson:"archived"`
	Deleted        bool        `json:"deleted" bson:"deleted"`
	CreatedAt      time.Time   `json:"createdAt" bson:"createdAt"`
}

// FileRef points at an attachment held by the file-storage layer.
type FileRef struct {
	Name string `json:"name" bson:"name"`
	Size int64  `json:"size" bson:"size"`
	Ref  string `json:"ref,omitempty" bson:"ref,omitempty"`
}

// EncryptedMessage is the sealed counterpart of a Message. KeyVersion pins
// the ciphertext to the conversation key version it was sealed under, so a
// later rotation never invalidates it.
type EncryptedMessage struct {
	MessageID   string    `json:"messageId" bson:"_id"`
	Ciphertext  []byte    `json:"ciphertext" bson:"ciphertext"`
	IV          []byte    `json:"iv" bson:"iv"`
	Tag         []byte    `json:"tag" bson:"tag"`
	AAD         []byte    `json:"aad" bson:"aad"`
	Fingerprint string    `json:"fingerprint" bson:"fingerprint"`
	KeyVersion  int       `json:"keyVersion" bson:"keyVersion"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// EncryptedPayload is the in-memory result of one AEAD seal operation.
type EncryptedPayload struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
	AAD        []byte
}

// FileChunk is a single independently authenticated slice of a sealed file.
// Index and Last are bound into the AAD so chunks cannot be reordered,
// dropped or truncated without detection.
type FileChunk struct {
	Index      uint32 `json:"index" bson:"index"`
	Last       bool   `json:"last" bson:"last"`
	Ciphertext []byte `json:"ciphertext" bson:"ciphertext"`
}

// MessageDigest is the canonical input of the tamper-evidence fingerprint.
type MessageDigest struct {
	SenderID string
	SentAt   time.Time
	Content  string
}
