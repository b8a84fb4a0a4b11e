package types

import (
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
)

// ConversationKey holds the key lifecycle state for a single conversation.
// The document keeps every version ever issued so that ciphertext sealed
// under a rotated-out version stays decryptable.
type ConversationKey struct {
	ConversationID string                   `json:"conversationId" bson:"_id"`
	Version        int                      `json:"version" bson:"version"`
	Active         bool                     `json:"active" bson:"active"`
	Versions       []ConversationKeyVersion `json:"versions" bson:"versions"`
	CreatedAt      time.Time                `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt" bson:"updatedAt"`
}

// ConversationKeyVersion is one wrapped key generation for a conversation.
type ConversationKeyVersion struct {
	Version int `bson:"version" json:"version"`

	// Store complete BlobInfo from the KMS wrapper (wrapped key, iv, tag)
	BlobInfo *wrapping.BlobInfo `bson:"blobInfo" json:"blobInfo"`

	// WrapContext is the AAD the key was wrapped under; required for unwrap
	WrapContext []byte `bson:"wrapContext" json:"-"`

	Active    bool       `bson:"active" json:"active"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	RotatedAt *time.Time `bson:"rotatedAt,omitempty" json:"rotatedAt,omitempty"`
}

// ActiveVersion returns the currently active version entry, or nil.
func (k *ConversationKey) ActiveVersion() *ConversationKeyVersion {
	for i := range k.Versions {
		if k.Versions[i].Active {
			return &k.Versions[i]
		}
	}
	return nil
}

// FindVersion returns the entry for a specific version, active or not.
func (k *ConversationKey) FindVersion(version int) *ConversationKeyVersion {
	for i := range k.Versions {
		if k.Versions[i].Version == version {
			return &k.Versions[i]
		}
	}
	return nil
}

// KeyMaterial is unwrapped key material pinned to the version it belongs to.
// It never appears in stored form; only the wrapped BlobInfo is persisted.
type KeyMaterial struct {
	Key     []byte
	Version int
}

// KeyStatus summarizes the key state of a conversation for admin tooling.
type KeyStatus struct {
	Exists    bool      `json:"exists"`
	Active    bool      `json:"active"`
	Version   int       `json:"version"`
	Versions  int       `json:"versions"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
