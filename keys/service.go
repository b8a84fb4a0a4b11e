// Package keys implements the per-conversation key lifecycle: generation,
// wrapping under the master key, retrieval, rotation and historical unwrap.
package keys

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const (
	// keySize is the conversation key length: 256 bits
	keySize = 32

	// defaultCacheTTL bounds how long unwrapped material stays in process
	defaultCacheTTL = 15 * time.Minute

	wrapTimeout = 5 * time.Second
)

type cacheEntry struct {
	value     *types.SecureBytes
	expiresAt time.Time
}

// Service implements interfaces.KeyManager. The unwrapped key material it
// hands out lives only in process memory; storage only ever sees the
// wrapped BlobInfo.
type Service struct {
	provider interfaces.KMSProvider
	store    interfaces.KeyStore
	logger   zerolog.Logger

	cache    sync.Map // "<conversationID>:<version>" -> *cacheEntry
	cacheTTL time.Duration
}

var _ interfaces.KeyManager = (*Service)(nil)

// NewService creates a new key manager. The KMS provider carries the
// process-wide master key configured through types.CryptoConfig.
func NewService(provider interfaces.KMSProvider, store interfaces.KeyStore, logger zerolog.Logger) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("KMS provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("key store is required")
	}
	return &Service{
		provider: provider,
		store:    store,
		logger:   logger.With().Str("component", "keys").Logger(),
		cacheTTL: defaultCacheTTL,
	}, nil
}

// GetOrCreateKey returns the active key for the conversation, creating
// version 1 if none exists. Two racing first-sends resolve through the
// store's uniqueness guarantee: the loser re-reads the winner's document.
func (s *Service) GetOrCreateKey(ctx context.Context, conversationID string) (*types.KeyMaterial, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	existing, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation key: %w", err)
	}
	if existing != nil {
		return s.materialFor(ctx, existing)
	}

	material, err := s.generateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key material: %v", ErrKeyUnavailable, err)
	}

	version, err := s.wrapKey(ctx, material, conversationID, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	now := time.Now().UTC()
	doc := &types.ConversationKey{
		ConversationID: conversationID,
		Version:        1,
		Active:         true,
		Versions:       []types.ConversationKeyVersion{*version},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, doc); err != nil {
		if errors.Is(err, ErrKeyExists) {
			// Lost the create race; the winner's row is authoritative.
			s.logger.Debug().
				Str("conversationId", conversationID).
				Msg("Concurrent key creation detected, re-reading winner")
			winner, rerr := s.store.Get(ctx, conversationID)
			if rerr != nil {
				return nil, fmt.Errorf("failed to re-read conversation key after create race: %w", rerr)
			}
			if winner == nil {
				return nil, fmt.Errorf("%w: key vanished after create race", ErrKeyUnavailable)
			}
			return s.materialFor(ctx, winner)
		}
		return nil, fmt.Errorf("failed to store conversation key: %w", err)
	}

	s.cacheKey(conversationID, 1, material)
	s.logger.Info().
		Str("conversationId", conversationID).
		Int("version", 1).
		Msg("Created conversation key")

	return &types.KeyMaterial{Key: material, Version: 1}, nil
}

// RotateKey deactivates the current version and activates lastVersion+1 in
// one atomic store update. Messages sealed under older versions remain
// decryptable through Unwrap.
func (s *Service) RotateKey(ctx context.Context, conversationID string) (*types.KeyMaterial, error) {
	current, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation key for rotation: %w", err)
	}
	if current == nil {
		return nil, ErrKeyNotFound
	}

	nextVersion := current.Version + 1

	material, err := s.generateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key material: %v", ErrKeyUnavailable, err)
	}

	wrapped, err := s.wrapKey(ctx, material, conversationID, nextVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	if err := s.store.Rotate(ctx, conversationID, current.Version, *wrapped); err != nil {
		if errors.Is(err, ErrKeyConflict) {
			return nil, fmt.Errorf("rotation lost a concurrent update: %w", err)
		}
		return nil, fmt.Errorf("failed to rotate conversation key: %w", err)
	}

	s.cacheKey(conversationID, nextVersion, material)
	s.logger.Info().
		Str("conversationId", conversationID).
		Int("fromVersion", current.Version).
		Int("toVersion", nextVersion).
		Msg("Rotated conversation key")

	return &types.KeyMaterial{Key: material, Version: nextVersion}, nil
}

// Unwrap returns plaintext key material for a specific version, including
// versions rotated out of active service.
func (s *Service) Unwrap(ctx context.Context, conversationID string, version int) ([]byte, error) {
	if cached := s.cachedKey(conversationID, version); cached != nil {
		return cached, nil
	}

	doc, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation key: %w", err)
	}
	if doc == nil {
		return nil, ErrKeyNotFound
	}

	entry := doc.FindVersion(version)
	if entry == nil {
		return nil, fmt.Errorf("%w: version %d not found for conversation %s", ErrKeyUnavailable, version, conversationID)
	}

	material, err := s.unwrapVersion(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.cacheKey(conversationID, version, material)
	return material, nil
}

// Status reports the key state for admin tooling.
func (s *Service) Status(ctx context.Context, conversationID string) (*types.KeyStatus, error) {
	doc, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation key: %w", err)
	}
	if doc == nil {
		return &types.KeyStatus{Exists: false}, nil
	}
	return &types.KeyStatus{
		Exists:    true,
		Active:    doc.Active,
		Version:   doc.Version,
		Versions:  len(doc.Versions),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// materialFor unwraps the active version of an existing key document.
func (s *Service) materialFor(ctx context.Context, doc *types.ConversationKey) (*types.KeyMaterial, error) {
	active := doc.ActiveVersion()
	if active == nil {
		return nil, fmt.Errorf("%w: no active version for conversation %s", ErrKeyUnavailable, doc.ConversationID)
	}

	if cached := s.cachedKey(doc.ConversationID, active.Version); cached != nil {
		return &types.KeyMaterial{Key: cached, Version: active.Version}, nil
	}

	material, err := s.unwrapVersion(ctx, active)
	if err != nil {
		return nil, err
	}

	s.cacheKey(doc.ConversationID, active.Version, material)
	return &types.KeyMaterial{Key: material, Version: active.Version}, nil
}

// generateKey produces 256 bits of cryptographically secure random material.
func (s *Service) generateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to read random source: %w", err)
	}
	return key, nil
}

// wrapContext binds the wrapped blob to its conversation and version so a
// blob copied between documents fails to unwrap.
func wrapContext(conversationID string, version int) []byte {
	return []byte(fmt.Sprintf("conversation:%s:v%d", conversationID, version))
}

// wrapKey authenticated-encrypts key material under the master key with a
// fresh nonce, then verifies the wrap round-trips before it is persisted.
func (s *Service) wrapKey(ctx context.Context, key []byte, conversationID string, version int) (*types.ConversationKeyVersion, error) {
	wrapper := s.provider.GetWrapper()
	if wrapper == nil {
		return nil, fmt.Errorf("KMS wrapper not available from provider")
	}

	wrapCtx, cancel := context.WithTimeout(ctx, wrapTimeout)
	defer cancel()

	aad := wrapContext(conversationID, version)

	blobInfo, err := wrapper.Encrypt(wrapCtx, key, wrapping.WithAad(aad))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	if blobInfo == nil {
		return nil, fmt.Errorf("wrapped key info is nil")
	}

	// Verify unwrap before anything is stored
	verifyCtx, cancelVerify := context.WithTimeout(ctx, wrapTimeout)
	defer cancelVerify()

	unwrapped, err := wrapper.Decrypt(verifyCtx, blobInfo, wrapping.WithAad(aad))
	if err != nil {
		return nil, fmt.Errorf("failed to verify wrapped key: %w", err)
	}
	if !bytes.Equal(unwrapped, key) {
		return nil, fmt.Errorf("unwrapped key does not match original")
	}

	s.logger.Debug().
		Str("conversationId", conversationID).
		Int("version", version).
		Bool("hasIv", len(blobInfo.Iv) > 0).
		Bool("hasCiphertext", len(blobInfo.Ciphertext) > 0).
		Msg("Created and verified wrapped key version")

	return &types.ConversationKeyVersion{
		Version:     version,
		BlobInfo:    blobInfo,
		WrapContext: aad,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// unwrapVersion decrypts one stored version under the master key.
func (s *Service) unwrapVersion(ctx context.Context, entry *types.ConversationKeyVersion) ([]byte, error) {
	if entry.BlobInfo == nil {
		return nil, fmt.Errorf("%w: stored version %d has no blob info", ErrKeyUnavailable, entry.Version)
	}
	if len(entry.WrapContext) == 0 {
		return nil, fmt.Errorf("%w: stored version %d has no wrap context", ErrKeyUnavailable, entry.Version)
	}

	wrapper := s.provider.GetWrapper()
	if wrapper == nil {
		return nil, fmt.Errorf("%w: KMS wrapper not available", ErrKeyUnavailable)
	}

	key, err := wrapper.Decrypt(ctx, entry.BlobInfo, wrapping.WithAad(entry.WrapContext))
	if err != nil {
		s.logger.Error().Err(err).
			Int("version", entry.Version).
			Msg("Failed to unwrap conversation key")
		return nil, fmt.Errorf("%w: unwrap failed: %v", ErrKeyUnavailable, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: unwrapped key is empty", ErrKeyUnavailable)
	}
	return key, nil
}

func (s *Service) cacheID(conversationID string, version int) string {
	return fmt.Sprintf("%s:%d", conversationID, version)
}

func (s *Service) cacheKey(conversationID string, version int, material []byte) {
	s.cache.Store(s.cacheID(conversationID, version), &cacheEntry{
		value:     types.NewSecureBytes(material),
		expiresAt: time.Now().Add(s.cacheTTL),
	})
}

func (s *Service) cachedKey(conversationID string, version int) []byte {
	id := s.cacheID(conversationID, version)
	cached, ok := s.cache.Load(id)
	if !ok {
		return nil
	}
	entry := cached.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		s.cache.Delete(id)
		entry.value.Clear()
		return nil
	}
	return entry.value.Get()
}
