// Package kms provides the master-key provider used to wrap conversation keys
package kms

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	kmsaead "github.com/hashicorp/go-kms-wrapping/v2/aead"
	awskms "github.com/hashicorp/go-kms-wrapping/wrappers/awskms/v2"
	azurekeyvault "github.com/hashicorp/go-kms-wrapping/wrappers/azurekeyvault/v2"
	gcpckms "github.com/hashicorp/go-kms-wrapping/wrappers/gcpckms/v2"
	transit "github.com/hashicorp/go-kms-wrapping/wrappers/transit/v2"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// provider implements the interfaces.KMSProvider interface
type provider struct {
	wrapper         wrapping.Wrapper
	lastHealthCheck error
}

// NewProvider creates a new KMS provider from the crypto configuration
func NewProvider(config types.CryptoConfig) (interfaces.KMSProvider, error) {
	var wrapper wrapping.Wrapper
	var err error
	var keyID, location string // Variables to hold common info for logging
	ctx := context.Background()

	log.Debug().
		Str("provider", string(config.Provider)).
		Msg("Initializing KMS provider")

	switch config.Provider {
	case types.ProviderAWS:
		keyID = config.KeyID
		location = config.Region
		if err = validateAWSConfig(config); err != nil {
			return nil, fmt.Errorf("invalid AWS KMS configuration: %w", err)
		}
		wrapper, err = createAWSWrapper(config)
	case types.ProviderAzure:
		keyID = config.KeyID
		// Azure doesn't have a direct 'region' equivalent, log VaultAddress
		location = config.VaultAddress
		if err = validateAzureConfig(config); err != nil {
			return nil, fmt.Errorf("invalid Azure Key Vault configuration: %w", err)
		}
		wrapper, err = createAzureWrapper(config)
	case types.ProviderGCP:
		keyID = config.KeyID
		if err = validateGCPConfig(config); err != nil {
			return nil, fmt.Errorf("invalid GCP KMS configuration: %w", err)
		}
		// If validation passes, parsing for logging context is safe
		parts := strings.Split(config.KeyID, "/")
		location = parts[3]
		wrapper, err = createGCPWrapper(config)
	case types.ProviderVault:
		keyID = config.KeyID
		location = config.VaultAddress
		if err = validateVaultConfig(config); err != nil {
			return nil, fmt.Errorf("invalid Vault configuration: %w", err)
		}
		wrapper, err = createVaultWrapper(config)
	case types.ProviderAead:
		if config.AeadKeyBase64 == "" {
			return nil, fmt.Errorf("AEAD provider requires AeadKeyBase64")
		}

		decodedKey, keyErr := base64.StdEncoding.DecodeString(config.AeadKeyBase64)
		if keyErr != nil {
			return nil, fmt.Errorf("failed to decode AeadKeyBase64: %w", keyErr)
		}
		if len(decodedKey) != 32 {
			return nil, fmt.Errorf("decoded AEAD key must be 32 bytes for AES-256-GCM, got %d", len(decodedKey))
		}

		aeadWrapper := kmsaead.NewWrapper()
		opts := []wrapping.Option{kmsaead.WithKey(decodedKey)}
		if config.AeadKeyID != "" {
			opts = append(opts, wrapping.WithKeyId(config.AeadKeyID))
		}
		_, err = aeadWrapper.SetConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to configure AEAD wrapper: %w", err)
		}
		wrapper = aeadWrapper
		keyID = config.AeadKeyID
		location = "local"
	default:
		return nil, fmt.Errorf("unsupported KMS provider type: %s", config.Provider)
	}

	if err != nil {
		log.Error().Err(err).Str("provider", string(config.Provider)).Msg("Failed to create KMS provider wrapper")
		return nil, fmt.Errorf("failed to create wrapper: %w", err)
	}

	log.Info().
		Str("provider", string(config.Provider)).
		Str("keyIdentifier", keyID).
		Str("locationContext", location).
		Msg("KMS provider initialized successfully")

	return &provider{
		wrapper:         wrapper,
		lastHealthCheck: nil,
	}, nil
}

// GetWrapper returns the underlying KMS wrapper
func (p *provider) GetWrapper() wrapping.Wrapper {
	return p.wrapper
}

// Test tests the KMS wrapper by performing a test encryption/decryption
func (p *provider) Test(ctx context.Context) error {
	if p.wrapper == nil {
		return fmt.Errorf("wrapper not initialized")
	}

	testData := []byte("test")

	encrypted, err := p.wrapper.Encrypt(ctx, testData)
	if err != nil {
		return fmt.Errorf("encryption test failed: %w", err)
	}

	decrypted, err := p.wrapper.Decrypt(ctx, encrypted)
	if err != nil {
		return fmt.Errorf("decryption test failed: %w", err)
	}

	if string(decrypted) != string(testData) {
		return fmt.Errorf("decrypted data does not match original")
	}
	return nil
}

// HealthCheck performs a comprehensive health check of the KMS provider
func (p *provider) HealthCheck(ctx context.Context) error {
	if p.wrapper == nil {
		return fmt.Errorf("KMS provider not properly initialized: wrapper is nil")
	}

	err := p.Test(ctx)
	if err != nil {
		p.lastHealthCheck = fmt.Errorf("KMS provider health check failed: %w", err)
		return p.lastHealthCheck
	}

	p.lastHealthCheck = nil
	return nil
}

// GetLastHealthCheckError returns the last health check error if any
func (p *provider) GetLastHealthCheckError() error {
	return p.lastHealthCheck
}

// validateAWSConfig validates AWS KMS configuration
func validateAWSConfig(config types.CryptoConfig) error {
	if config.KeyID == "" {
		return fmt.Errorf("key ID (ARN) is required")
	}

	if config.Region == "" {
		return fmt.Errorf("region is required")
	}

	if config.Credentials != nil {
		hasAccessKey := config.Credentials.AccessKeyID != ""
		hasSecretKey := config.Credentials.SecretAccessKey != ""
		if (hasAccessKey && !hasSecretKey) || (!hasAccessKey && hasSecretKey) {
			return fmt.Errorf("both accessKeyId and secretAccessKey must be provided if using credentials")
		}
	} else {
		log.Info().Msg("AWS credentials not provided in config, assuming environment variables or default credentials")
	}

	return nil
}

// validateAzureConfig validates Azure Key Vault configuration
func validateAzureConfig(config types.CryptoConfig) error {
	if config.KeyID == "" {
		return fmt.Errorf("key ID (URL) is required")
	}
	// Validate VaultAddress format (basic check)
	if !strings.HasPrefix(config.VaultAddress, "https://") || !strings.Contains(config.VaultAddress, ".vault.azure.net") {
		return fmt.Errorf("vault address must be a valid Azure Key Vault URL (e.g., https://myvault.vault.azure.net)")
	}

	if config.Credentials != nil {
		if config.Credentials.TenantID == "" || config.Credentials.ClientID == "" || config.Credentials.ClientSecret == "" {
			return fmt.Errorf("tenantId, clientId and clientSecret are required in credentials and cannot be empty")
		}
	} else {
		// If credentials are not provided, the library might use other auth methods (e.g., MSI)
		log.Info().Msg("Azure credentials not provided, assuming alternative authentication method (e.g., Managed Identity)")
	}

	return nil
}

// validateGCPConfig validates GCP KMS configuration
func validateGCPConfig(config types.CryptoConfig) error {
	if config.KeyID == "" {
		return fmt.Errorf("resource name is required")
	}
	// Basic format validation for the resource name:
	// projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	parts := strings.Split(config.KeyID, "/")
	if len(parts) != 8 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "keyRings" || parts[6] != "cryptoKeys" {
		return fmt.Errorf("invalid resource name format. Expected: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}")
	}
	if parts[1] == "" || parts[3] == "" || parts[5] == "" || parts[7] == "" {
		return fmt.Errorf("project, location, keyRing, and cryptoKey components in resource name cannot be empty")
	}

	if config.Credentials != nil {
		if config.Credentials.CredentialsJSON == "" {
			return fmt.Errorf("credentialsJson is required in credentials and cannot be empty")
		}
	} else {
		log.Info().Msg("GCP credentials not provided in config, assuming Application Default Credentials (ADC).")
	}

	return nil
}

// validateVaultConfig validates HashiCorp Vault configuration
func validateVaultConfig(config types.CryptoConfig) error {
	if config.KeyID == "" {
		return fmt.Errorf("key ID (key name) is required")
	}

	if config.VaultAddress == "" {
		return fmt.Errorf("vault address is required")
	}

	// VaultMount is optional, defaults handled by library

	if config.Credentials != nil {
		if config.Credentials.Token == "" {
			return fmt.Errorf("token is required in credentials and cannot be empty")
		}
	} else {
		// Token might come from env (VAULT_TOKEN) or other auth methods
		log.Info().Msg("Vault token not provided in config, assuming VAULT_TOKEN environment variable or other auth method")
	}

	return nil
}

// createAWSWrapper creates an AWS KMS wrapper
func createAWSWrapper(config types.CryptoConfig) (wrapping.Wrapper, error) {
	wrapper := awskms.NewWrapper()

	configMap := map[string]string{
		"kms_key_id": config.KeyID,
		"region":     config.Region,
	}

	if config.Credentials != nil {
		if config.Credentials.AccessKeyID != "" {
			configMap["access_key"] = config.Credentials.AccessKeyID
		}
		if config.Credentials.SecretAccessKey != "" {
			configMap["secret_key"] = config.Credentials.SecretAccessKey
		}
		if config.Credentials.SessionToken != "" {
			configMap["session_token"] = config.Credentials.SessionToken
		}
	}

	_, err := wrapper.SetConfig(context.Background(), wrapping.WithConfigMap(configMap))
	if err != nil {
		return nil, fmt.Errorf("failed to configure AWS KMS wrapper: %w", err)
	}

	return wrapper, nil
}

// createAzureWrapper creates an Azure Key Vault wrapper
func createAzureWrapper(config types.CryptoConfig) (wrapping.Wrapper, error) {
	wrapper := azurekeyvault.NewWrapper()

	// Example KeyID URL: https://myvault.vault.azure.net/keys/mykey/version
	keyName := config.KeyID // Default to full ID if parsing fails
	keyVersion := ""
	vaultName := ""

	parts := strings.Split(config.KeyID, "/")
	if len(parts) >= 5 && parts[3] == "keys" {
		keyName = parts[4]
		if len(parts) >= 6 {
			keyVersion = parts[5]
		}
	} else {
		log.Warn().Str("keyId", config.KeyID).Msg("Azure KeyID does not look like a standard Key Identifier URL. Using the full value as key_name.")
	}

	// Parse VaultAddress URL (validation ensures it's in the correct format)
	prefixRemoved := strings.TrimPrefix(config.VaultAddress, "https://")
	vaultNameParts := strings.Split(prefixRemoved, ".")
	if len(vaultNameParts) > 0 {
		vaultName = vaultNameParts[0]
	} else {
		return nil, fmt.Errorf("could not parse vault name from VaultAddress: %s", config.VaultAddress)
	}

	configMap := map[string]string{
		"key_name":   keyName,
		"vault_name": vaultName,
		"vault_url":  config.VaultAddress,
	}
	if keyVersion != "" {
		configMap["key_version"] = keyVersion
	}

	if config.Credentials != nil {
		configMap["tenant_id"] = config.Credentials.TenantID
		configMap["client_id"] = config.Credentials.ClientID
		configMap["client_secret"] = config.Credentials.ClientSecret
	}

	_, err := wrapper.SetConfig(context.Background(), wrapping.WithConfigMap(configMap))
	if err != nil {
		return nil, fmt.Errorf("failed to configure Azure Key Vault wrapper: %w", err)
	}

	return wrapper, nil
}

// createGCPWrapper creates a Google Cloud KMS wrapper
func createGCPWrapper(config types.CryptoConfig) (wrapping.Wrapper, error) {
	wrapper := gcpckms.NewWrapper()

	parts := strings.Split(config.KeyID, "/")
	if len(parts) != 8 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "keyRings" || parts[6] != "cryptoKeys" {
		return nil, fmt.Errorf("internal error: invalid resource name format passed validation: %s", config.KeyID)
	}

	configMap := map[string]string{
		"project":    parts[1],
		"region":     parts[3],
		"key_ring":   parts[5],
		"crypto_key": parts[7],
	}

	// If credentials are provided, write to temp file and pass path to library
	if config.Credentials != nil {
		credsJSON := config.Credentials.CredentialsJSON
		if credsJSON == "" {
			return nil, fmt.Errorf("internal error: invalid or missing credentialsJson in GCP config credentials")
		}

		tempFile, err := os.CreateTemp("", "gcp-creds-*.json")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary credentials file: %w", err)
		}
		defer func() {
			if errRemove := os.Remove(tempFile.Name()); errRemove != nil {
				log.Error().Err(errRemove).Str("filePath", tempFile.Name()).Msg("Failed to remove temporary credentials file")
			}
		}()

		if _, err := tempFile.Write([]byte(credsJSON)); err != nil {
			if closeErr := tempFile.Close(); closeErr != nil {
				log.Error().Err(closeErr).Str("filePath", tempFile.Name()).Msg("Failed to close temporary credentials file after write error")
			}
			return nil, fmt.Errorf("failed to write credentials to temporary file: %w", err)
		}
		if err := tempFile.Close(); err != nil {
			log.Error().Err(err).Str("filePath", tempFile.Name()).Msg("Failed to close temporary credentials file after successful write")
		}

		configMap["credentials"] = tempFile.Name()
	} else {
		// Rely on ADC (env var, metadata server, etc.)
		log.Info().Msg("GCP credentials not provided in config, relying on Application Default Credentials (ADC).")
	}

	_, err := wrapper.SetConfig(context.Background(), wrapping.WithConfigMap(configMap))
	if err != nil {
		return nil, fmt.Errorf("failed to configure GCP KMS wrapper: %w", err)
	}

	return wrapper, nil
}

// createVaultWrapper creates a HashiCorp Vault Transit wrapper
func createVaultWrapper(config types.CryptoConfig) (wrapping.Wrapper, error) {
	wrapper := transit.NewWrapper()

	configMap := map[string]string{
		"address":  config.VaultAddress,
		"key_name": config.KeyID,
	}
	if config.VaultMount != "" {
		configMap["mount_path"] = config.VaultMount
	}

	if config.Credentials != nil && config.Credentials.Token != "" {
		configMap["token"] = config.Credentials.Token
	}

	_, err := wrapper.SetConfig(context.Background(), wrapping.WithConfigMap(configMap))
	if err != nil {
		return nil, fmt.Errorf("failed to configure Vault Transit wrapper: %w", err)
	}

	return wrapper, nil
}
