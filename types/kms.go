package types

// ProviderType represents the type of KMS provider guarding the master key
type ProviderType string

const (
	ProviderAWS   ProviderType = "aws"
	ProviderAzure ProviderType = "azure"
	ProviderGCP   ProviderType = "gcp"
	ProviderVault ProviderType = "vault"
	ProviderAead  ProviderType = "aead"
)

// KMSCredentials represents KMS provider credentials
type KMSCredentials struct {
	// AWS credentials
	AccessKeyID     string `json:"accessKeyId,omitempty" bson:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" bson:"secretAccessKey,omitempty"`
	SessionToken    string `json:"sessionToken,omitempty" bson:"sessionToken,omitempty"`

	// Azure credentials
	TenantID     string `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	ClientID     string `json:"clientId,omitempty" bson:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty" bson:"clientSecret,omitempty"`

	// GCP credentials
	CredentialsJSON string `json:"credentialsJson,omitempty" bson:"credentialsJson,omitempty"`

	// Vault credentials
	Token string `json:"token,omitempty" bson:"token,omitempty"`
}

// CryptoConfig is the explicit master-key configuration handed to the key
// manager at construction. Nothing in the key path reads the environment ad
// hoc; tests construct this with a fixed aead key.
type CryptoConfig struct {
	Provider ProviderType `json:"provider"`

	// Cloud KMS / Vault settings
	KeyID        string          `json:"keyId,omitempty"`
	Region       string          `json:"region,omitempty"`
	VaultAddress string          `json:"vaultAddress,omitempty"`
	VaultMount   string          `json:"vaultMount,omitempty"`
	Credentials  *KMSCredentials `json:"credentials,omitempty"`

	// Static AEAD master key (self-hosted deployments and tests)
	AeadKeyBase64 string `json:"-"`
	AeadKeyID     string `json:"aeadKeyId,omitempty"`
}
