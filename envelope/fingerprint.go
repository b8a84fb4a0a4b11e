package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// Fingerprint produces a one-way digest over the canonical serialization of
// a message's sender, send time and content. Used purely for tamper-evidence
// checks, never for lookups.
func Fingerprint(meta types.MessageDigest) string {
	canonical := fmt.Sprintf("%s|%d|%s", meta.SenderID, meta.SentAt.UTC().UnixNano(), meta.Content)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
