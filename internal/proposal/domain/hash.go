package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashShareToken hashes a raw share token with the same strategy used
// at issuance, so lookups never touch the raw secret.
func HashShareToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// SignatureCommitment computes the stored signature hash. This is a
// commitment binding the signer's claimed identity and request context
// for the audit trail; it is not a cryptographic signature and offers
// no non-repudiation against a malicious client.
func SignatureCommitment(proposalID, signerName, signerDocument, requesterIP, userAgent string) string {
	manifest := strings.Join([]string{proposalID, signerName, signerDocument, requesterIP, userAgent}, "|")
	sum := sha256.Sum256([]byte(manifest))
	return hex.EncodeToString(sum[:])
}
