package booking

import (
	"crypto/rand"
	"math/big"
)

const (
	referenceAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceSuffixLen  = 8
	maxReferenceAttempt = 5
)

// ReferenceFunc builds a booking reference from a domain prefix and the
// owning tenant id.
type ReferenceFunc func(prefix, tenantID string) (string, error)

// NewReference returns prefix + tenantID + an 8 character random
// alphanumeric suffix.  Uniqueness is enforced by the store.
func NewReference(prefix, tenantID string) (string, error) {
	buf := make([]byte, referenceSuffixLen)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = referenceAlphabet[n.Int64()]
	}
	return prefix + tenantID + string(buf), nil
}
