// Package identity derives stable pseudonymous voter fingerprints.
//
// The fingerprint is a keyed, slow hash of the request's network origin
// and its client signature (the User-Agent header). It is the only
// identity the system ever stores: the raw inputs are neither persisted
// nor logged, and the server secret makes the hash irreversible without
// it. The same fingerprint doubles as the rate-limit key.
package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 100000
	keyLen     = 32
)

// Deriver computes fingerprints with a server-held secret.
type Deriver struct {
	secret []byte
}

// NewDeriver returns a Deriver peppered with the given secret.
func NewDeriver(secret string) *Deriver {
	return &Deriver{secret: []byte(secret)}
}

// Fingerprint returns the hex fingerprint for an origin address and a
// client signature. A missing signature is treated as the empty string,
// so the call never fails. Same inputs, same secret, same fingerprint.
func (d *Deriver) Fingerprint(origin, signature string) string {
	material := []byte(origin + "-" + signature)
	digest := pbkdf2.Key(material, d.secret, iterations, keyLen, sha256.New)
	return hex.EncodeToString(digest)
}
