package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	d := NewDeriver("test-secret")

	a := d.Fingerprint("203.0.113.7", "Mozilla/5.0")
	b := d.Fingerprint("203.0.113.7", "Mozilla/5.0")
	assert.Equal(t, a, b)
}

func TestFingerprintVariesWithInputs(t *testing.T) {
	d := NewDeriver("test-secret")

	base := d.Fingerprint("203.0.113.7", "Mozilla/5.0")
	assert.NotEqual(t, base, d.Fingerprint("203.0.113.8", "Mozilla/5.0"))
	assert.NotEqual(t, base, d.Fingerprint("203.0.113.7", "curl/8.0"))
}

func TestFingerprintVariesWithSecret(t *testing.T) {
	a := NewDeriver("secret-a").Fingerprint("203.0.113.7", "Mozilla/5.0")
	b := NewDeriver("secret-b").Fingerprint("203.0.113.7", "Mozilla/5.0")
	assert.NotEqual(t, a, b)
}

func TestFingerprintToleratesMissingSignature(t *testing.T) {
	d := NewDeriver("test-secret")

	a := d.Fingerprint("203.0.113.7", "")
	b := d.Fingerprint("203.0.113.7", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex of a 32-byte digest")
}
