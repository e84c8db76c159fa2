package ideas

import (
	"math/rand"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// slugify normalizes a title into a URL-safe stem: lowercase, non-word
// runs collapsed to single hyphens, edges trimmed.
func slugify(title string) string {
	s := strings.ToLower(title)
	s = nonWord.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// newSlug appends a 6-char random suffix to the slugified title.
// The suffix space (36^6) is wide enough that two ideas with the same
// title colliding is a freak event handled by one retry, not a
// correctness concern.
func newSlug(title string) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return slugify(title) + "-" + string(b)
}
