package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ideahub/server/internal/captcha"
	"github.com/ideahub/server/internal/identity"
)

// Context key under which the voter fingerprint is stored.
const ctxVoterHash = "voter_hash"

// FingerprintMiddleware derives the pseudonymous voter hash once per
// request and stashes it in the context. The derivation is deliberately
// slow, so everything downstream (rate limiter, vote ledger) reads the
// stored value instead of re-deriving.
func FingerprintMiddleware(deriver *identity.Deriver) gin.HandlerFunc {
	return func(c *gin.Context) {
		fp := deriver.Fingerprint(c.ClientIP(), c.GetHeader("User-Agent"))
		c.Set(ctxVoterHash, fp)
		c.Next()
	}
}

// --- Rate Limiter ---

// KeyRateLimiter hands out one token bucket per voter fingerprint.
type KeyRateLimiter struct {
	visitors map[string]*rate.Limiter
	seen     map[string]time.Time
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewKeyRateLimiter(r rate.Limit, b int) *KeyRateLimiter {
	return &KeyRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		seen:     make(map[string]time.Time),
		rps:      r,
		burst:    b,
	}
}

func (rl *KeyRateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[key] = limiter
	}
	rl.seen[key] = time.Now()
	return limiter
}

// Janitor drops buckets idle longer than maxIdle. Run it in its own
// goroutine.
func (rl *KeyRateLimiter) Janitor(interval, maxIdle time.Duration) {
	for {
		time.Sleep(interval)
		rl.mu.Lock()
		for key, last := range rl.seen {
			if time.Since(last) > maxIdle {
				delete(rl.visitors, key)
				delete(rl.seen, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware rejects over-limit requests before any store is
// touched, so a limited request never has storage side effects.
func RateLimitMiddleware(limiter *KeyRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ctxVoterHash)
		if key == "" {
			key = c.ClientIP() // fingerprint middleware not applied on this route
		}
		if !limiter.GetLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}

// CaptchaMiddleware gates submissions behind reCAPTCHA when enabled.
// The token travels in the X-Captcha-Token header to keep the JSON body
// free for binding.
func CaptchaMiddleware(verifier *captcha.Verifier, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		token := c.GetHeader("X-Captcha-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CAPTCHA token required"})
			return
		}
		if !verifier.Verify(c.Request.Context(), token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid CAPTCHA verification"})
			return
		}
		c.Next()
	}
}

// AdminAuthMiddleware checks the X-Admin-Token header against the
// configured secret.
func AdminAuthMiddleware(requiredToken string) gin.HandlerFunc {
	// An empty token would let everyone in; fail closed at startup.
	if requiredToken == "" {
		panic("CRITICAL: admin token not configured.")
	}

	return func(c *gin.Context) {
		suppliedToken := c.GetHeader("X-Admin-Token")
		if suppliedToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Admin token required"})
			return
		}
		if suppliedToken != requiredToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: Invalid admin token"})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevents clickjacking
		c.Header("X-Frame-Options", "DENY")
		// Prevents MIME-type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		// API-only service; nothing here should load active content.
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}
