package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ideahub/server/internal/captcha"
	"github.com/ideahub/server/internal/config"
	"github.com/ideahub/server/internal/ideas"
	"github.com/ideahub/server/internal/identity"
	"github.com/ideahub/server/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, cfg *config.Config, svc *ideas.Service, deriver *identity.Deriver, hub *ws.Hub) {

	// --- Dependencies ---
	env := &Env{Svc: svc, Hub: hub}
	verifier := captcha.NewVerifier(cfg.CaptchaSecret)

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Token", "X-Captcha-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// --- Rate Limiter Setup ---
	// One bucket map per operation class, keyed by voter fingerprint.
	submitLimiter := NewKeyRateLimiter(rate.Limit(cfg.SubmitRPS), 1)
	voteLimiter := NewKeyRateLimiter(rate.Limit(cfg.VoteRPS), 1)
	go submitLimiter.Janitor(10*time.Minute, 30*time.Minute)
	go voteLimiter.Janitor(10*time.Minute, 30*time.Minute)

	// --- API Routes ---

	api := router.Group("/api")
	{
		api.GET("/health", env.Health)
		api.GET("/ideas", env.ListIdeas)

		// Writes are fingerprinted, rate limited, and (for submissions)
		// CAPTCHA gated before the core is ever touched.
		fingerprinted := api.Group("", FingerprintMiddleware(deriver))
		{
			fingerprinted.POST("/ideas",
				CaptchaMiddleware(verifier, cfg.CaptchaEnabled),
				RateLimitMiddleware(submitLimiter),
				env.CreateIdea)
			fingerprinted.POST("/ideas/:id/vote",
				RateLimitMiddleware(voteLimiter),
				env.VoteOnIdea)
		}

		admin := api.Group("/admin", AdminAuthMiddleware(cfg.AdminToken))
		{
			admin.POST("/approve/:id", env.ApproveIdea)
			admin.POST("/reject/:id", env.RejectIdea)
			admin.DELETE("/reject/:id", env.RejectIdea)
		}
	}

	// --- WebSocket Route ---

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
}
