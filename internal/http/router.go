// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/agent"
	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/http/handlers"
	"github.com/pmfonseca/wedding-assistant/internal/http/middleware"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/memory"
	"github.com/pmfonseca/wedding-assistant/internal/rag"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
	"github.com/pmfonseca/wedding-assistant/internal/services"
	"github.com/pmfonseca/wedding-assistant/internal/tools"
	"github.com/pmfonseca/wedding-assistant/internal/websearch"
)

// conversationRepoShim adapts the repository free functions to the
// services.ConversationRepo interface expected by the ConversationService.
// This keeps services decoupled from the concrete repo package while reusing
// existing functions.
type conversationRepoShim struct{}

// CreateConversation proxies repo.CreateConversation.
func (conversationRepoShim) CreateConversation(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Conversation, error) {
	return repo.CreateConversation(ctx, db, userID, title)
}

// ListConversations proxies repo.ListConversations.
func (conversationRepoShim) ListConversations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	return repo.ListConversations(ctx, db, userID)
}

// GetConversation proxies repo.GetConversation.
func (conversationRepoShim) GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id, userID)
}

// UpdateConversationTitle proxies repo.UpdateConversationTitle.
func (conversationRepoShim) UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateConversationTitle(ctx, db, id, userID, title)
}

// DeleteConversation proxies repo.DeleteConversation.
func (conversationRepoShim) DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteConversation(ctx, db, id, userID)
}

// CountConversations proxies repo.CountConversations (pagination support).
func (conversationRepoShim) CountConversations(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountConversations(ctx, db, userID)
}

// ListConversationsPage proxies repo.ListConversationsPage (pagination support).
func (conversationRepoShim) ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Conversation, error) {
	return repo.ListConversationsPage(ctx, db, userID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, llmClient *llm.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // upstream provider credentials must never reach logs
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (12 MiB; document uploads are capped at 10 MiB
	// by the handler, plus multipart overhead)
	r.Use(limitBody(12 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, conversationID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, conversationID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/llm
	ingester := rag.NewIngester(db, llmClient, cfg.RAG)
	retriever := rag.NewRetriever(db, llmClient, cfg.RAG)

	registry := agent.NewRegistry()
	searchTool := &tools.SearchWebTool{
		DB:     db,
		Client: websearch.NewClient(cfg.WebSearch),
		TTL:    cfg.WebSearch.CacheTTL,
	}
	searchTool.Register(registry)
	weddingTools := &tools.WeddingDataTools{DB: db}
	weddingTools.Register(registry)

	ag := agent.New(llmClient, registry, cfg.LLM)
	memorySvc := memory.NewService(db, llmClient, cfg.Memory)

	convSvc := services.NewConversationService(db, conversationRepoShim{})
	chatSvc := services.NewChatService(db, ag, retriever, memorySvc, cfg.LLM)

	h := handlers.New(convSvc, chatSvc, memorySvc, ingester, retriever, db)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Conversations
		api.POST("/conversations", h.CreateConversation)
		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id", h.GetConversation)
		api.PUT("/conversations/:id/title", h.UpdateConversationTitle)
		api.DELETE("/conversations/:id", h.DeleteConversation)

		// Messages
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.PostMessage)

		// Knowledge base
		api.POST("/documents", h.UploadDocument)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/stats", h.DocumentStats)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.POST("/search", h.SearchDocuments)

		// Memories
		api.GET("/memories", h.ListMemories)
		api.GET("/memories/stats", h.MemoryStats)
		api.DELETE("/memories/:id", h.DeleteMemory)

		// Wedding data
		api.GET("/guests", h.ListGuests)
		api.GET("/guests/stats", h.GuestStats)
		api.GET("/events", h.ListEvents)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
