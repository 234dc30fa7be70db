package handler

import (
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/middleware"
	redisStore "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/storage/redis"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	WithdrawalSvc  ports.WithdrawalService
	Registry       ports.GatewayRegistry
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Transfer lifecycle ---
	transferHandler := NewTransferHandler(deps.TransferSvc)
	transfers := v1.Group("/transfers")
	{
		transfers.POST("", rl("transfers"), transferHandler.Submit)
		transfers.GET("", rl("transfers_read"), transferHandler.List)
		transfers.GET("/stats", rl("transfers_read"), transferHandler.Stats)
		transfers.GET("/:code", rl("transfers_read"), transferHandler.Get)
		transfers.PATCH("/:code/status", rl("transfers"), transferHandler.UpdateStatus)
	}

	// --- Channel introspection ---
	channelHandler := NewChannelHandler(deps.Registry)
	channels := v1.Group("/channels")
	{
		channels.GET("", rl("channels"), channelHandler.List)
		channels.GET("/:kind", rl("channels"), channelHandler.Get)
	}

	// --- Cash-out (agent JWT required) ---
	agentAuth := middleware.AgentAuth(deps.TokenSvc, deps.Logger)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	withdrawals := v1.Group("/withdrawals", agentAuth)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Create)
		withdrawals.GET("/:code", rl("withdrawals"), withdrawalHandler.Get)
		withdrawals.POST("/:code/accept", rl("withdrawals"), withdrawalHandler.Accept)
		withdrawals.POST("/:code/finalize", rl("withdrawals"), withdrawalHandler.Finalize)
		withdrawals.POST("/:code/cancel", rl("withdrawals"), withdrawalHandler.Cancel)
	}

	return r
}
