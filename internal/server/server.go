package server

import (
	"context"
	"net/http"
	"time"

	"payhub/internal/auth"
	"payhub/internal/config"
	"payhub/internal/gateway"
	"payhub/internal/order"
	"payhub/internal/reconcile"
	"payhub/internal/subscription"
	"payhub/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps are the services the HTTP surface is built from. Redis is optional;
// without it Idempotency-Key headers are ignored.
type Deps struct {
	Orders        *order.Manager
	Wallets       *wallet.Service
	Subscriptions *subscription.Service
	Processor     *reconcile.Processor
	Gateways      gateway.ConfigRepository
	Redis         *redis.Client
	Checks        map[string]HealthCheck
}

type Server struct {
	router *gin.Engine
	config *config.Config
	http   *http.Server
}

func New(cfg *config.Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware())

	orderHandler := order.NewHandler(deps.Orders)
	walletHandler := wallet.NewHandler(deps.Wallets)
	subscriptionHandler := subscription.NewHandler(deps.Subscriptions)
	webhookHandler := reconcile.NewHandler(deps.Processor)
	gatewayHandler := NewGatewayHandler(deps.Gateways)

	router.GET("/health", Health(deps.Checks))
	router.GET("/metrics", Metrics())

	webhooks := router.Group("/webhooks")
	webhooks.Use(RateLimitMiddleware(cfg.WebhookRateRPS, cfg.WebhookRateBurst, ClientIPKey))
	{
		webhooks.POST("/xendit", webhookHandler.Notify(gateway.ProviderXendit))
		webhooks.POST("/doku", webhookHandler.Notify(gateway.ProviderDoku))
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware, RateLimitMiddleware(cfg.APIRateRPS, cfg.APIRateBurst, UserKey))
	{
		createTopUp := []gin.HandlerFunc{orderHandler.CreateTopUp}
		if deps.Redis != nil {
			createTopUp = append([]gin.HandlerFunc{Idempotency(deps.Redis, cfg.IdempotencyTTL)}, createTopUp...)
		}
		v1.POST("/topups", createTopUp...)
		v1.GET("/topups", orderHandler.ListTopUps)
		v1.GET("/topups/:orderID", orderHandler.GetTopUp)

		v1.GET("/wallet", walletHandler.GetBalance)
		v1.GET("/wallet/transactions", walletHandler.ListTransactions)

		v1.GET("/plans", subscriptionHandler.ListPlans)
		v1.POST("/subscriptions", subscriptionHandler.Purchase)
		v1.GET("/subscriptions", subscriptionHandler.ListMy)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/gateways", gatewayHandler.List)
		admin.PUT("/gateways/:provider", gatewayHandler.Upsert)
		admin.POST("/gateways/:provider/primary", gatewayHandler.SetPrimary)
		admin.POST("/subscriptions/:id/refund", subscriptionHandler.Refund)
	}

	return &Server{
		router: router,
		config: cfg,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests. Webhook reconciliation already runs on a
// detached context, so a request cut off here still finishes its ledger write.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
