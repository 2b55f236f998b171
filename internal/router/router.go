package router

import (
	"net/http"
	"time"

	"creditshop/config"
	"creditshop/internal/handler"
	"creditshop/internal/middleware"
	"creditshop/internal/repository"
	"creditshop/internal/service"
	"creditshop/internal/ws"
	"creditshop/pkg/asaas"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, hub *ws.PaymentHub) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	couponRepo := repository.NewCouponRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	orderSvc := service.NewOrderService(db, cfg)
	reconcileSvc := service.NewReconcileService(db, hub)

	selector := asaas.NewSelector(cfg.Asaas.SandboxAPIKey, cfg.Asaas.ProductionAPIKey, cfg.Asaas.Timeout)
	resolver := func(env asaas.Env) (service.Gateway, error) {
		return selector.ClientFor(env)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	meHandler := handler.NewMeHandler(userRepo)
	orderHandler := handler.NewOrderHandler(cfg, orderSvc, reconcileSvc, resolver)
	webhookHandler := handler.NewWebhookHandler(cfg, reconcileSvc)
	couponHandler := handler.NewCouponHandler(couponRepo)
	txnHandler := handler.NewTransactionHandler(txnRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(middleware.NewRateLimiter(100, time.Minute))

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// The webhook is registered before the rate limiter: Asaas retries
	// failed deliveries and must never be throttled into a retry storm.
	api.POST("/payment/webhook", webhookHandler.Handle)

	limited := api.Group("")
	limited.Use(rateMw)
	{
		authGroup := limited.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		limited.GET("/me", authMw, meHandler.GetProfile)
		limited.PUT("/user/profile", authMw, meHandler.UpdateProfile)

		paymentGroup := limited.Group("/payment")
		paymentGroup.Use(authMw)
		{
			paymentGroup.POST("/create-order", orderHandler.CreateOrder)
			paymentGroup.GET("/status/:paymentId", orderHandler.GetStatus)
		}

		couponGroup := limited.Group("/coupons")
		{
			couponGroup.POST("", authMw, couponHandler.Create)
			couponGroup.GET("", authMw, couponHandler.List)
			couponGroup.POST("/validate", couponHandler.Validate)
		}

		limited.GET("/transactions", authMw, txnHandler.List)
	}

	r.GET("/ws/payments", ws.UpgradePaymentWS(&cfg.JWT, hub))

	return r
}
