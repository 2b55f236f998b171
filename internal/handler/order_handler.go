package handler

import (
	"errors"
	"log"
	"net/http"

	"creditshop/config"
	"creditshop/internal/middleware"
	"creditshop/internal/models"
	"creditshop/internal/service"
	"creditshop/pkg/asaas"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	cfg          *config.Config
	orderSvc     *service.OrderService
	reconcileSvc *service.ReconcileService
	resolver     service.GatewayResolver
}

func NewOrderHandler(cfg *config.Config, orderSvc *service.OrderService, reconcileSvc *service.ReconcileService, resolver service.GatewayResolver) *OrderHandler {
	return &OrderHandler{cfg: cfg, orderSvc: orderSvc, reconcileSvc: reconcileSvc, resolver: resolver}
}

type cardRequest struct {
	HolderName  string `json:"holder_name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CCV         string `json:"ccv"`
}

type CreateOrderRequest struct {
	Quantity      int64        `json:"quantity" binding:"required,min=1"`
	PaymentMethod string       `json:"payment_method" binding:"required,oneof=pix card"`
	CouponCode    string       `json:"coupon_code"`
	Card          *cardRequest `json:"card"`
}

// gatewayFor resolves the Asaas environment from explicit request signals
// and returns a client for it.
func (h *OrderHandler) gatewayFor(c *gin.Context) (service.Gateway, error) {
	env := asaas.ResolveEnv(
		c.GetHeader("x-asaas-env"),
		c.GetHeader("Origin"),
		c.Request.Host,
		h.cfg.Server.Env,
		h.cfg.Asaas.ProductionHosts,
	)
	return h.resolver(env)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gw, err := h.gatewayFor(c)
	if err != nil {
		log.Printf("[ORDER] gateway unavailable: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment gateway unavailable"})
		return
	}
	in := service.CreateOrderInput{
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	}
	if req.PaymentMethod == models.MethodCard && req.Card != nil {
		in.Card = &service.CardDetails{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CCV:         req.Card.CCV,
		}
	}
	result, err := h.orderSvc.CreateOrder(c.Request.Context(), gw, middleware.GetUserID(c), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponInvalid):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCouponExhausted), errors.Is(err, service.ErrAddressRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrGateway):
			log.Printf("[ORDER] gateway failure: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			log.Printf("[ORDER] create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order creation failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetStatus is the polling trigger of the reconciliation engine.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	paymentID := c.Param("paymentId")
	gw, err := h.gatewayFor(c)
	if err != nil {
		// Degrade like any other gateway failure: the client keeps polling.
		log.Printf("[STATUS] gateway unavailable: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": models.StatusPending})
		return
	}
	result, err := h.reconcileSvc.PollStatus(c.Request.Context(), gw, middleware.GetUserID(c), paymentID)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		log.Printf("[STATUS] poll failed for %s: %v", paymentID, err)
		c.JSON(http.StatusOK, gin.H{"status": models.StatusPending})
		return
	}
	c.JSON(http.StatusOK, result)
}
