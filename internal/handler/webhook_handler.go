package handler

import (
	"log"
	"net/http"

	"creditshop/config"
	"creditshop/internal/service"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	cfg          *config.Config
	reconcileSvc *service.ReconcileService
}

func NewWebhookHandler(cfg *config.Config, reconcileSvc *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, reconcileSvc: reconcileSvc}
}

// Handle processes a gateway push. A wrong shared-secret token is the only
// rejection; after that the response is always 200, including on processing
// errors, so the gateway never ends up in an infinite retry loop over an
// event we have already logged.
func (h *WebhookHandler) Handle(c *gin.Context) {
	token := c.GetHeader("asaas-webhook-token")
	if !h.validToken(token) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}
	var evt service.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		// Malformed payloads are acknowledged and dropped.
		c.Status(http.StatusOK)
		return
	}
	if err := h.reconcileSvc.ProcessWebhook(evt); err != nil {
		log.Printf("[WEBHOOK] processing failed: event=%s err=%v", evt.Event, err)
	}
	c.Status(http.StatusOK)
}

func (h *WebhookHandler) validToken(token string) bool {
	if token == "" {
		return false
	}
	for _, t := range h.cfg.Asaas.WebhookTokens {
		if token == t {
			return true
		}
	}
	return false
}
