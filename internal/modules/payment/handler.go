package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentora/internal/middleware"
	"rentora/internal/pkg/apperr"
	"rentora/internal/pkg/response"
)

type Handler struct {
	service *Service
	log     *zap.SugaredLogger
}

func NewHandler(service *Service, log *zap.SugaredLogger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the authenticated checkout endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/checkout", h.Checkout)
}

// RegisterPublicRoutes mounts the provider callback, which carries its own
// signature instead of a user token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/callback", h.Callback)
}

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	out, err := h.service.BuildCheckout(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"checkout": out})
}

// Callback acknowledges the provider with 204 whenever the payload is
// authentic, even if our own processing failed; the provider retries only on
// non-2xx, and a retry of a recorded payment is a no-op anyway.
func (h *Handler) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable request body")
		return
	}
	var cb CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid callback payload")
		return
	}

	err = h.service.HandleCallback(c.Request.Context(), cb, string(body))
	if err != nil {
		if apperr.IsKind(err, apperr.KindAuthenticity) {
			response.Err(c, err)
			return
		}
		h.log.Errorw("callback processing failed", "order_id", cb.OrderID, "err", err)
	}
	c.Status(http.StatusNoContent)
}
