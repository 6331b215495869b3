package settlement

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rentora/internal/middleware"
	"rentora/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/checkout-requests", h.ListCheckoutRequests)
	rg.POST("/checkout-requests", h.SubmitCheckoutRequest)
	rg.PATCH("/checkout-requests/:id/approve", h.ApproveCheckoutRequest)
	rg.GET("/checkout-requests/:id/damage-report", h.GetOrCreateDamageReport)

	rg.PATCH("/damage-reports/:id", h.UpdateDraft)
	rg.POST("/damage-reports/:id/attachments", h.AttachImage)
	rg.PATCH("/damage-reports/:id/submit", h.SubmitDamageReport)
	rg.PATCH("/damage-reports/:id/review", h.ReviewDamageReport)
	rg.POST("/damage-reports/:id/settlement-invoice", h.CreateSettlementInvoice)
}

func (h *Handler) SubmitCheckoutRequest(c *gin.Context) {
	var req SubmitCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	cr, err := h.service.SubmitCheckoutRequest(c.Request.Context(), middleware.ActorFrom(c), req.LeaseID, req.Reason)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"checkout_request": cr})
}

func (h *Handler) ListCheckoutRequests(c *gin.Context) {
	reqs, err := h.service.ListCheckoutRequests(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"checkout_requests": reqs})
}

func (h *Handler) ApproveCheckoutRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.ApproveCheckoutRequest(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"approved": true})
}

func (h *Handler) GetOrCreateDamageReport(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	dr, err := h.service.GetOrCreateDamageReport(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"damage_report": dr})
}

func (h *Handler) UpdateDraft(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dr, err := h.service.UpdateDraft(c.Request.Context(), middleware.ActorFrom(c), id, req.Description, req.Items)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"damage_report": dr})
}

func (h *Handler) AttachImage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req AttachImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.AttachImage(c.Request.Context(), middleware.ActorFrom(c), id, req.URL); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attached": true})
}

func (h *Handler) SubmitDamageReport(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.SubmitDamageReport(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submitted": true})
}

func (h *Handler) ReviewDamageReport(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.ReviewDamageReport(c.Request.Context(), middleware.ActorFrom(c), id, req.Approve, req.Note); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reviewed": true})
}

func (h *Handler) CreateSettlementInvoice(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req CreateSettlementInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	inv, err := h.service.CreateSettlementInvoice(c.Request.Context(), middleware.ActorFrom(c), id, req.DueDate)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"invoice": inv})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id parameter")
		return 0, false
	}
	return id, true
}
