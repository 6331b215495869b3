package billing

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
	rg.GET("/invoices", h.List)
	rg.GET("/invoices/:id", h.Get)
	rg.PATCH("/invoices/:id/mark-paid", h.MarkPaid)

	staff := middleware.StaffOnly()
	rg.POST("/invoices", staff, h.Create)
	rg.GET("/invoices/preview", staff, h.PreviewMonthly)
	rg.POST("/invoices/generate", staff, h.GenerateMonthlyBulk)
	rg.POST("/invoices/sweep-overdue", middleware.AdminOnly(), h.SweepOverdue)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	inv, err := h.service.Create(c.Request.Context(), middleware.ActorFrom(c), req.LeaseID, req.Year, req.Month, req.DueDate)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"invoice": inv})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	inv, err := h.service.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invoice": inv})
}

func (h *Handler) List(c *gin.Context) {
	invoices, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invoices": invoices})
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req MarkPaidRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.MarkPaid(c.Request.Context(), middleware.ActorFrom(c), id, req.Direct); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paid": true})
}

func (h *Handler) PreviewMonthly(c *gin.Context) {
	year, month, ok := periodQuery(c)
	if !ok {
		return
	}
	previews, err := h.service.PreviewMonthly(c.Request.Context(), middleware.ActorFrom(c), year, month)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"previews": previews})
}

func (h *Handler) GenerateMonthlyBulk(c *gin.Context) {
	var req GenerateBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	result, err := h.service.GenerateMonthlyBulk(c.Request.Context(), middleware.ActorFrom(c), req.Year, req.Month, req.DueDate)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

func (h *Handler) SweepOverdue(c *gin.Context) {
	n, err := h.service.SweepOverdue(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"flipped": n})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id parameter")
		return 0, false
	}
	return id, true
}

func periodQuery(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "year query parameter is required")
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "month query parameter is required")
		return 0, 0, false
	}
	return year, month, true
}
