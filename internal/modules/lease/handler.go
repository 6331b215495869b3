package lease

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
	rg.GET("/leases", h.List)
	rg.GET("/leases/:id", h.Get)
	rg.POST("/leases", h.Create)
	rg.DELETE("/leases/:id", h.DeletePending)
	rg.PATCH("/leases/:id/document", h.UploadSignedDocument)
	rg.PATCH("/leases/:id/confirm-deposit", h.ConfirmDeposit)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	l, err := h.service.Create(c.Request.Context(), middleware.ActorFrom(c), CreateParams{
		TenantID:      req.TenantID,
		RoomID:        req.RoomID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		DepositAmount: req.DepositAmount,
	})
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"lease": l})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	l, err := h.service.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lease": l})
}

func (h *Handler) List(c *gin.Context) {
	leases, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"leases": leases})
}

func (h *Handler) UploadSignedDocument(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.UploadSignedDocument(c.Request.Context(), middleware.ActorFrom(c), id, req.DocumentURL); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"signed": true})
}

func (h *Handler) ConfirmDeposit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req ConfirmDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.ConfirmDeposit(c.Request.Context(), middleware.ActorFrom(c), id, req.Method, req.Amount, req.Reference); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"active": true})
}

func (h *Handler) DeletePending(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.DeletePending(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id parameter")
		return 0, false
	}
	return id, true
}
