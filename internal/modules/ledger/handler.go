package ledger

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
	rg.GET("/leases/:id/subscriptions", h.ListSubscriptions)
	rg.POST("/subscriptions", h.Subscribe)
	rg.DELETE("/subscriptions/:id", h.Cancel)
	rg.PATCH("/subscriptions/:id/reading", h.RecordReading)

	rg.GET("/leases/:id/bookings", h.ListBookings)
	rg.POST("/service-bookings", h.BookService)
	rg.PATCH("/service-bookings/:id/complete", h.CompleteBooking)
	rg.PATCH("/service-bookings/:id/cancel", h.CancelBooking)
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	leaseID, ok := paramID(c)
	if !ok {
		return
	}
	subs, err := h.service.ListByLease(c.Request.Context(), middleware.ActorFrom(c), leaseID)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subscriptions": subs})
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	sub, err := h.service.Subscribe(c.Request.Context(), middleware.ActorFrom(c), req.LeaseID, req.ServiceID, req.Quantity)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subscription": sub})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"canceled": true})
}

func (h *Handler) RecordReading(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req RecordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	sub, err := h.service.RecordReading(c.Request.Context(), middleware.ActorFrom(c), id, req.Reading)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subscription": sub})
}

func (h *Handler) ListBookings(c *gin.Context) {
	leaseID, ok := paramID(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListBookings(c.Request.Context(), middleware.ActorFrom(c), leaseID)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": bookings})
}

func (h *Handler) BookService(c *gin.Context) {
	var req BookServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	b, err := h.service.BookService(c.Request.Context(), middleware.ActorFrom(c), req.LeaseID, req.ServiceID, req.Date, req.TimeSlot)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.CompleteBooking(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"completed": true})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req CancelBookingRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.CancelBooking(c.Request.Context(), middleware.ActorFrom(c), id, req.Reason); err != nil {
		response.Err(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"canceled": true})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id parameter")
		return 0, false
	}
	return id, true
}
