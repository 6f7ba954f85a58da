package refund

import (
	"net/http"
	"strconv"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/pkg/response"
	"hotelbooking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	refunds := rg.Group("/refunds")
	{
		refunds.POST("", middleware.RequirePermission(domain.PermRefundRequest), h.RequestRefund)
		refunds.POST("/:id/process", middleware.RequirePermission(domain.PermRefundProcess), h.ProcessRefund)
		refunds.POST("/:id/cancel", middleware.RequirePermission(domain.PermRefundRequest), h.CancelRefund)
	}
	rg.GET("/bookings/:id/refunds", h.ListByBooking)
}

func (h *Handler) RequestRefund(c *gin.Context) {
	var req RequestRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := validator.First(req); err != nil {
		response.FromError(c, err)
		return
	}
	method, ok := domain.ParseRefundMethod(req.Method)
	if !ok {
		response.FromError(c, domain.NewValidationError("refund_method", "unsupported refund method"))
		return
	}

	rf, err := h.service.RequestRefund(c.Request.Context(), middleware.Actor(c), RequestInput{
		BookingID: req.BookingID,
		PaymentID: req.PaymentID,
		Amount:    decimal.RequireFromString(req.Amount),
		Method:    method,
		Notes:     req.Notes,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"refund": rf})
}

// ProcessRefund answers 202 while a gateway refund is still in flight.
func (h *Handler) ProcessRefund(c *gin.Context) {
	id, ok := refundID(c)
	if !ok {
		return
	}
	var req ProcessRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	rf, err := h.service.ProcessRefund(c.Request.Context(), middleware.Actor(c), id, req.Method)
	if err != nil {
		response.FromError(c, err)
		return
	}
	status := http.StatusOK
	if rf.Status == domain.RefundProcessing {
		status = http.StatusAccepted
	}
	response.Success(c, status, gin.H{"refund": rf})
}

func (h *Handler) CancelRefund(c *gin.Context) {
	id, ok := refundID(c)
	if !ok {
		return
	}
	rf, err := h.service.CancelRefund(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"refund": rf})
}

func (h *Handler) ListByBooking(c *gin.Context) {
	id, ok := refundID(c)
	if !ok {
		return
	}
	items, err := h.service.ListByBooking(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

func refundID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid id")
		return 0, false
	}
	return id, true
}
