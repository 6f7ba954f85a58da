package payment

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
	payments := rg.Group("/payments")
	{
		payments.POST("", h.InitiatePayment)
		payments.GET("/:id", h.Get)
		payments.POST("/:id/confirm", h.ConfirmPayment)
		payments.POST("/:id/fail", middleware.RequirePermission(domain.PermPaymentManage), h.FailPayment)
	}
	rg.GET("/bookings/:id/payments", h.ListByBooking)
}

// InitiatePayment godoc
// @Summary      Start a payment for a booking
// @Description  Card payments return a client secret; cash and bank transfers complete immediately
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body body InitiatePaymentRequest true "Payment payload"
// @Router       /payments [post]
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := validator.First(req); err != nil {
		response.FromError(c, err)
		return
	}
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		response.FromError(c, domain.NewValidationError("payment_method", "unsupported payment method"))
		return
	}

	res, err := h.service.InitiatePayment(c.Request.Context(), middleware.Actor(c), InitiateInput{
		BookingID: req.BookingID,
		Amount:    decimal.RequireFromString(req.Amount),
		Method:    method,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// ConfirmPayment godoc
// @Summary      Confirm a pending card payment synchronously
// @Tags         Payments
// @Security     BearerAuth
// @Param        id path int true "Payment ID"
// @Param        body body ConfirmPaymentRequest false "Payment method"
// @Router       /payments/{id}/confirm [post]
func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	p, err := h.service.ConfirmPaymentSync(c.Request.Context(), middleware.Actor(c), id, req.PaymentMethodID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

func (h *Handler) FailPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	var req FailPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	p, err := h.service.Fail(c.Request.Context(), middleware.Actor(c), id, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

func (h *Handler) ListByBooking(c *gin.Context) {
	id, ok := paymentID(c)
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

func paymentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid id")
		return 0, false
	}
	return id, true
}
