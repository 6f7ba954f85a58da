package booking

import (
	"net/http"
	"strconv"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/pkg/response"
	"hotelbooking/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability", h.AvailableRooms)

	bookings := rg.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.List)
		bookings.GET("/:id", h.Get)
		bookings.POST("/:id/check-in", h.CheckIn)
		bookings.POST("/:id/check-out", h.CheckOut)
		bookings.POST("/:id/cancel", h.Cancel)
		bookings.POST("/:id/complete", h.Complete)
		bookings.PATCH("/:id/status", middleware.RequirePermission(domain.PermBookingManage), h.UpdateStatus)
		bookings.DELETE("/:id", middleware.RequirePermission(domain.PermBookingManage), h.Delete)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := validator.First(req); err != nil {
		response.FromError(c, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		response.FromError(c, err)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	f, err := q.toFilter()
	if err != nil {
		response.FromError(c, err)
		return
	}

	items, err := h.service.List(c.Request.Context(), middleware.Actor(c), f)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items, "limit": f.Limit, "offset": f.Offset})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CheckIn(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req CheckOutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	if err := validator.First(req); err != nil {
		response.FromError(c, err)
		return
	}

	in := CheckOutInput{Reason: req.Reason}
	if req.ActualCheckOut != "" {
		actual, err := parseDate("actual_check_out", req.ActualCheckOut)
		if err != nil {
			response.FromError(c, err)
			return
		}
		in.ActualCheckOut = &actual
	}

	res, err := h.service.CheckOut(c.Request.Context(), middleware.Actor(c), id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"booking":       res.Booking,
		"refund_amount": res.RefundAmount.StringFixed(2),
		"refund":        res.Refund,
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	b, err := h.service.Cancel(c.Request.Context(), middleware.Actor(c), id, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.Complete(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	b, err := h.service.UpdateStatus(c.Request.Context(), middleware.Actor(c), id, req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) AvailableRooms(c *gin.Context) {
	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "check_in and check_out are required")
		return
	}
	checkIn, err := parseDate("check_in", q.CheckIn)
	if err != nil {
		response.FromError(c, err)
		return
	}
	checkOut, err := parseDate("check_out", q.CheckOut)
	if err != nil {
		response.FromError(c, err)
		return
	}
	roomType := domain.RoomType(q.Type)
	if q.Type != "" && !roomType.Valid() {
		response.FromError(c, domain.NewValidationError("type", "unknown room type"))
		return
	}

	rooms, err := h.service.AvailableRooms(c.Request.Context(), checkIn, checkOut, q.Guests, roomType)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms})
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking id")
		return 0, false
	}
	return id, true
}
