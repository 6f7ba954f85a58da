package room

import (
	"net/http"
	"strconv"
	"strings"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/pkg/response"
	"hotelbooking/internal/pkg/validator"
	"hotelbooking/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("", h.GetRooms)
		rooms.GET("/:id", h.GetRoomByID)

		manage := rooms.Group("", middleware.RequirePermission(domain.PermRoomManage))
		manage.POST("", h.CreateRoom)
		manage.PATCH("/:id", h.UpdateRoom)
		manage.DELETE("/:id", h.DeleteRoom)
		manage.POST("/:id/maintenance", h.SetMaintenance)
		manage.POST("/:id/reprice", h.Reprice)
	}
}

func (h *Handler) GetRooms(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	rooms, err := h.service.ListRooms(c.Request.Context(), repository.RoomFilter{
		Status:      domain.RoomStatus(strings.ToUpper(q.Status)),
		Type:        domain.RoomType(strings.ToUpper(q.Type)),
		MinCapacity: q.MinCapacity,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) GetRoomByID(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	room, err := h.service.GetRoom(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room": room})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.Type = strings.ToUpper(req.Type)
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid room", errs)
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), middleware.Actor(c), CreateInput{
		Number:      req.Number,
		Type:        domain.RoomType(req.Type),
		Capacity:    req.Capacity,
		Price:       decimal.RequireFromString(req.Price),
		Description: req.Description,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"room": room})
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	in := UpdateInput{
		Number:      req.Number,
		Capacity:    req.Capacity,
		Description: req.Description,
	}
	if req.Type != nil {
		rt := domain.RoomType(strings.ToUpper(*req.Type))
		in.Type = &rt
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			response.FromError(c, domain.NewValidationError("price", "must be a decimal amount"))
			return
		}
		in.Price = &price
	}

	room, err := h.service.UpdateRoom(c.Request.Context(), middleware.Actor(c), id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room": room})
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteRoom(c.Request.Context(), middleware.Actor(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) SetMaintenance(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	room, err := h.service.SetMaintenance(c.Request.Context(), middleware.Actor(c), id, req.Enabled)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"room": room})
}

func (h *Handler) Reprice(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	res, err := h.service.RepricePendingBookings(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func roomID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid room id")
		return 0, false
	}
	return id, true
}
