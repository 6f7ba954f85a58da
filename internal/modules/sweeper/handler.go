package sweeper

import (
	"net/http"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin/sweeper", middleware.RequirePermission(domain.PermSweepRun))
	{
		admin.GET("/expiring", h.ListExpiring)
		admin.POST("/run", h.Run)
	}
}

func (h *Handler) ListExpiring(c *gin.Context) {
	bookings, err := h.service.ListExpiring(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// Run godoc
// @Summary Check out every stay past its checkout date
// @Tags admin
// @Produce json
// @Router /admin/sweeper/run [post]
func (h *Handler) Run(c *gin.Context) {
	res, err := h.service.Process(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
