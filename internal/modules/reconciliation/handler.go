package reconciliation

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/middleware"
	"hotelbooking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports", middleware.RequirePermission(domain.PermReportView))
	{
		reports.GET("/reconciliation", h.GetReport)
		reports.GET("/discrepancies", h.GetDiscrepancies)
	}
	r.GET("/bookings/:id/balance", h.GetBalance)
}

type ReportQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Format string `form:"format"`
}

// GetReport godoc
// @Summary Reconciliation report for a period
// @Tags reports
// @Produce json
// @Param from query string false "start (YYYY-MM-DD or RFC3339), defaults to 30 days before to"
// @Param to query string false "end, exclusive; defaults to now"
// @Param format query string false "json or xlsx"
// @Router /reports/reconciliation [get]
func (h *Handler) GetReport(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return
	}
	from, to, err := q.period(time.Now().UTC())
	if err != nil {
		response.FromError(c, err)
		return
	}

	report, err := h.service.Report(c.Request.Context(), middleware.Actor(c), from, to)
	if err != nil {
		response.FromError(c, err)
		return
	}

	if q.Format == "xlsx" {
		data, err := ExportXLSX(report)
		if err != nil {
			response.FromError(c, err)
			return
		}
		name := fmt.Sprintf("reconciliation_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
		c.Header("Content-Disposition", "attachment; filename="+name)
		c.Data(http.StatusOK, xlsxContentType, data)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"report": report})
}

func (h *Handler) GetDiscrepancies(c *gin.Context) {
	items, err := h.service.Discrepancies(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"discrepancies": items})
}

func (h *Handler) GetBalance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking id")
		return
	}
	bal, err := h.service.BookingBalance(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"balance": bal})
}

func (q ReportQuery) period(now time.Time) (time.Time, time.Time, error) {
	to := now
	if q.To != "" {
		t, err := parseInstant(q.To)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("to", "must be YYYY-MM-DD or RFC3339")
		}
		to = t
	}
	from := to.AddDate(0, 0, -30)
	if q.From != "" {
		t, err := parseInstant(q.From)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("from", "must be YYYY-MM-DD or RFC3339")
		}
		from = t
	}
	return from, to, nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
