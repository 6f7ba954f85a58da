package webhook

import (
	"errors"
	"io"
	"net/http"

	"hotelbooking/internal/pkg/logger"
	"hotelbooking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	parser     Parser
	reconciler *Reconciler
	log        logger.ILogger
}

func NewHandler(parser Parser, reconciler *Reconciler, log logger.ILogger) *Handler {
	return &Handler{parser: parser, reconciler: reconciler, log: log}
}

// RegisterRoutes mounts the public callback. It must stay outside the JWT group.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhooks/payments", h.Receive)
}

// Receive godoc
// @Summary Payment gateway notification
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} Result
// @Router /webhooks/payments [post]
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable body")
		return
	}

	event, err := h.parser.Parse(c.Request.Header, body)
	switch {
	case errors.Is(err, ErrInvalidSignature):
		h.log.Warn(module, "Rejected webhook with bad signature", map[string]interface{}{
			"remote_addr": c.ClientIP(),
		})
		response.Error(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "Signature mismatch")
		return
	case errors.Is(err, ErrIgnored):
		response.Success(c, http.StatusOK, gin.H{"outcome": "ignored"})
		return
	case err != nil:
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.reconciler.Handle(c.Request.Context(), event)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
