package response

import (
	"errors"
	"net/http"

	"hotelbooking/internal/domain"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError writes the envelope for a ledger error. Unknown errors become 500 and are
// attached to the gin context for the request logger.
func FromError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		incomplete *domain.PaymentIncompleteError
		exceeds    *domain.RefundExceedsAvailableError
		transition *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validation):
		ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), gin.H{"field": validation.Field})
	case errors.Is(err, domain.ErrValidation):
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.As(err, &incomplete):
		ErrorWithDetails(c, http.StatusPaymentRequired, "PAYMENT_INCOMPLETE", err.Error(), gin.H{
			"required":  incomplete.Required.StringFixed(2),
			"paid":      incomplete.Paid.StringFixed(2),
			"shortfall": incomplete.Shortfall.StringFixed(2),
		})
	case errors.As(err, &exceeds):
		ErrorWithDetails(c, http.StatusUnprocessableEntity, "REFUND_EXCEEDS_AVAILABLE", err.Error(), gin.H{
			"requested": exceeds.Requested.StringFixed(2),
			"available": exceeds.Available.StringFixed(2),
		})
	case errors.As(err, &transition):
		ErrorWithDetails(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), gin.H{
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.Is(err, domain.ErrDuplicatePayment):
		Error(c, http.StatusConflict, "DUPLICATE_PAYMENT", err.Error())
	case errors.Is(err, domain.ErrConflict):
		Error(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrGatewayTimeout):
		Error(c, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment processor did not answer in time, please retry")
	case errors.Is(err, domain.ErrGateway):
		Error(c, http.StatusBadGateway, "GATEWAY_ERROR", err.Error())
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
