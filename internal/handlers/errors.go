package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/guard"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

// CodeInvalidOTP marks an OTP rejection so clients can tell it apart from
// other bad requests.
const CodeInvalidOTP = "invalid_otp"

func fieldError(field, msg, typ string) gin.H {
	return gin.H{"detail": []validation.FieldError{{Loc: []string{"body", field}, Msg: msg, Type: typ}}}
}

// writeError maps domain errors onto the HTTP error surface.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Order not found"})
	case errors.Is(err, orders.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not allowed to act on this order"})
	case errors.Is(err, orders.ErrTransitionNotAllowed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, orders.ErrInvalidOTP):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid OTP", "code": CodeInvalidOTP})
	case errors.Is(err, orders.ErrOTPRequired):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, fieldError("delivery_otp", "delivery_otp is required", "required"))
	case errors.Is(err, orders.ErrCODFlagRequired):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, fieldError("cod_collected", "cod_collected is required for cash on delivery orders", "required"))
	case errors.Is(err, orders.ErrReasonRequired):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, fieldError("reason", "reason is required", "required"))
	case errors.Is(err, orders.ErrVersionConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Order was updated by someone else, refresh and try again"})
	case errors.Is(err, guard.ErrInFlight):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Another update to this order is in progress"})
	default:
		log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}
