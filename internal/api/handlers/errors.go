package handlers

import (
	"net/http"

	"example.com/autoparts/backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// respondError translates workflow errors into HTTP responses. Anything not
// in the taxonomy is a 500 with a generic message.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  validationErr.Error(),
			"fields": validationErr.Fields,
		})
		return
	}

	if errors.Is(err, services.ErrEmptyOrder) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var notFoundErr *services.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
		return
	}

	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"part_code": stockErr.PartCode,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
		return
	}

	if errors.Is(err, services.ErrPaymentAlreadyDecided) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var balanceErr *services.BalanceExceededError
	if errors.As(err, &balanceErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       balanceErr.Error(),
			"amount":      balanceErr.Amount.StringFixed(2),
			"outstanding": balanceErr.Outstanding.StringFixed(2),
		})
		return
	}

	log.Error().Err(err).Msg("Unhandled service error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
