package handlers

import (
	"net/http"

	"example.com/autoparts/backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PartsHandler handles part listing HTTP requests
type PartsHandler struct {
	partService *services.PartService
}

// NewPartsHandler creates a new parts handler
func NewPartsHandler(partService *services.PartService) *PartsHandler {
	return &PartsHandler{partService: partService}
}

// HandleListParts returns the full parts listing
func (h *PartsHandler) HandleListParts(c *gin.Context) {
	parts, err := h.partService.ListParts(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list parts")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"parts": parts})
}

// HandleGetPart returns one part by business code
func (h *PartsHandler) HandleGetPart(c *gin.Context) {
	part, err := h.partService.GetPart(c, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, part)
}

// RegisterRoutes registers the handler's routes
func (h *PartsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/parts", h.HandleListParts)
	router.GET("/parts/:code", h.HandleGetPart)
}
