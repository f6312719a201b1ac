package handlers

import (
	"net/http"

	"example.com/autoparts/backoffice/internal/services"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrdersHandler handles delivery note HTTP requests
type OrdersHandler struct {
	orderService *services.OrderService
	tracer       tracing.Tracer
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(orderService *services.OrderService, tracer tracing.Tracer) *OrdersHandler {
	return &OrdersHandler{
		orderService: orderService,
		tracer:       tracer,
	}
}

// LineRequest is one part/quantity entry in a note submission
type LineRequest struct {
	PartCode string `json:"part_code" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// CreateNoteRequest represents an incoming delivery note submission
type CreateNoteRequest struct {
	Code        string        `json:"code"`
	ClientID    uuid.UUID     `json:"client_id" binding:"required"`
	SellerID    uuid.UUID     `json:"seller_id" binding:"required"`
	PaymentType string        `json:"payment_type" binding:"required"`
	Actor       string        `json:"actor"`
	Lines       []LineRequest `json:"lines"`
}

// EditNoteRequest is a full replacement proposal for an existing note
type EditNoteRequest struct {
	ClientID uuid.UUID     `json:"client_id" binding:"required"`
	SellerID uuid.UUID     `json:"seller_id" binding:"required"`
	Status   string        `json:"status"`
	Actor    string        `json:"actor"`
	Lines    []LineRequest `json:"lines"`
}

// HandleCreateNote handles a new delivery note submission
func (h *OrdersHandler) HandleCreateNote(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-delivery-note")
	defer h.tracer.EndTransaction(txn)

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "client_id", req.ClientID.String())
	h.tracer.AddAttribute(txn, "lines", len(req.Lines))

	input := services.CreateDeliveryNoteInput{
		Code:        req.Code,
		ClientID:    req.ClientID,
		SellerID:    req.SellerID,
		PaymentType: req.PaymentType,
		Actor:       req.Actor,
		Lines:       toLineInputs(req.Lines),
	}

	note, err := h.orderService.CreateDeliveryNote(c, input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// HandleEditNote reconciles an existing note to a full replacement proposal
func (h *OrdersHandler) HandleEditNote(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-edit-delivery-note")
	defer h.tracer.EndTransaction(txn)

	code := c.Param("code")

	var req EditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "code", code)

	input := services.EditDeliveryNoteInput{
		ClientID: req.ClientID,
		SellerID: req.SellerID,
		Status:   req.Status,
		Actor:    req.Actor,
		Lines:    toLineInputs(req.Lines),
	}

	if err := h.orderService.EditDeliveryNote(c, code, input); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	details, err := h.orderService.GetDeliveryNote(c, code)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// HandleGetNote returns a note with its lines and audit trail
func (h *OrdersHandler) HandleGetNote(c *gin.Context) {
	details, err := h.orderService.GetDeliveryNote(c, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// HandleSearchNotes queries the search index by part code and/or client
func (h *OrdersHandler) HandleSearchNotes(c *gin.Context) {
	partCode := c.Query("part_code")
	clientID := c.Query("client_id")

	docs, err := h.orderService.SearchDeliveryNotes(c, partCode, clientID)
	if err != nil {
		log.Error().Err(err).Msg("Search failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "search is not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs})
}

func toLineInputs(lines []LineRequest) []services.LineInput {
	inputs := make([]services.LineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, services.LineInput{
			PartCode: line.PartCode,
			Quantity: line.Quantity,
		})
	}
	return inputs
}

// RegisterRoutes registers the handler's routes
func (h *OrdersHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/delivery-notes", h.HandleCreateNote)
	router.PUT("/delivery-notes/:code", h.HandleEditNote)
	router.GET("/delivery-notes/search", h.HandleSearchNotes)
	router.GET("/delivery-notes/:code", h.HandleGetNote)
}
