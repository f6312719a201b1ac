package handlers

import (
	"net/http"
	"time"

	"example.com/autoparts/backoffice/internal/services"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaymentsHandler handles payment reconciliation HTTP requests
type PaymentsHandler struct {
	paymentService *services.PaymentService
	tracer         tracing.Tracer
}

// NewPaymentsHandler creates a new payments handler
func NewPaymentsHandler(paymentService *services.PaymentService, tracer tracing.Tracer) *PaymentsHandler {
	return &PaymentsHandler{
		paymentService: paymentService,
		tracer:         tracer,
	}
}

// RegisterPaymentRequest represents a proposed payment against a note
type RegisterPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"method" binding:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   *string         `json:"reference"`
	ReceiptURL  *string         `json:"receipt_url"`
	Notes       *string         `json:"notes"`
}

// DecidePaymentRequest confirms or rejects a pending payment
type DecidePaymentRequest struct {
	Action      string `json:"action" binding:"required"`
	Observation string `json:"observation"`
}

// HandleRegisterPayment registers a pending payment against a delivery note
func (h *PaymentsHandler) HandleRegisterPayment(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-register-payment")
	defer h.tracer.EndTransaction(txn)

	code := c.Param("code")

	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "code", code)
	h.tracer.AddAttribute(txn, "amount", req.Amount.StringFixed(2))

	input := services.RegisterPaymentInput{
		NoteCode:   code,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		ReceiptURL: req.ReceiptURL,
		Notes:      req.Notes,
	}
	if req.PaymentDate != nil {
		input.PaymentDate = *req.PaymentDate
	}

	payment, err := h.paymentService.RegisterPayment(c, input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// HandleDecidePayment confirms or rejects a pending payment exactly once
func (h *PaymentsHandler) HandleDecidePayment(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-decide-payment")
	defer h.tracer.EndTransaction(txn)

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var req DecidePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "payment_id", paymentID.String())
	h.tracer.AddAttribute(txn, "action", req.Action)

	if err := h.paymentService.DecidePayment(c, paymentID, req.Action, req.Observation); err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_id": paymentID, "action": req.Action})
}

// RegisterRoutes registers the handler's routes
func (h *PaymentsHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/delivery-notes/:code/payments", h.HandleRegisterPayment)
	router.POST("/payments/:id/decision", h.HandleDecidePayment)
}
