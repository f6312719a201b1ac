package services

import (
	"context"
	"time"

	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/models"
	"example.com/autoparts/backoffice/internal/repositories"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Payment decision actions.
const (
	DecisionConfirm = "confirm"
	DecisionReject  = "reject"
)

// PaymentService handles the manual payment reconciliation workflow
type PaymentService struct {
	store   repositories.Store
	metrics *metrics.Metrics
	tracer  tracing.Tracer
}

// NewPaymentService creates a new payment service
func NewPaymentService(store repositories.Store, collector *metrics.Metrics, tracer tracing.Tracer) *PaymentService {
	return &PaymentService{
		store:   store,
		metrics: collector,
		tracer:  tracer,
	}
}

// RegisterPaymentInput is a proposed payment against a delivery note
type RegisterPaymentInput struct {
	NoteCode    string
	Amount      decimal.Decimal
	Method      string
	PaymentDate time.Time // defaults to submission time when zero
	Reference   *string
	ReceiptURL  *string
	Notes       *string
}

// RegisterPayment validates a proposed payment against the note's outstanding
// balance and inserts it in pending status. An amount equal to the balance is
// accepted; anything above it is rejected before any write.
func (s *PaymentService) RegisterPayment(ctx context.Context, input RegisterPaymentInput) (*models.PendingPayment, error) {
	txn := s.tracer.StartTransaction("register-payment")
	defer s.tracer.EndTransaction(txn)

	fields := make(map[string]string)
	if !input.Amount.IsPositive() {
		fields["amount"] = "amount must be greater than zero"
	}
	if !models.ValidPaymentMethod(input.Method) {
		fields["method"] = "unknown payment method"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	note, err := s.store.GetDeliveryNoteByCode(ctx, input.NoteCode)
	if err != nil {
		return nil, mapStoreError(err, "delivery note", input.NoteCode)
	}

	// The balance is owned by an external aggregation; this workflow only
	// reads it, it never recomputes paid totals itself.
	outstanding, err := s.store.OutstandingBalance(ctx, note.Code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read outstanding balance")
	}

	if input.Amount.GreaterThan(outstanding) {
		s.metrics.IncrementCounter("payments_balance_rejected")
		return nil, &BalanceExceededError{
			NoteCode:    note.Code,
			Amount:      input.Amount,
			Outstanding: outstanding,
		}
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	payment := &models.PendingPayment{
		ID:             uuid.New(),
		DeliveryNoteID: note.ID,
		Amount:         input.Amount,
		PaymentDate:    paymentDate,
		Method:         input.Method,
		Reference:      input.Reference,
		ReceiptURL:     input.ReceiptURL,
		Status:         models.PaymentStatusPending,
		Notes:          input.Notes,
		CreatedAt:      time.Now(),
	}

	if err := s.store.CreatePendingPayment(ctx, payment); err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("register_payment")
		return nil, err
	}

	s.metrics.RecordSuccess("register_payment")
	s.metrics.IncrementCounter("payments_registered")

	log.Info().
		Str("code", note.Code).
		Str("payment_id", payment.ID.String()).
		Str("amount", payment.Amount.StringFixed(2)).
		Msg("Payment registered")

	return payment, nil
}

// DecidePayment confirms or rejects a pending payment exactly once. A
// rejection requires a non-empty observation. Deciding an already-decided
// payment fails with ErrPaymentAlreadyDecided; the confirmed total aggregation
// is left to the database-side read model.
func (s *PaymentService) DecidePayment(ctx context.Context, paymentID uuid.UUID, action string, observation string) error {
	txn := s.tracer.StartTransaction("decide-payment")
	defer s.tracer.EndTransaction(txn)

	fields := make(map[string]string)
	var status string
	switch action {
	case DecisionConfirm:
		status = models.PaymentStatusConfirmed
	case DecisionReject:
		status = models.PaymentStatusRejected
		if observation == "" {
			fields["observation"] = "a reason is required when rejecting a payment"
		}
	default:
		fields["action"] = "action must be confirm or reject"
	}
	if paymentID == uuid.Nil {
		fields["payment_id"] = "payment id is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	err := s.store.DecidePendingPayment(ctx, paymentID, status, observation)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Resource: "payment", Key: paymentID.String()}
		}
		if errors.Is(err, repositories.ErrAlreadyDecided) {
			return ErrPaymentAlreadyDecided
		}
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("decide_payment")
		return err
	}

	s.metrics.RecordSuccess("decide_payment")
	s.metrics.IncrementCounter("payments_" + status)

	log.Info().
		Str("payment_id", paymentID.String()).
		Str("status", status).
		Msg("Payment decided")

	return nil
}

// FlagStalePayments logs payments that have sat in pending status longer than
// maxAge so someone follows up on them. It never mutates payment state.
func (s *PaymentService) FlagStalePayments(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	stale, err := s.store.ListStalePendingPayments(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list stale pending payments")
	}

	for _, payment := range stale {
		log.Warn().
			Str("payment_id", payment.ID.String()).
			Str("amount", payment.Amount.StringFixed(2)).
			Time("registered_at", payment.CreatedAt).
			Msg("Pending payment awaiting decision")
	}

	s.metrics.SetGauge("payments_stale_pending", int64(len(stale)))

	return len(stale), nil
}
