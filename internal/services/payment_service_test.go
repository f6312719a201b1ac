package services

import (
	"context"
	"testing"
	"time"

	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/models"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newPaymentEnv(t *testing.T) (*fakeStore, *PaymentService) {
	t.Helper()

	store := newFakeStore()
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	return store, NewPaymentService(store, metrics.NewMetrics(), tracer)
}

// seedNoteWithTotal persists a delivery note whose lines sum to total.
func seedNoteWithTotal(t *testing.T, store *fakeStore, code, total string) *models.DeliveryNote {
	t.Helper()

	client := store.seedClient("Garage Norte")
	seller := store.seedSeller("Ana")

	note := &models.DeliveryNote{
		ID:          uuid.New(),
		Code:        code,
		ClientID:    client.ID,
		SellerID:    seller.ID,
		PaymentType: models.PaymentTypeCredit,
		Status:      models.NoteStatusCompleted,
	}
	require.NoError(t, store.CreateDeliveryNote(context.Background(), note))

	line := &models.OrderLine{
		ID:               uuid.New(),
		DeliveryNoteCode: code,
		PartCode:         "P-1",
		Quantity:         1,
		UnitPrice:        decimal.RequireFromString(total),
		Subtotal:         decimal.RequireFromString(total),
	}
	require.NoError(t, store.CreateOrderLine(context.Background(), line))

	return note
}

func TestRegisterPayment(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	payment, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("40.00"),
		Method:   models.PaymentMethodTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, payment.Status)
	require.Equal(t, note.ID, payment.DeliveryNoteID)
	require.False(t, payment.PaymentDate.IsZero())
}

func TestRegisterPaymentExceedsBalance(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("100.01"),
		Method:   models.PaymentMethodCash,
	})

	var balanceErr *BalanceExceededError
	require.ErrorAs(t, err, &balanceErr)
	require.Equal(t, "100.00", balanceErr.Outstanding.StringFixed(2))
	require.Empty(t, store.payments)
}

func TestRegisterPaymentEqualToBalance(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("100.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)
}

func TestRegisterPaymentAgainstConfirmedTotal(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	first, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("40.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DecidePayment(context.Background(), first.ID, DecisionConfirm, ""))

	// Only confirmed payments reduce the outstanding balance
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("70.00"),
		Method:   models.PaymentMethodCash,
	})
	var balanceErr *BalanceExceededError
	require.ErrorAs(t, err, &balanceErr)
	require.Equal(t, "60.00", balanceErr.Outstanding.StringFixed(2))

	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("60.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)
}

func TestRegisterPaymentValidation(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
			NoteCode: note.Code,
			Amount:   decimal.Zero,
			Method:   models.PaymentMethodCash,
		})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Contains(t, validationErr.Fields, "amount")
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
			NoteCode: note.Code,
			Amount:   decimal.RequireFromString("10.00"),
			Method:   "gold",
		})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Contains(t, validationErr.Fields, "method")
	})

	t.Run("unknown note", func(t *testing.T) {
		_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
			NoteCode: "NE-9999",
			Amount:   decimal.RequireFromString("10.00"),
			Method:   models.PaymentMethodCash,
		})
		var notFoundErr *NotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})
}

func TestDecidePayment(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	payment, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("40.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DecidePayment(context.Background(), payment.ID, DecisionConfirm, ""))

	decided, err := store.GetPendingPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusConfirmed, decided.Status)

	// A payment leaves pending exactly once
	err = svc.DecidePayment(context.Background(), payment.ID, DecisionReject, "late")
	require.ErrorIs(t, err, ErrPaymentAlreadyDecided)
}

func TestDecidePaymentReject(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	payment, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("40.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)

	t.Run("observation required", func(t *testing.T) {
		err := svc.DecidePayment(context.Background(), payment.ID, DecisionReject, "")
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Contains(t, validationErr.Fields, "observation")
	})

	require.NoError(t, svc.DecidePayment(context.Background(), payment.ID, DecisionReject, "receipt does not match"))

	rejected, err := store.GetPendingPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.Notes)
	require.Equal(t, "receipt does not match", *rejected.Notes)
}

func TestDecidePaymentUnknown(t *testing.T) {
	_, svc := newPaymentEnv(t)

	err := svc.DecidePayment(context.Background(), uuid.New(), DecisionConfirm, "")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)

	t.Run("invalid action", func(t *testing.T) {
		err := svc.DecidePayment(context.Background(), uuid.New(), "maybe", "")
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Contains(t, validationErr.Fields, "action")
	})
}

func TestFlagStalePayments(t *testing.T) {
	store, svc := newPaymentEnv(t)
	note := seedNoteWithTotal(t, store, "NE-0001", "100.00")

	stale := &models.PendingPayment{
		ID:             uuid.New(),
		DeliveryNoteID: note.ID,
		Amount:         decimal.RequireFromString("40.00"),
		PaymentDate:    time.Now().Add(-72 * time.Hour),
		Method:         models.PaymentMethodCash,
		Status:         models.PaymentStatusPending,
		CreatedAt:      time.Now().Add(-72 * time.Hour),
	}
	require.NoError(t, store.CreatePendingPayment(context.Background(), stale))

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		NoteCode: note.Code,
		Amount:   decimal.RequireFromString("10.00"),
		Method:   models.PaymentMethodCash,
	})
	require.NoError(t, err)

	count, err := svc.FlagStalePayments(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
