package repositories

import (
	"context"
	"time"

	"example.com/autoparts/backoffice/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to the workflow layer.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// matches no row because the part's stock would go negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAlreadyDecided is returned when a pending payment was already
	// confirmed or rejected.
	ErrAlreadyDecided = errors.New("payment already decided")
)

// Store aggregates the persistence operations used by the workflows. The GORM
// implementation rebinds itself to a transaction inside InTransaction, so a
// whole workflow commits or rolls back together.
type Store interface {
	InTransaction(ctx context.Context, fn func(Store) error) error

	GetPartByCode(ctx context.Context, code string) (*models.Part, error)
	ListParts(ctx context.Context) ([]models.Part, error)
	AdjustStock(ctx context.Context, code string, delta int) error

	GetClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)

	NextDeliveryNoteCode(ctx context.Context) (string, error)
	CreateDeliveryNote(ctx context.Context, note *models.DeliveryNote) error
	GetDeliveryNoteByCode(ctx context.Context, code string) (*models.DeliveryNote, error)
	UpdateDeliveryNoteHeader(ctx context.Context, id uuid.UUID, clientID, sellerID uuid.UUID, status string) error
	GetOrderLines(ctx context.Context, noteCode string) ([]models.OrderLine, error)
	CreateOrderLine(ctx context.Context, line *models.OrderLine) error
	UpdateOrderLine(ctx context.Context, id uuid.UUID, quantity int, subtotal decimal.Decimal) error
	DeleteOrderLine(ctx context.Context, id uuid.UUID) error

	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, noteID uuid.UUID) ([]models.AuditEvent, error)

	CreatePendingPayment(ctx context.Context, payment *models.PendingPayment) error
	GetPendingPaymentByID(ctx context.Context, id uuid.UUID) (*models.PendingPayment, error)
	DecidePendingPayment(ctx context.Context, id uuid.UUID, status string, notes string) error
	ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.PendingPayment, error)

	OutstandingBalance(ctx context.Context, noteCode string) (decimal.Decimal, error)
}

// GormStore implements Store on a write / read-only database pair
type GormStore struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewStore creates a new store
func NewStore(db *gorm.DB, readOnlyDB *gorm.DB) *GormStore {
	return &GormStore{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// InTransaction runs fn against a store bound to a single database
// transaction. Reads inside fn go through the transaction as well so they
// observe its own writes.
func (s *GormStore) InTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, readOnlyDB: tx})
	})
}

// GetPartByCode gets a part by its business code
func (s *GormStore) GetPartByCode(ctx context.Context, code string) (*models.Part, error) {
	var part models.Part
	err := s.readOnlyDB.WithContext(ctx).Where("code = ?", code).First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get part by code")
	}
	return &part, nil
}

// ListParts lists all parts ordered by code
func (s *GormStore) ListParts(ctx context.Context) ([]models.Part, error) {
	var parts []models.Part
	err := s.readOnlyDB.WithContext(ctx).Order("code").Find(&parts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list parts")
	}
	return parts, nil
}

// AdjustStock applies delta to a part's stock in a single conditional UPDATE.
// The WHERE clause keeps stock non-negative even under concurrent requests;
// a decrement that would overdraw the part matches no row and returns
// ErrInsufficientStock.
func (s *GormStore) AdjustStock(ctx context.Context, code string, delta int) error {
	result := s.db.WithContext(ctx).
		Model(&models.Part{}).
		Where("code = ? AND stock + ? >= 0", code, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to adjust part stock")
	}

	if result.RowsAffected == 0 {
		// Distinguish a missing part from a shortfall
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Part{}).
			Where("code = ?", code).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check part existence")
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

// GetClientByID gets a client by ID
func (s *GormStore) GetClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := s.readOnlyDB.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get client by ID")
	}
	return &client, nil
}

// GetSellerByID gets a seller by ID
func (s *GormStore) GetSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	err := s.readOnlyDB.WithContext(ctx).First(&seller, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get seller by ID")
	}
	return &seller, nil
}

// CreateDeliveryNote inserts a new delivery note header
func (s *GormStore) CreateDeliveryNote(ctx context.Context, note *models.DeliveryNote) error {
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return errors.Wrap(err, "failed to create delivery note")
	}
	return nil
}

// GetDeliveryNoteByCode gets a delivery note by its business code
func (s *GormStore) GetDeliveryNoteByCode(ctx context.Context, code string) (*models.DeliveryNote, error) {
	var note models.DeliveryNote
	err := s.readOnlyDB.WithContext(ctx).Where("code = ?", code).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get delivery note by code")
	}
	return &note, nil
}

// UpdateDeliveryNoteHeader writes the mutable header fields of a note
func (s *GormStore) UpdateDeliveryNoteHeader(ctx context.Context, id uuid.UUID, clientID, sellerID uuid.UUID, status string) error {
	result := s.db.WithContext(ctx).
		Model(&models.DeliveryNote{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"client_id": clientID,
			"seller_id": sellerID,
			"status":    status,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update delivery note header")
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetOrderLines lists the lines of a delivery note
func (s *GormStore) GetOrderLines(ctx context.Context, noteCode string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.readOnlyDB.WithContext(ctx).
		Where("delivery_note_code = ?", noteCode).
		Order("part_code").
		Find(&lines).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order lines")
	}
	return lines, nil
}

// CreateOrderLine inserts a new order line
func (s *GormStore) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	if err := s.db.WithContext(ctx).Create(line).Error; err != nil {
		return errors.Wrap(err, "failed to create order line")
	}
	return nil
}

// UpdateOrderLine writes a line's quantity and recomputed subtotal
func (s *GormStore) UpdateOrderLine(ctx context.Context, id uuid.UUID, quantity int, subtotal decimal.Decimal) error {
	result := s.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity": quantity,
			"subtotal": subtotal,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update order line")
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteOrderLine removes a line from a delivery note
func (s *GormStore) DeleteOrderLine(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.OrderLine{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete order line")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAuditEvent appends an immutable audit event
func (s *GormStore) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to append audit event")
	}
	return nil
}

// ListAuditEvents lists a note's audit trail, oldest first
func (s *GormStore) ListAuditEvents(ctx context.Context, noteID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.readOnlyDB.WithContext(ctx).
		Where("delivery_note_id = ?", noteID).
		Order("created_at").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit events")
	}
	return events, nil
}

// CreatePendingPayment inserts a new pending payment
func (s *GormStore) CreatePendingPayment(ctx context.Context, payment *models.PendingPayment) error {
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return errors.Wrap(err, "failed to create pending payment")
	}
	return nil
}

// GetPendingPaymentByID gets a pending payment by ID
func (s *GormStore) GetPendingPaymentByID(ctx context.Context, id uuid.UUID) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	err := s.readOnlyDB.WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get pending payment by ID")
	}
	return &payment, nil
}

// DecidePendingPayment moves a payment out of pending status exactly once.
// The status guard in the WHERE clause makes a repeated confirm/reject match
// no row, which is reported as ErrAlreadyDecided.
func (s *GormStore) DecidePendingPayment(ctx context.Context, id uuid.UUID, status string, notes string) error {
	result := s.db.WithContext(ctx).
		Model(&models.PendingPayment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status": status,
			"notes":  notes,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to decide pending payment")
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.PendingPayment{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check payment existence")
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyDecided
	}

	return nil
}

// ListStalePendingPayments lists payments still pending since before olderThan
func (s *GormStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.PendingPayment, error) {
	var payments []models.PendingPayment
	err := s.readOnlyDB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, olderThan).
		Order("created_at").
		Find(&payments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stale pending payments")
	}
	return payments, nil
}

// OutstandingBalance reads the note's order total minus its confirmed
// payments. This is the read model consumed by the payment workflow; the
// workflow never recomputes it from line items in application code.
func (s *GormStore) OutstandingBalance(ctx context.Context, noteCode string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	row := s.readOnlyDB.WithContext(ctx).Raw(
		`SELECT COALESCE((SELECT SUM(l.subtotal) FROM order_lines l WHERE l.delivery_note_code = ?), 0)
		      - COALESCE((SELECT SUM(p.amount) FROM pending_payments p
		                  JOIN delivery_notes n ON n.id = p.delivery_note_id
		                  WHERE n.code = ? AND p.status = ?), 0)`,
		noteCode, noteCode, models.PaymentStatusConfirmed).Row()

	if err := row.Scan(&balance); err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to read outstanding balance")
	}

	return balance, nil
}
