package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment types accepted on a delivery note.
const (
	PaymentTypeCash     = "cash"
	PaymentTypeCredit   = "credit"
	PaymentTypeTransfer = "transfer"
)

// Delivery note statuses.
const (
	NoteStatusCompleted = "completed"
	NoteStatusCancelled = "cancelled"
)

// Methods accepted on a pending payment.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCard     = "card"
	PaymentMethodCheck    = "check"
	PaymentMethodMobile   = "mobile"
	PaymentMethodOther    = "other"
)

// Pending payment statuses. A payment leaves "pending" exactly once.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusRejected  = "rejected"
)

// Part represents a stocked inventory item.
// Stock is only ever mutated through conditional updates that keep it non-negative.
type Part struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	Code        string          `gorm:"not null;uniqueIndex" json:"code"`
	Description string          `json:"description"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}

// Client represents a customer in the directory
type Client struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Code      string         `gorm:"not null;uniqueIndex" json:"code"`
	Name      string         `gorm:"not null" json:"name"`
	TaxID     *string        `gorm:"column:tax_id" json:"tax_id,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Address   *string        `json:"address,omitempty"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
}

// Seller represents a member of the sales staff
type Seller struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Code      string         `gorm:"not null;uniqueIndex" json:"code"`
	Name      string         `gorm:"not null" json:"name"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
}

// DeliveryNote represents one sales transaction (the order header).
// Notes are never deleted; header fields may change through the edit workflow.
type DeliveryNote struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Code        string         `gorm:"not null;uniqueIndex" json:"code"`
	ClientID    uuid.UUID      `gorm:"type:uuid;not null" json:"client_id"`
	SellerID    uuid.UUID      `gorm:"type:uuid;not null" json:"seller_id"`
	PaymentType string         `gorm:"type:varchar(20);not null" json:"payment_type"`
	Status      string         `gorm:"type:varchar(20);not null" json:"status"`
	Client      Client         `gorm:"foreignKey:ClientID" json:"-"`
	Seller      Seller         `gorm:"foreignKey:SellerID" json:"-"`
	Lines       []OrderLine    `gorm:"foreignKey:DeliveryNoteCode;references:Code" json:"-"`
}

// OrderLine is one part/quantity/price entry within a delivery note.
// UnitPrice is snapshotted at sale time and never follows the part's live price.
// Lines are hard-deleted when removed during an edit.
type OrderLine struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeliveryNoteCode string          `gorm:"not null;uniqueIndex:idx_note_part" json:"delivery_note_code"`
	PartCode         string          `gorm:"not null;uniqueIndex:idx_note_part" json:"part_code"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}

// AuditEvent is an immutable record of a single sub-change applied to a
// delivery note. Events are NEVER updated or deleted.
type AuditEvent struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	DeliveryNoteID uuid.UUID `gorm:"type:uuid;not null;index" json:"delivery_note_id"`
	Actor          string    `gorm:"not null;default:'system'" json:"actor"`
	Action         string    `gorm:"type:varchar(30);not null" json:"action"`
	Payload        []byte    `gorm:"type:jsonb;not null" json:"payload"`
}

// PendingPayment is a claimed payment against a delivery note, awaiting approval.
type PendingPayment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeliveryNoteID uuid.UUID       `gorm:"type:uuid;not null;index" json:"delivery_note_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate    time.Time       `gorm:"not null" json:"payment_date"`
	Method         string          `gorm:"type:varchar(20);not null" json:"method"`
	Reference      *string         `json:"reference,omitempty"`
	ReceiptURL     *string         `gorm:"column:receipt_url" json:"receipt_url,omitempty"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes          *string         `json:"notes,omitempty"`
}

// ValidPaymentType reports whether t is an accepted delivery note payment type.
func ValidPaymentType(t string) bool {
	switch t {
	case PaymentTypeCash, PaymentTypeCredit, PaymentTypeTransfer:
		return true
	}
	return false
}

// ValidNoteStatus reports whether s is a known delivery note status.
func ValidNoteStatus(s string) bool {
	switch s {
	case NoteStatusCompleted, NoteStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is an accepted pending payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard,
		PaymentMethodCheck, PaymentMethodMobile, PaymentMethodOther:
		return true
	}
	return false
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Part{},
		&Client{},
		&Seller{},
		&DeliveryNote{},
		&OrderLine{},
		&AuditEvent{},
		&PendingPayment{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
