package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Audit action kinds. Each kind has exactly one payload shape below.
const (
	ActionHeaderEdit      = "header_edit"
	ActionItemAdded       = "item_added"
	ActionItemRemoved     = "item_removed"
	ActionQuantityChanged = "quantity_changed"
)

// SystemActor is recorded when the acting user is unknown.
const SystemActor = "system"

// AuditPayload is the tagged union of per-action payload shapes. The action
// kind is derived from the payload type, so an event can never carry a
// payload of the wrong shape.
type AuditPayload interface {
	AuditAction() string
}

// HeaderEditPayload captures a client/seller change on the note header.
type HeaderEditPayload struct {
	OldClientID uuid.UUID `json:"old_client_id"`
	NewClientID uuid.UUID `json:"new_client_id"`
	OldSellerID uuid.UUID `json:"old_seller_id"`
	NewSellerID uuid.UUID `json:"new_seller_id"`
}

// ItemAddedPayload captures a line added to the note and the stock it consumed.
type ItemAddedPayload struct {
	PartCode string `json:"part_code"`
	Quantity int    `json:"quantity"`
}

// ItemRemovedPayload captures a line removed from the note and the stock restored.
type ItemRemovedPayload struct {
	PartCode    string `json:"part_code"`
	QtyRestored int    `json:"qty_restored"`
}

// QuantityChangedPayload captures a quantity change on an existing line.
type QuantityChangedPayload struct {
	PartCode    string `json:"part_code"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
}

func (HeaderEditPayload) AuditAction() string      { return ActionHeaderEdit }
func (ItemAddedPayload) AuditAction() string       { return ActionItemAdded }
func (ItemRemovedPayload) AuditAction() string     { return ActionItemRemoved }
func (QuantityChangedPayload) AuditAction() string { return ActionQuantityChanged }

// NewAuditEvent builds an immutable event for a delivery note mutation.
// An empty actor falls back to the system sentinel.
func NewAuditEvent(noteID uuid.UUID, actor string, payload AuditPayload) (*AuditEvent, error) {
	if actor == "" {
		actor = SystemActor
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal audit payload")
	}

	return &AuditEvent{
		ID:             uuid.New(),
		DeliveryNoteID: noteID,
		Actor:          actor,
		Action:         payload.AuditAction(),
		Payload:        raw,
		CreatedAt:      time.Now(),
	}, nil
}
