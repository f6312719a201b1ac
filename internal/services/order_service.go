package services

import (
	"context"
	"fmt"
	"time"

	"example.com/autoparts/backoffice/internal/cache"
	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/models"
	"example.com/autoparts/backoffice/internal/repositories"
	"example.com/autoparts/backoffice/internal/search"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderService handles the delivery note workflows
type OrderService struct {
	store         repositories.Store
	cache         *cache.RedisCache
	elasticClient *search.ElasticClient
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewOrderService creates a new order service
func NewOrderService(
	store repositories.Store,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *OrderService {
	return &OrderService{
		store:         store,
		cache:         redisCache,
		elasticClient: elasticClient,
		metrics:       collector,
		tracer:        tracer,
	}
}

// LineInput is one proposed part/quantity entry. The unit price is always
// snapshotted from the part record, never taken from the caller.
type LineInput struct {
	PartCode string
	Quantity int
}

// CreateDeliveryNoteInput is the proposal for a brand-new delivery note
type CreateDeliveryNoteInput struct {
	Code        string // generated when empty
	ClientID    uuid.UUID
	SellerID    uuid.UUID
	PaymentType string
	Actor       string
	Lines       []LineInput
}

// EditDeliveryNoteInput is a full replacement proposal for an existing note:
// header fields plus the complete new line set.
type EditDeliveryNoteInput struct {
	ClientID uuid.UUID
	SellerID uuid.UUID
	Status   string // keeps the current status when empty
	Actor    string
	Lines    []LineInput
}

// DeliveryNoteDetails bundles a note with its lines and audit trail
type DeliveryNoteDetails struct {
	Note   *models.DeliveryNote  `json:"note"`
	Lines  []models.OrderLine    `json:"lines"`
	Events []models.AuditEvent   `json:"events"`
}

// CreateDeliveryNote validates and commits a new delivery note with its
// lines, decrementing part stock. Validation runs for every line before any
// write; the commit itself is a single database transaction, so a failure on
// any line rolls back the header, all lines and all stock decrements.
func (s *OrderService) CreateDeliveryNote(ctx context.Context, input CreateDeliveryNoteInput) (*models.DeliveryNote, error) {
	txn := s.tracer.StartTransaction("create-delivery-note")
	defer s.tracer.EndTransaction(txn)

	fields := make(map[string]string)
	if input.ClientID == uuid.Nil {
		fields["client_id"] = "client reference is required"
	}
	if input.SellerID == uuid.Nil {
		fields["seller_id"] = "seller reference is required"
	}
	if !models.ValidPaymentType(input.PaymentType) {
		fields["payment_type"] = "payment type must be cash, credit or transfer"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if len(input.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	if _, err := s.store.GetClientByID(ctx, input.ClientID); err != nil {
		return nil, mapStoreError(err, "client", input.ClientID.String())
	}
	if _, err := s.store.GetSellerByID(ctx, input.SellerID); err != nil {
		return nil, mapStoreError(err, "seller", input.SellerID.String())
	}

	// Pre-check stock for ALL lines before the first write, so a shortfall on
	// any line rejects the whole submission without side effects.
	type pricedLine struct {
		part *models.Part
		qty  int
	}
	priced := make([]pricedLine, 0, len(input.Lines))
	for i, line := range input.Lines {
		part, err := s.store.GetPartByCode(ctx, line.PartCode)
		if err != nil {
			return nil, mapStoreError(err, "part", line.PartCode)
		}
		if part.UnitPrice.IsNegative() {
			return nil, &ValidationError{Fields: map[string]string{
				fmt.Sprintf("lines[%d].unit_price", i): "unit price must not be negative",
			}}
		}
		if part.Stock < line.Quantity {
			s.tracer.RecordError(txn, repositories.ErrInsufficientStock)
			return nil, &InsufficientStockError{
				PartCode:  part.Code,
				Requested: line.Quantity,
				Available: part.Stock,
			}
		}
		priced = append(priced, pricedLine{part: part, qty: line.Quantity})
	}

	code := input.Code
	if code == "" {
		var err error
		code, err = s.store.NextDeliveryNoteCode(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate delivery note code")
		}
	}

	note := &models.DeliveryNote{
		ID:          uuid.New(),
		Code:        code,
		ClientID:    input.ClientID,
		SellerID:    input.SellerID,
		PaymentType: input.PaymentType,
		Status:      models.NoteStatusCompleted,
		CreatedAt:   time.Now(),
	}

	lines := make([]models.OrderLine, 0, len(priced))
	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreateDeliveryNote(ctx, note); err != nil {
			return err
		}

		for _, pl := range priced {
			line := models.OrderLine{
				ID:               uuid.New(),
				DeliveryNoteCode: code,
				PartCode:         pl.part.Code,
				Quantity:         pl.qty,
				UnitPrice:        pl.part.UnitPrice,
				Subtotal:         pl.part.UnitPrice.Mul(decimal.NewFromInt(int64(pl.qty))),
			}
			if err := tx.CreateOrderLine(ctx, &line); err != nil {
				return err
			}

			// The conditional decrement re-validates against live stock, so a
			// concurrent sale of the same part cannot oversell it.
			if err := tx.AdjustStock(ctx, pl.part.Code, -pl.qty); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return s.stockShortfall(ctx, tx, pl.part.Code, pl.qty)
				}
				return err
			}

			lines = append(lines, line)
		}

		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("create_delivery_note")
		return nil, err
	}

	s.metrics.RecordSuccess("create_delivery_note")
	s.metrics.IncrementCounter("delivery_notes_created")

	log.Info().
		Str("code", note.Code).
		Int("lines", len(lines)).
		Msg("Delivery note created")

	s.invalidateStockListing(ctx)
	s.indexDeliveryNote(ctx, note, lines)

	return note, nil
}

// EditDeliveryNote reconciles a persisted note to match the proposal,
// adjusting part stock by the difference each line implies and collecting one
// audit event per sub-change. The whole edit runs in one transaction: a stock
// shortfall on an added or grown line rolls back the header update and any
// stock restorations already applied in the same call. Re-submitting a
// proposal identical to the persisted state writes nothing and emits nothing.
func (s *OrderService) EditDeliveryNote(ctx context.Context, noteCode string, input EditDeliveryNoteInput) error {
	txn := s.tracer.StartTransaction("edit-delivery-note")
	defer s.tracer.EndTransaction(txn)

	fields := make(map[string]string)
	if input.ClientID == uuid.Nil {
		fields["client_id"] = "client reference is required"
	}
	if input.SellerID == uuid.Nil {
		fields["seller_id"] = "seller reference is required"
	}
	if input.Status != "" && !models.ValidNoteStatus(input.Status) {
		fields["status"] = "unknown delivery note status"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	if err := validateLines(input.Lines); err != nil {
		return err
	}

	var events []*models.AuditEvent
	stockTouched := false

	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		note, err := tx.GetDeliveryNoteByCode(ctx, noteCode)
		if err != nil {
			return mapStoreError(err, "delivery note", noteCode)
		}

		current, err := tx.GetOrderLines(ctx, noteCode)
		if err != nil {
			return err
		}

		curByPart := make(map[string]models.OrderLine, len(current))
		for _, line := range current {
			curByPart[line.PartCode] = line
		}
		propByPart := make(map[string]LineInput, len(input.Lines))
		for _, line := range input.Lines {
			propByPart[line.PartCode] = line
		}

		status := input.Status
		if status == "" {
			status = note.Status
		}

		// Header diff
		if note.ClientID != input.ClientID || note.SellerID != input.SellerID {
			if note.ClientID != input.ClientID {
				if _, err := tx.GetClientByID(ctx, input.ClientID); err != nil {
					return mapStoreError(err, "client", input.ClientID.String())
				}
			}
			if note.SellerID != input.SellerID {
				if _, err := tx.GetSellerByID(ctx, input.SellerID); err != nil {
					return mapStoreError(err, "seller", input.SellerID.String())
				}
			}

			if err := tx.UpdateDeliveryNoteHeader(ctx, note.ID, input.ClientID, input.SellerID, status); err != nil {
				return err
			}

			ev, err := models.NewAuditEvent(note.ID, input.Actor, models.HeaderEditPayload{
				OldClientID: note.ClientID,
				NewClientID: input.ClientID,
				OldSellerID: note.SellerID,
				NewSellerID: input.SellerID,
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}

		// Removed lines: restore the consumed stock, then drop the line
		for _, line := range current {
			if _, kept := propByPart[line.PartCode]; kept {
				continue
			}

			if err := tx.AdjustStock(ctx, line.PartCode, line.Quantity); err != nil {
				return err
			}
			if err := tx.DeleteOrderLine(ctx, line.ID); err != nil {
				return err
			}
			stockTouched = true

			ev, err := models.NewAuditEvent(note.ID, input.Actor, models.ItemRemovedPayload{
				PartCode:    line.PartCode,
				QtyRestored: line.Quantity,
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}

		// Added lines: consume stock and snapshot the part's current price
		for _, proposed := range input.Lines {
			if _, exists := curByPart[proposed.PartCode]; exists {
				continue
			}

			part, err := tx.GetPartByCode(ctx, proposed.PartCode)
			if err != nil {
				return mapStoreError(err, "part", proposed.PartCode)
			}

			if err := tx.AdjustStock(ctx, part.Code, -proposed.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return s.stockShortfall(ctx, tx, part.Code, proposed.Quantity)
				}
				return err
			}

			line := models.OrderLine{
				ID:               uuid.New(),
				DeliveryNoteCode: noteCode,
				PartCode:         part.Code,
				Quantity:         proposed.Quantity,
				UnitPrice:        part.UnitPrice,
				Subtotal:         part.UnitPrice.Mul(decimal.NewFromInt(int64(proposed.Quantity))),
			}
			if err := tx.CreateOrderLine(ctx, &line); err != nil {
				return err
			}
			stockTouched = true

			ev, err := models.NewAuditEvent(note.ID, input.Actor, models.ItemAddedPayload{
				PartCode: part.Code,
				Quantity: proposed.Quantity,
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}

		// Quantity changes: adjust stock by the delta, keep the snapshotted price
		for _, proposed := range input.Lines {
			line, exists := curByPart[proposed.PartCode]
			if !exists || line.Quantity == proposed.Quantity {
				continue
			}

			delta := proposed.Quantity - line.Quantity
			if err := tx.AdjustStock(ctx, line.PartCode, -delta); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return s.stockShortfall(ctx, tx, line.PartCode, delta)
				}
				return err
			}

			subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(proposed.Quantity)))
			if err := tx.UpdateOrderLine(ctx, line.ID, proposed.Quantity, subtotal); err != nil {
				return err
			}
			stockTouched = true

			ev, err := models.NewAuditEvent(note.ID, input.Actor, models.QuantityChangedPayload{
				PartCode:    line.PartCode,
				OldQuantity: line.Quantity,
				NewQuantity: proposed.Quantity,
			})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}

		return nil
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("edit_delivery_note")
		return err
	}

	// Audit appends are fire-and-forget: failures are logged, never
	// propagated. Events are appended only after the transaction commits, so
	// a rolled-back edit leaves no trail.
	for _, ev := range events {
		if err := s.store.AppendAuditEvent(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("code", noteCode).
				Str("action", ev.Action).
				Msg("Failed to append audit event")
		}
	}

	s.metrics.RecordSuccess("edit_delivery_note")
	if len(events) > 0 {
		s.metrics.IncrementCounter("delivery_notes_edited")
		log.Info().
			Str("code", noteCode).
			Int("changes", len(events)).
			Msg("Delivery note edited")
	}

	if stockTouched {
		s.invalidateStockListing(ctx)
	}

	return nil
}

// GetDeliveryNote returns a note with its lines and audit trail
func (s *OrderService) GetDeliveryNote(ctx context.Context, code string) (*DeliveryNoteDetails, error) {
	note, err := s.store.GetDeliveryNoteByCode(ctx, code)
	if err != nil {
		return nil, mapStoreError(err, "delivery note", code)
	}

	lines, err := s.store.GetOrderLines(ctx, code)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListAuditEvents(ctx, note.ID)
	if err != nil {
		return nil, err
	}

	return &DeliveryNoteDetails{Note: note, Lines: lines, Events: events}, nil
}

// SearchDeliveryNotes queries the search index for committed notes
func (s *OrderService) SearchDeliveryNotes(ctx context.Context, partCode, clientID string) ([]map[string]interface{}, error) {
	if s.elasticClient == nil {
		return nil, errors.New("search is not available")
	}
	return s.elasticClient.SearchDeliveryNotes(ctx, partCode, clientID)
}

// validateLines checks the per-line constraints shared by create and edit
func validateLines(lines []LineInput) error {
	fields := make(map[string]string)
	seen := make(map[string]bool, len(lines))

	for i, line := range lines {
		if line.PartCode == "" {
			fields[fmt.Sprintf("lines[%d].part_code", i)] = "part code is required"
			continue
		}
		if line.Quantity < 1 {
			fields[fmt.Sprintf("lines[%d].quantity", i)] = "quantity must be at least 1"
		}
		if seen[line.PartCode] {
			fields[fmt.Sprintf("lines[%d].part_code", i)] = "duplicate part in delivery note"
		}
		seen[line.PartCode] = true
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// stockShortfall re-reads the part inside the transaction so the error names
// the quantity actually available at decision time.
func (s *OrderService) stockShortfall(ctx context.Context, tx repositories.Store, code string, requested int) error {
	available := 0
	if part, err := tx.GetPartByCode(ctx, code); err == nil {
		available = part.Stock
	}
	return &InsufficientStockError{
		PartCode:  code,
		Requested: requested,
		Available: available,
	}
}

// mapStoreError converts repository sentinels into workflow errors
func mapStoreError(err error, resource, key string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return err
}

func (s *OrderService) invalidateStockListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.PartListingKey()); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate part listing cache")
	}
}

func (s *OrderService) indexDeliveryNote(ctx context.Context, note *models.DeliveryNote, lines []models.OrderLine) {
	if s.elasticClient == nil {
		return
	}
	if err := s.elasticClient.IndexDeliveryNote(ctx, note, lines); err != nil {
		log.Warn().
			Err(err).
			Str("code", note.Code).
			Msg("Failed to index delivery note")
	}
}
