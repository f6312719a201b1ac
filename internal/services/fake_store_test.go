package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/autoparts/backoffice/internal/models"
	"example.com/autoparts/backoffice/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory repositories.Store for workflow tests. Its
// InTransaction snapshots all state up front and restores it when the callback
// fails, mirroring the rollback behavior of the real database transaction.
type fakeStore struct {
	parts    map[string]*models.Part
	clients  map[uuid.UUID]*models.Client
	sellers  map[uuid.UUID]*models.Seller
	notes    map[string]*models.DeliveryNote
	lines    map[uuid.UUID]*models.OrderLine
	events   []models.AuditEvent
	payments map[uuid.UUID]*models.PendingPayment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		parts:    make(map[string]*models.Part),
		clients:  make(map[uuid.UUID]*models.Client),
		sellers:  make(map[uuid.UUID]*models.Seller),
		notes:    make(map[string]*models.DeliveryNote),
		lines:    make(map[uuid.UUID]*models.OrderLine),
		payments: make(map[uuid.UUID]*models.PendingPayment),
	}
}

func (f *fakeStore) seedPart(code string, stock int, price string) *models.Part {
	part := &models.Part{
		ID:        uuid.New(),
		Code:      code,
		Stock:     stock,
		UnitPrice: decimal.RequireFromString(price),
	}
	f.parts[code] = part
	return part
}

func (f *fakeStore) seedClient(name string) *models.Client {
	client := &models.Client{ID: uuid.New(), Code: "C-" + name, Name: name, Active: true}
	f.clients[client.ID] = client
	return client
}

func (f *fakeStore) seedSeller(name string) *models.Seller {
	seller := &models.Seller{ID: uuid.New(), Code: "S-" + name, Name: name, Active: true}
	f.sellers[seller.ID] = seller
	return seller
}

func (f *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for k, v := range f.parts {
		c := *v
		snap.parts[k] = &c
	}
	for k, v := range f.clients {
		c := *v
		snap.clients[k] = &c
	}
	for k, v := range f.sellers {
		c := *v
		snap.sellers[k] = &c
	}
	for k, v := range f.notes {
		c := *v
		snap.notes[k] = &c
	}
	for k, v := range f.lines {
		c := *v
		snap.lines[k] = &c
	}
	for k, v := range f.payments {
		c := *v
		snap.payments[k] = &c
	}
	snap.events = append([]models.AuditEvent(nil), f.events...)
	return snap
}

func (f *fakeStore) restore(snap *fakeStore) {
	f.parts = snap.parts
	f.clients = snap.clients
	f.sellers = snap.sellers
	f.notes = snap.notes
	f.lines = snap.lines
	f.payments = snap.payments
	f.events = snap.events
}

func (f *fakeStore) InTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetPartByCode(ctx context.Context, code string) (*models.Part, error) {
	part, ok := f.parts[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *part
	return &c, nil
}

func (f *fakeStore) ListParts(ctx context.Context) ([]models.Part, error) {
	parts := make([]models.Part, 0, len(f.parts))
	for _, part := range f.parts {
		parts = append(parts, *part)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Code < parts[j].Code })
	return parts, nil
}

func (f *fakeStore) AdjustStock(ctx context.Context, code string, delta int) error {
	part, ok := f.parts[code]
	if !ok {
		return repositories.ErrNotFound
	}
	if part.Stock+delta < 0 {
		return repositories.ErrInsufficientStock
	}
	part.Stock += delta
	return nil
}

func (f *fakeStore) GetClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, ok := f.clients[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *client
	return &c, nil
}

func (f *fakeStore) GetSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	seller, ok := f.sellers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *seller
	return &c, nil
}

func (f *fakeStore) NextDeliveryNoteCode(ctx context.Context) (string, error) {
	seq := 0
	for code := range f.notes {
		var n int
		if _, err := fmt.Sscanf(code, "NE-%d", &n); err == nil && n > seq {
			seq = n
		}
	}
	return fmt.Sprintf("NE-%04d", seq+1), nil
}

func (f *fakeStore) CreateDeliveryNote(ctx context.Context, note *models.DeliveryNote) error {
	c := *note
	f.notes[note.Code] = &c
	return nil
}

func (f *fakeStore) GetDeliveryNoteByCode(ctx context.Context, code string) (*models.DeliveryNote, error) {
	note, ok := f.notes[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *note
	return &c, nil
}

func (f *fakeStore) UpdateDeliveryNoteHeader(ctx context.Context, id uuid.UUID, clientID, sellerID uuid.UUID, status string) error {
	for _, note := range f.notes {
		if note.ID == id {
			note.ClientID = clientID
			note.SellerID = sellerID
			note.Status = status
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeStore) GetOrderLines(ctx context.Context, noteCode string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	for _, line := range f.lines {
		if line.DeliveryNoteCode == noteCode {
			lines = append(lines, *line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].PartCode < lines[j].PartCode })
	return lines, nil
}

func (f *fakeStore) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	c := *line
	f.lines[line.ID] = &c
	return nil
}

func (f *fakeStore) UpdateOrderLine(ctx context.Context, id uuid.UUID, quantity int, subtotal decimal.Decimal) error {
	line, ok := f.lines[id]
	if !ok {
		return repositories.ErrNotFound
	}
	line.Quantity = quantity
	line.Subtotal = subtotal
	return nil
}

func (f *fakeStore) DeleteOrderLine(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.lines[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.lines, id)
	return nil
}

func (f *fakeStore) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) ListAuditEvents(ctx context.Context, noteID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	for _, ev := range f.events {
		if ev.DeliveryNoteID == noteID {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (f *fakeStore) CreatePendingPayment(ctx context.Context, payment *models.PendingPayment) error {
	c := *payment
	f.payments[payment.ID] = &c
	return nil
}

func (f *fakeStore) GetPendingPaymentByID(ctx context.Context, id uuid.UUID) (*models.PendingPayment, error) {
	payment, ok := f.payments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *payment
	return &c, nil
}

func (f *fakeStore) DecidePendingPayment(ctx context.Context, id uuid.UUID, status string, notes string) error {
	payment, ok := f.payments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if payment.Status != models.PaymentStatusPending {
		return repositories.ErrAlreadyDecided
	}
	payment.Status = status
	if notes != "" {
		payment.Notes = &notes
	}
	return nil
}

func (f *fakeStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.PendingPayment, error) {
	var stale []models.PendingPayment
	for _, payment := range f.payments {
		if payment.Status == models.PaymentStatusPending && payment.CreatedAt.Before(olderThan) {
			stale = append(stale, *payment)
		}
	}
	return stale, nil
}

func (f *fakeStore) OutstandingBalance(ctx context.Context, noteCode string) (decimal.Decimal, error) {
	note, ok := f.notes[noteCode]
	if !ok {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	for _, line := range f.lines {
		if line.DeliveryNoteCode == noteCode {
			total = total.Add(line.Subtotal)
		}
	}
	for _, payment := range f.payments {
		if payment.DeliveryNoteID == note.ID && payment.Status == models.PaymentStatusConfirmed {
			total = total.Sub(payment.Amount)
		}
	}
	return total, nil
}
