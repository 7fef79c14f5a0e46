package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/retry"
	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/ticketsig"
)

// fakeLedger is an in-memory stand-in for the Postgres repositories. WithTx
// serialises transactions and restores a snapshot when fn fails.
type fakeLedger struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events       map[string]domain.Event
	ticketTypes  map[string]domain.TicketType
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	tickets      map[string]domain.Ticket
	promos       map[string]domain.PromoCode
	banks        map[string]domain.BankAccount
	payouts      []domain.Payout

	createReservationErr error
	commitSales          int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events:       make(map[string]domain.Event),
		ticketTypes:  make(map[string]domain.TicketType),
		reservations: make(map[string]domain.Reservation),
		orders:       make(map[string]domain.Order),
		tickets:      make(map[string]domain.Ticket),
		promos:       make(map[string]domain.PromoCode),
		banks:        make(map[string]domain.BankAccount),
	}
}

type ledgerSnapshot struct {
	ticketTypes  map[string]domain.TicketType
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	tickets      map[string]domain.Ticket
	promos       map[string]domain.PromoCode
	payouts      []domain.Payout
	commitSales  int
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snap := ledgerSnapshot{
		ticketTypes:  copyMap(f.ticketTypes),
		reservations: copyMap(f.reservations),
		orders:       copyMap(f.orders),
		tickets:      copyMap(f.tickets),
		promos:       copyMap(f.promos),
		payouts:      append([]domain.Payout(nil), f.payouts...),
		commitSales:  f.commitSales,
	}
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.ticketTypes = snap.ticketTypes
		f.reservations = snap.reservations
		f.orders = snap.orders
		f.tickets = snap.tickets
		f.promos = snap.promos
		f.payouts = snap.payouts
		f.commitSales = snap.commitSales
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeLedger) addEvent(e domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
}

func (f *fakeLedger) addTicketType(tt domain.TicketType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketTypes[tt.ID] = tt
}

func (f *fakeLedger) ticketType(id string) domain.TicketType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticketTypes[id]
}

func (f *fakeLedger) reservation(id string) (domain.Reservation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	return r, ok
}

func (f *fakeLedger) order(id string) domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeLedger) ticketCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

// Reservations

func (f *fakeLedger) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[id]
	if !ok {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (f *fakeLedger) GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error) {
	return f.GetTicketType(ctx, id)
}

func (f *fakeLedger) ListTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TicketType, 0, len(f.ticketTypes))
	for _, tt := range f.ticketTypes {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLedger) FindReservationByIdempotencyKey(ctx context.Context, ticketTypeID, key string) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.TicketTypeID == ticketTypeID && r.IdempotencyKey == key {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CreateReservation(ctx context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createReservationErr != nil {
		return f.createReservationErr
	}
	if r.IdempotencyKey != "" {
		for _, existing := range f.reservations {
			if existing.TicketTypeID == r.TicketTypeID && existing.IdempotencyKey == r.IdempotencyKey {
				return domain.ErrIdempotencyConflict
			}
		}
	}
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeLedger) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeLedger) DeleteReservation(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return false, nil
	}
	delete(f.reservations, id)
	return true, nil
}

func (f *fakeLedger) AdjustReserved(ctx context.Context, ticketTypeID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[ticketTypeID]
	if !ok {
		return domain.ErrTicketTypeNotFound
	}
	tt.ReservedQuantity += delta
	if err := checkQuantities(tt); err != nil {
		return err
	}
	f.ticketTypes[ticketTypeID] = tt
	return nil
}

func (f *fakeLedger) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Expired(now) && !r.Claimed() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// checkQuantities mirrors the ticket_types CHECK constraint.
func checkQuantities(tt domain.TicketType) error {
	if tt.ReservedQuantity < 0 || tt.SoldQuantity < 0 || tt.SoldQuantity+tt.ReservedQuantity > tt.TotalQuantity {
		return fmt.Errorf("ticket type %s: %w", tt.ID, domain.ErrInsufficientInventory)
	}
	return nil
}

// Orders

func (f *fakeLedger) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func promoKey(eventID, code string) string { return eventID + "/" + code }

func (f *fakeLedger) GetPromoCodeForUpdate(ctx context.Context, eventID, code string) (domain.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[promoKey(eventID, code)]
	if !ok {
		return domain.PromoCode{}, fmt.Errorf("promo code %s: %w", code, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakeLedger) IncrementPromoUsage(ctx context.Context, eventID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.promos[promoKey(eventID, code)]
	p.UsedCount++
	f.promos[promoKey(eventID, code)] = p
	return nil
}

func (f *fakeLedger) CreateOrder(ctx context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.orders {
		if existing.ReservationID == o.ReservationID {
			return domain.ErrReservationClaimed
		}
	}
	f.orders[o.ID] = o
	return nil
}

func (f *fakeLedger) ClaimReservation(ctx context.Context, reservationID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if r.Claimed() {
		return domain.ErrReservationClaimed
	}
	r.OrderID = orderID
	f.reservations[reservationID] = r
	return nil
}

func (f *fakeLedger) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeLedger) GetOrderByReservationID(ctx context.Context, reservationID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ReservationID == reservationID {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != from || !domain.CanTransition(from, to) {
		return false, nil
	}
	o.Status = to
	if to == domain.OrderStatusPaid {
		o.PaidAt = &at
	}
	f.orders[id] = o
	return true, nil
}

func (f *fakeLedger) GetOrderByPaymentRef(ctx context.Context, ref string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ExternalPaymentRef == ref {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (f *fakeLedger) ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tickets

func (f *fakeLedger) LockOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeLedger) ListTicketsByOrder(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (f *fakeLedger) InsertTicket(ctx context.Context, t domain.Ticket) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tickets {
		if existing.OrderID == t.OrderID && existing.SequenceNumber == t.SequenceNumber {
			return false, nil
		}
	}
	f.tickets[t.ID] = t
	return true, nil
}

func (f *fakeLedger) CommitSale(ctx context.Context, ticketTypeID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt := f.ticketTypes[ticketTypeID]
	tt.SoldQuantity += qty
	tt.ReservedQuantity -= qty
	if err := checkQuantities(tt); err != nil {
		return err
	}
	f.ticketTypes[ticketTypeID] = tt
	f.commitSales++
	return nil
}

func (f *fakeLedger) SetArtifactURL(ctx context.Context, ticketID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[ticketID]
	t.ArtifactURL = url
	f.tickets[ticketID] = t
	return nil
}

func (f *fakeLedger) GetTicketByNumber(ctx context.Context, number string) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.TicketNumber == number {
			return t, nil
		}
	}
	return domain.Ticket{}, domain.ErrTicketNotFound
}

func (f *fakeLedger) MarkTicketUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	if t.Status == domain.TicketStatusUsed {
		return false, nil
	}
	t.Status = domain.TicketStatusUsed
	t.CheckedInAt = &at
	f.tickets[id] = t
	return true, nil
}

func (f *fakeLedger) TransferTicket(ctx context.Context, id, holderName, holderEmail string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	if t.Status != domain.TicketStatusValid {
		return false, nil
	}
	t.Status = domain.TicketStatusTransferred
	t.HolderName = holderName
	t.HolderEmail = holderEmail
	f.tickets[id] = t
	return true, nil
}

// Payouts

func (f *fakeLedger) LockOrganizer(ctx context.Context, organizerID string) error { return nil }

func (f *fakeLedger) ListPaidOrdersByOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.OrganizerID == organizerID && o.Status == domain.OrderStatusPaid {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLedger) ListPayouts(ctx context.Context, organizerID string) ([]domain.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Payout
	for _, p := range f.payouts {
		if p.OrganizerID == organizerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetBankAccount(ctx context.Context, organizerID string) (*domain.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.banks[organizerID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeLedger) UpsertBankAccount(ctx context.Context, acct domain.BankAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banks[acct.OrganizerID] = acct
	return nil
}

func (f *fakeLedger) CreatePayout(ctx context.Context, p domain.Payout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts = append(f.payouts, p)
	return nil
}

// Admin

func (f *fakeLedger) CreateEvent(ctx context.Context, e domain.Event) error {
	f.addEvent(e)
	return nil
}

func (f *fakeLedger) ListEvents(ctx context.Context, organizerID string) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if organizerID == "" || e.OrganizerID == organizerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[tt.EventID]; !ok {
		return domain.ErrEventNotFound
	}
	f.ticketTypes[tt.ID] = tt
	return nil
}

func (f *fakeLedger) ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketType
	for _, tt := range f.ticketTypes {
		if tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (f *fakeLedger) CreatePromoCode(ctx context.Context, p domain.PromoCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promos[promoKey(p.EventID, p.Code)] = p
	return nil
}

// fakeGateway records gateway calls and answers Verify from results.
type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	initialized []domain.PaymentRequest
	results     map[string]domain.PaymentResult
	verifyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: make(map[string]domain.PaymentResult)}
}

func (g *fakeGateway) Initialize(ctx context.Context, req domain.PaymentRequest) (domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return domain.PaymentSession{}, g.initErr
	}
	g.initialized = append(g.initialized, req)
	return domain.PaymentSession{
		Reference:        req.Reference,
		AuthorizationURL: "https://pay.example.com/" + req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	res, ok := g.results[reference]
	if !ok {
		return domain.PaymentResult{}, fmt.Errorf("transaction %s: %w", reference, domain.ErrNotFound)
	}
	return res, nil
}

func (g *fakeGateway) pay(reference string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[reference] = domain.PaymentResult{
		Reference: reference,
		Outcome:   domain.PaymentSucceeded,
		Amount:    amount,
		Currency:  "NGN",
	}
}

func (g *fakeGateway) fail(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[reference] = domain.PaymentResult{
		Reference: reference,
		Outcome:   domain.PaymentFailed,
	}
}

func (g *fakeGateway) ParseWebhook(body []byte, signature string) (domain.WebhookEvent, error) {
	if signature != "ok" {
		return domain.WebhookEvent{}, domain.ErrInvalidSignature
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.results[string(body)]
	if !ok {
		return domain.WebhookEvent{Type: "charge.success", Result: domain.PaymentResult{
			Reference: string(body),
			Outcome:   domain.PaymentSucceeded,
		}}, nil
	}
	return domain.WebhookEvent{Type: "charge.success", Result: res}, nil
}

type fakeArtifacts struct {
	mu    sync.Mutex
	fail  map[int]bool
	calls int
}

func (a *fakeArtifacts) Generate(ctx context.Context, t domain.Ticket) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail[t.SequenceNumber] {
		return "", errors.New("upload failed")
	}
	return "https://cdn.example.com/" + t.TicketNumber + ".png", nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *fakeNotifier) OrderPaid(ctx context.Context, order domain.Order, tickets []domain.Ticket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

// noRetry keeps failing tests fast.
var noRetry = WithRetryPolicy(retry.Policy{MaxAttempts: 1})

func newTestSigner() *ticketsig.Signer {
	s, err := ticketsig.NewSigner("test-secret-0123456789")
	if err != nil {
		panic(err)
	}
	return s
}
