package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stub transaction: writes register undo steps, applied in reverse on error.
// ---------------------------------------------------------------------------

type undoKey struct{}

type undoLog struct {
	mu    sync.Mutex
	steps []func()
}

func onRollback(ctx context.Context, step func()) {
	if l, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		l.mu.Lock()
		l.steps = append(l.steps, step)
		l.mu.Unlock()
	}
}

type stubTransactor struct{}

func (stubTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	l := &undoLog{}
	err := fn(context.WithValue(ctx, undoKey{}, l))
	if err != nil {
		for i := len(l.steps) - 1; i >= 0; i-- {
			l.steps[i]()
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	seq       int
	createErr error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Lines = append([]domain.OrderLine(nil), o.Lines...)
	clone.StatusHistory = append([]domain.StatusHistoryEntry(nil), o.StatusHistory...)
	return &clone
}

func (r *stubOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	o.ID = "order_" + strconv.Itoa(r.seq)
	r.orders[o.ID] = cloneOrder(o)
	id := o.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.orders, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *stubOrderRepo) list(match func(*domain.Order) bool) []*domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (r *stubOrderRepo) ListByBuyer(_ context.Context, buyerID string) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *stubOrderRepo) ListBySeller(_ context.Context, sellerID string) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (r *stubOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	prev := cloneOrder(o)
	o.Status = to
	o.UpdatedAt = entry.Timestamp
	o.StatusHistory = append(o.StatusHistory, entry)
	onRollback(ctx, func() {
		r.mu.Lock()
		r.orders[id] = prev
		r.mu.Unlock()
	})
	return true, nil
}

type stubIdempotency struct {
	mu           sync.Mutex
	keys         map[string]string // key -> order ID ("" while in flight)
	released     []string
	failComplete int // number of Complete calls that fail before one succeeds
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Reserve(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		s.keys[key] = ""
		return "", nil
	}
	if id == "" {
		return "", domain.ErrIdempotencyInFlight
	}
	return id, nil
}

func (s *stubIdempotency) Complete(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failComplete > 0 {
		s.failComplete--
		return errors.New("redis unavailable")
	}
	s.keys[key] = orderID
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.released = append(s.released, key)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type orderFixture struct {
	svc       *OrderService
	orders    *stubOrderRepo
	products  *stubProductRepo
	users     *stubUserRepo
	idem      *stubIdempotency
	publisher *recordingPublisher
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orders:    newStubOrderRepo(),
		products:  newStubProductRepo(),
		users:     newStubUserRepo(),
		idem:      newStubIdempotency(),
		publisher: &recordingPublisher{},
	}
	f.users.add("farmer_1", "Fiona", "fiona@farm.com", domain.RoleFarmer)
	f.users.add("farmer_2", "Greg", "greg@farm.com", domain.RoleFarmer)
	f.users.add("buyer_1", "Bea", "bea@mail.com", domain.RoleConsumer)
	f.users.add("buyer_2", "Cal", "cal@mail.com", domain.RoleConsumer)

	f.products.add(domain.Product{ID: "A", Name: "Apples", Price: 10, Quantity: 5, Image: "a.png", FarmerID: "farmer_1"})
	f.products.add(domain.Product{ID: "B", Name: "Beans", Price: 5, Quantity: 3, Image: "b.png", FarmerID: "farmer_1"})
	f.products.add(domain.Product{ID: "C", Name: "Cheese", Price: 7.5, Quantity: 1, FarmerID: "farmer_2"})

	f.svc = NewOrderService(f.orders, f.products, f.users, stubTransactor{}, f.idem, f.publisher, zerolog.Nop())
	return f
}

func placeInput(buyerID string, lines ...domain.CartLine) ports.PlaceOrderInput {
	return ports.PlaceOrderInput{
		BuyerID:         buyerID,
		Cart:            domain.NewCart(lines...),
		DeliveryAddress: "12 Farm Road",
		ContactNumber:   "+1 555 0100",
	}
}

// ---------------------------------------------------------------------------
// PlaceOrder
// ---------------------------------------------------------------------------

func TestOrderService_PlaceOrder_ExampleCart(t *testing.T) {
	f := newOrderFixture()

	res, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o := res.Order
	if o.TotalAmount != 25 {
		t.Errorf("expected total 25, got %v", o.TotalAmount)
	}
	if o.Status != string(domain.StatusPending) {
		t.Errorf("expected pending, got %s", o.Status)
	}
	if f.products.quantity("A") != 3 || f.products.quantity("B") != 2 {
		t.Errorf("unexpected stock: A=%d B=%d", f.products.quantity("A"), f.products.quantity("B"))
	}
	if o.Seller.ID != "farmer_1" || o.Seller.Name != "Fiona" {
		t.Errorf("seller not resolved: %+v", o.Seller)
	}
	if o.Buyer.Email != "bea@mail.com" {
		t.Errorf("buyer not resolved: %+v", o.Buyer)
	}
	if len(o.Lines) != 2 || o.Lines[0].ProductName != "Apples" || o.Lines[0].Image != "a.png" || o.Lines[0].Price != 10 {
		t.Errorf("unexpected lines: %+v", o.Lines)
	}
	if len(o.StatusHistory) != 1 || o.StatusHistory[0].Status != "pending" {
		t.Errorf("expected initial history entry, got %+v", o.StatusHistory)
	}
	if res.Replayed {
		t.Error("fresh order must not be flagged as replayed")
	}

	events := f.publisher.snapshot()
	if len(events) != 1 || events[0].Type != string(domain.EventOrderPlaced) || events[0].OrderID != o.ID {
		t.Errorf("expected one order_placed event, got %+v", events)
	}
}

func TestOrderService_PlaceOrder_TotalUsesDecimalArithmetic(t *testing.T) {
	f := newOrderFixture()
	f.products.add(domain.Product{ID: "D", Name: "Dill", Price: 0.1, Quantity: 10, FarmerID: "farmer_1"})

	res, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1", domain.CartLine{ProductID: "D", Quantity: 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.TotalAmount != 0.3 {
		t.Errorf("expected 0.3, got %v", res.Order.TotalAmount)
	}
}

func TestOrderService_PlaceOrder_InsufficientStockOnLaterLine(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 4},
	))

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductName != "Beans" || stockErr.Available != 3 || stockErr.Requested != 4 {
		t.Errorf("unexpected error detail: %+v", stockErr)
	}
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Error("expected errors.Is ErrInsufficientStock")
	}

	if f.products.quantity("A") != 5 || f.products.quantity("B") != 3 {
		t.Errorf("no quantity may change: A=%d B=%d", f.products.quantity("A"), f.products.quantity("B"))
	}
	if len(f.orders.orders) != 0 {
		t.Error("no order may be created")
	}
	if len(f.publisher.snapshot()) != 0 {
		t.Error("no audit event expected for a failed order")
	}
}

func TestOrderService_PlaceOrder_DuplicateLinesCheckedCombined(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "B", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 2},
	))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for combined quantity, got %v", err)
	}
	if f.products.quantity("B") != 3 {
		t.Errorf("stock must be untouched, got %d", f.products.quantity("B"))
	}
}

func TestOrderService_PlaceOrder_MissingProduct(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 1},
		domain.CartLine{ProductID: "ghost", Quantity: 1},
	))
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if f.products.quantity("A") != 5 {
		t.Errorf("stock must be restored, got %d", f.products.quantity("A"))
	}
}

func TestOrderService_PlaceOrder_MultipleSellersRejected(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 1},
		domain.CartLine{ProductID: "C", Quantity: 1},
	))
	if !errors.Is(err, domain.ErrMultipleSellers) {
		t.Fatalf("expected ErrMultipleSellers, got %v", err)
	}
	if f.products.quantity("A") != 5 || f.products.quantity("C") != 1 {
		t.Error("no quantity may change")
	}
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ports.PlaceOrderInput)
	}{
		{"empty cart", func(in *ports.PlaceOrderInput) { in.Cart = domain.Cart{} }},
		{"zero quantity", func(in *ports.PlaceOrderInput) { in.Cart = domain.NewCart(domain.CartLine{ProductID: "A", Quantity: 0}) }},
		{"missing product ref", func(in *ports.PlaceOrderInput) { in.Cart = domain.NewCart(domain.CartLine{Quantity: 1}) }},
		{"blank address", func(in *ports.PlaceOrderInput) { in.DeliveryAddress = "   " }},
		{"blank contact", func(in *ports.PlaceOrderInput) { in.ContactNumber = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture()
			in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
			tc.mutate(&in)
			if _, err := f.svc.PlaceOrder(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if f.products.quantity("A") != 5 {
				t.Error("inventory must not be touched")
			}
		})
	}
}

func TestOrderService_PlaceOrder_CreateFailureRollsBack(t *testing.T) {
	f := newOrderFixture()
	f.orders.createErr = errors.New("write failed")

	_, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 2}))
	if err == nil {
		t.Fatal("expected error")
	}
	if f.products.quantity("A") != 5 {
		t.Errorf("decrement must not survive a failed order, got %d", f.products.quantity("A"))
	}
}

func TestOrderService_PlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newOrderFixture()

	const buyers = 2
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.PlaceOrder(context.Background(), placeInput("buyer_"+strconv.Itoa(i+1),
				domain.CartLine{ProductID: "C", Quantity: 1}))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one order to succeed, got %d", succeeded)
	}
	if f.products.quantity("C") != 0 {
		t.Errorf("expected stock 0, got %d", f.products.quantity("C"))
	}
}

func TestOrderService_PlaceOrder_IdempotentReplay(t *testing.T) {
	f := newOrderFixture()
	in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in.IdempotencyKey = "key-1"

	first, err := f.svc.PlaceOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.PlaceOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}

	if !second.Replayed || second.Order.ID != first.Order.ID {
		t.Errorf("expected replay of %s, got %+v", first.Order.ID, second)
	}
	if f.products.quantity("A") != 4 {
		t.Errorf("replay must not decrement again, got %d", f.products.quantity("A"))
	}
	if len(f.orders.orders) != 1 {
		t.Errorf("expected a single order, got %d", len(f.orders.orders))
	}
}

func TestOrderService_PlaceOrder_IdempotencyKeyScopedToBuyer(t *testing.T) {
	f := newOrderFixture()

	in1 := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in1.IdempotencyKey = "same"
	in2 := placeInput("buyer_2", domain.CartLine{ProductID: "A", Quantity: 1})
	in2.IdempotencyKey = "same"

	r1, err := f.svc.PlaceOrder(context.Background(), in1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := f.svc.PlaceOrder(context.Background(), in2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r2.Replayed || r1.Order.ID == r2.Order.ID {
		t.Error("keys of different buyers must not collide")
	}
}

func TestOrderService_PlaceOrder_IdempotencyInFlightAndRelease(t *testing.T) {
	f := newOrderFixture()
	f.idem.keys["buyer_1:busy"] = ""

	in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in.IdempotencyKey = "busy"
	if _, err := f.svc.PlaceOrder(context.Background(), in); !errors.Is(err, domain.ErrIdempotencyInFlight) {
		t.Fatalf("expected ErrIdempotencyInFlight, got %v", err)
	}

	failing := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 99})
	failing.IdempotencyKey = "retry-me"
	if _, err := f.svc.PlaceOrder(context.Background(), failing); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, ok := f.idem.keys["buyer_1:retry-me"]; ok {
		t.Error("key of a failed request must be released")
	}
}

func TestOrderService_PlaceOrder_CompleteKeyRetried(t *testing.T) {
	f := newOrderFixture()
	f.idem.failComplete = 1

	in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in.IdempotencyKey = "k1"
	first, err := f.svc.PlaceOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	again, err := f.svc.PlaceOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Order.ID != first.Order.ID {
		t.Errorf("expected replay of %s, got %+v", first.Order.ID, again)
	}
}

func TestOrderService_PlaceOrder_CompleteKeyReleasedWhenStoreFails(t *testing.T) {
	f := newOrderFixture()
	f.idem.failComplete = 2

	in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in.IdempotencyKey = "k1"
	if _, err := f.svc.PlaceOrder(context.Background(), in); err != nil {
		t.Fatalf("order must still succeed: %v", err)
	}

	f.idem.mu.Lock()
	_, pending := f.idem.keys["buyer_1:k1"]
	released := len(f.idem.released)
	f.idem.mu.Unlock()
	if pending || released != 1 {
		t.Fatalf("expected key released, pending=%v released=%d", pending, released)
	}

	if _, err := f.svc.PlaceOrder(context.Background(), in); errors.Is(err, domain.ErrIdempotencyInFlight) {
		t.Fatal("retry must not be blocked by a stale pending key")
	}
}

// ---------------------------------------------------------------------------
// GetOrder / List
// ---------------------------------------------------------------------------

func TestOrderService_GetOrder_RoundTrip(t *testing.T) {
	f := newOrderFixture()
	placed, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	got, err := f.svc.GetOrder(context.Background(), placed.Order.ID, "buyer_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalAmount != placed.Order.TotalAmount || got.Status != "pending" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Lines) != len(placed.Order.Lines) {
		t.Fatalf("line count mismatch")
	}
	for i := range got.Lines {
		if got.Lines[i] != placed.Order.Lines[i] {
			t.Errorf("line %d mismatch: %+v vs %+v", i, got.Lines[i], placed.Order.Lines[i])
		}
	}

	if _, err := f.svc.GetOrder(context.Background(), placed.Order.ID, "farmer_1"); err != nil {
		t.Errorf("seller must be able to view the order: %v", err)
	}
}

func TestOrderService_LinePricesFrozenAfterCatalogChange(t *testing.T) {
	f := newOrderFixture()
	placed, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	catalog := NewProductService(f.products, f.users, zerolog.Nop())
	newPrice := 99.0
	if _, err := catalog.UpdateProduct(context.Background(), ports.UpdateProductInput{
		ProductID: "A",
		FarmerID:  "farmer_1",
		Price:     &newPrice,
	}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	got, err := f.svc.GetOrder(context.Background(), placed.Order.ID, "buyer_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lines[0].ProductID != "A" || got.Lines[0].Price != 10 {
		t.Errorf("expected captured price 10 for A, got %+v", got.Lines[0])
	}
	if got.TotalAmount != 25 {
		t.Errorf("expected total 25, got %v", got.TotalAmount)
	}

	list, err := f.svc.ListBuyerOrders(context.Background(), "buyer_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Lines[0].Price != 10 || list[0].TotalAmount != 25 {
		t.Errorf("listed order picked up the new catalog price: %+v", list)
	}
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	f := newOrderFixture()
	placed, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1}))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := f.svc.GetOrder(context.Background(), placed.Order.ID, "buyer_2"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other consumer: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), placed.Order.ID, "farmer_2"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-seller farmer: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), "missing", "buyer_1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newOrderFixture()
	if _, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_2", domain.CartLine{ProductID: "C", Quantity: 1})); err != nil {
		t.Fatal(err)
	}

	mine, err := f.svc.ListBuyerOrders(context.Background(), "buyer_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Buyer.ID != "buyer_1" {
		t.Errorf("unexpected buyer orders: %+v", mine)
	}

	received, err := f.svc.ListSellerOrders(context.Background(), "farmer_2")
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 1 || received[0].Seller.Name != "Greg" {
		t.Errorf("unexpected seller orders: %+v", received)
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus
// ---------------------------------------------------------------------------

func placedOrder(t *testing.T, f *orderFixture) string {
	t.Helper()
	res, err := f.svc.PlaceOrder(context.Background(), placeInput("buyer_1",
		domain.CartLine{ProductID: "A", Quantity: 2},
		domain.CartLine{ProductID: "B", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	return res.Order.ID
}

func TestOrderService_UpdateStatus_Progression(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)

	for _, next := range []string{"confirmed", "shipped", "delivered"} {
		got, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: next})
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if got.Status != next {
			t.Errorf("expected %s, got %s", next, got.Status)
		}
	}

	stored := f.orders.orders[id]
	if len(stored.StatusHistory) != 4 {
		t.Errorf("expected 4 history entries, got %d", len(stored.StatusHistory))
	}
	if stored.StatusHistory[3].ActorID != "farmer_1" {
		t.Errorf("history must record the actor: %+v", stored.StatusHistory[3])
	}

	events := f.publisher.snapshot()
	if len(events) != 4 || events[3].Type != string(domain.EventStatusChanged) || events[3].Status != "delivered" {
		t.Errorf("unexpected audit events: %+v", events)
	}

	_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "cancelled"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("delivered is terminal, expected ErrInvalidTransition, got %v", err)
	}
}

func TestOrderService_UpdateStatus_IllegalJump(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "delivered"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.orders.orders[id].Status != domain.StatusPending {
		t.Error("status must not change")
	}
}

func TestOrderService_UpdateStatus_UnknownLabel(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "teleported"})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestOrderService_UpdateStatus_OnlySeller(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)

	for _, actor := range []string{"farmer_2", "buyer_1"} {
		_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: actor, Status: "confirmed"})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", actor, err)
		}
	}

	_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: "missing", ActorID: "farmer_1", Status: "confirmed"})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderService_UpdateStatus_CancelRestocks(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)
	if f.products.quantity("A") != 3 || f.products.quantity("B") != 2 {
		t.Fatalf("precondition: unexpected stock")
	}

	got, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "cancelled"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != "cancelled" {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if f.products.quantity("A") != 5 || f.products.quantity("B") != 3 {
		t.Errorf("cancel must restock: A=%d B=%d", f.products.quantity("A"), f.products.quantity("B"))
	}

	_, err = f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "confirmed"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("cancelled is terminal, expected ErrInvalidTransition, got %v", err)
	}
	if f.products.quantity("A") != 5 {
		t.Error("a rejected transition must not restock again")
	}
}

func TestOrderService_UpdateStatus_LostRace(t *testing.T) {
	f := newOrderFixture()
	id := placedOrder(t, f)

	// Another request moves the order between our read and our conditional write.
	f.svc.orders = &racingOrderRepo{stubOrderRepo: f.orders, interfere: func() {
		f.orders.mu.Lock()
		f.orders.orders[id].Status = domain.StatusCancelled
		f.orders.mu.Unlock()
	}}

	_, err := f.svc.UpdateStatus(context.Background(), ports.UpdateOrderStatusInput{OrderID: id, ActorID: "farmer_1", Status: "confirmed"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

// racingOrderRepo runs interfere once right after the first FindByID.
type racingOrderRepo struct {
	*stubOrderRepo
	interfere func()
	once      sync.Once
}

func (r *racingOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.stubOrderRepo.FindByID(ctx, id)
	r.once.Do(r.interfere)
	return o, err
}

func TestOrderService_PlaceOrder_WithoutOptionalDeps(t *testing.T) {
	f := newOrderFixture()
	svc := NewOrderService(f.orders, f.products, f.users, stubTransactor{}, nil, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	in := placeInput("buyer_1", domain.CartLine{ProductID: "A", Quantity: 1})
	in.IdempotencyKey = "ignored"
	res, err := svc.PlaceOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Order.CreatedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected created_at: %v", res.Order.CreatedAt)
	}
}
