package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
	"github.com/vibast-solutions/ms-go-razorpay/app/repository"
)

type memoryOrderRepo struct {
	mu        sync.Mutex
	orders    map[uint64]*entity.Order
	nextID    uint64
	updateErr error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: map[uint64]*entity.Order{}, nextID: 1}
}

func (r *memoryOrderRepo) Create(_ context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.orders {
		if item.ProviderOrderID == order.ProviderOrderID {
			return repository.ErrOrderAlreadyExists
		}
	}
	order.ID = r.nextID
	r.nextID++
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *memoryOrderRepo) UpdateStatus(_ context.Context, order *entity.Order, fromStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.orders[order.ID]
	if !ok || stored.Status != fromStatus {
		return repository.ErrOrderStatusChanged
	}
	copyItem := *order
	r.orders[order.ID] = &copyItem
	return nil
}

func (r *memoryOrderRepo) FindByProviderOrderID(_ context.Context, providerOrderID string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.orders {
		if item.ProviderOrderID == providerOrderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *memoryOrderRepo) FindByProviderPaymentID(_ context.Context, providerPaymentID string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.orders {
		if item.ProviderPaymentID != nil && *item.ProviderPaymentID == providerPaymentID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *memoryOrderRepo) ListForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	return r.listOpen(func(o *entity.Order) bool { return !o.UpdatedAt.After(before) }, limit), nil
}

func (r *memoryOrderRepo) ListExpiredPending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	return r.listOpen(func(o *entity.Order) bool { return !o.CreatedAt.After(cutoff) }, limit), nil
}

func (r *memoryOrderRepo) listOpen(match func(*entity.Order) bool, limit int32) []*entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Order, 0)
	for id := uint64(1); id < r.nextID; id++ {
		item, ok := r.orders[id]
		if !ok {
			continue
		}
		if item.Status != entity.OrderStatusCreated && item.Status != entity.OrderStatusAwaitingPayment {
			continue
		}
		if !match(item) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items
}

func (r *memoryOrderRepo) get(providerOrderID string) *entity.Order {
	item, _ := r.FindByProviderOrderID(context.Background(), providerOrderID)
	return item
}

func (r *memoryOrderRepo) seed(order *entity.Order) *entity.Order {
	_ = r.Create(context.Background(), order)
	return order
}

type memoryEventRepo struct {
	mu     sync.Mutex
	events []*entity.PaymentEvent
}

func (r *memoryEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ProviderEventID != nil {
		for _, item := range r.events {
			if item.ProviderEventID != nil && *item.ProviderEventID == *event.ProviderEventID {
				return repository.ErrEventAlreadyExists
			}
		}
	}
	event.ID = uint64(len(r.events) + 1)
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *memoryEventRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, item := range r.events {
		out = append(out, item.EventType)
	}
	return out
}

type fakeGateway struct {
	createFn func(ctx context.Context, input *provider.CreateOrderInput) (provider.Order, error)
	fetchFn  func(ctx context.Context, providerOrderID string) (provider.Order, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, input *provider.CreateOrderInput) (provider.Order, error) {
	return g.createFn(ctx, input)
}

func (g *fakeGateway) FetchOrder(ctx context.Context, providerOrderID string) (provider.Order, error) {
	return g.fetchFn(ctx, providerOrderID)
}

type spyDispatcher struct {
	mu     sync.Mutex
	calls  []*provider.WebhookEvent
	result error
}

func (d *spyDispatcher) ApplyWebhookEvent(_ context.Context, event *provider.WebhookEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, event)
	return d.result
}

func (d *spyDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type memoryDeliveryRepo struct {
	mu         sync.Mutex
	deliveries []*entity.WebhookDelivery
}

func (r *memoryDeliveryRepo) Create(_ context.Context, delivery *entity.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *delivery
	r.deliveries = append(r.deliveries, &copyItem)
	return nil
}

func (r *memoryDeliveryRepo) statuses() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int32, 0, len(r.deliveries))
	for _, item := range r.deliveries {
		out = append(out, item.Status)
	}
	return out
}

type createOrderReq struct {
	amount   int64
	currency string
	receipt  string
	offers   json.RawMessage
}

func (r createOrderReq) GetAmountInPaise() int64 { return r.amount }
func (r createOrderReq) GetCurrency() string { return r.currency }
func (r createOrderReq) GetReceipt() string { return r.receipt }
func (r createOrderReq) GetOffers() json.RawMessage { return r.offers }

type verifyReq struct {
	orderID, paymentID, signature string
}

func (r verifyReq) GetRazorpayOrderId() string { return r.orderID }
func (r verifyReq) GetRazorpayPaymentId() string { return r.paymentID }
func (r verifyReq) GetRazorpaySignature() string { return r.signature }

type webhookReq struct {
	body      []byte
	signature string
	eventID   string
}

func (r webhookReq) GetBody() []byte { return r.body }
func (r webhookReq) GetSignature() string { return r.signature }
func (r webhookReq) GetEventId() string { return r.eventID }
func (r webhookReq) GetRemoteIp() string { return "203.0.113.9" }

func newTestLedger() (*Ledger, *memoryOrderRepo, *memoryEventRepo) {
	orders := newMemoryOrderRepo()
	events := &memoryEventRepo{}
	return NewLedger(orders, events), orders, events
}
