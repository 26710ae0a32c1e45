package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/internal/cron"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
	"github.com/angelmondragon/neurocare-backend/pkg/types"
)

// manualScheduler only fires when the test says so.
type manualScheduler struct {
	mu        sync.Mutex
	timers    map[string]func()
	delays    map[string]time.Duration
	scheduled int
	stopped   bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{timers: map[string]func(){}, delays: map[string]time.Duration{}}
}

func (s *manualScheduler) ScheduleOnce(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, ok := s.timers[key]; ok {
		return false
	}
	s.timers[key] = fn
	s.delays[key] = delay
	s.scheduled++
	return true
}

func (s *manualScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	delete(s.timers, key)
	return ok
}

func (s *manualScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.timers = map[string]func(){}
}

// take removes the callback without running it, as a timer that already left the queue would.
func (s *manualScheduler) take(key string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.timers[key]
	delete(s.timers, key)
	return fn
}

func (s *manualScheduler) fire(key string) bool {
	fn := s.take(key)
	if fn == nil {
		return false
	}
	fn()
	return true
}

type failingPuts struct {
	*storage.MemoryStore
	fail bool
}

func (f *failingPuts) Put(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, key, value)
}

type harness struct {
	manager   *Manager
	store     *storage.MemoryStore
	scheduler *manualScheduler
	feed      *notifications.Feed
}

func newHarness(t *testing.T, mutate func(*ManagerParams)) *harness {
	t.Helper()
	h := &harness{
		store:     storage.NewMemoryStore(),
		scheduler: newManualScheduler(),
		feed:      notifications.NewFeed(20),
	}
	params := ManagerParams{
		Logger:          logger.Nop(),
		Storage:         h.store,
		Scheduler:       h.scheduler,
		Notifier:        h.feed,
		TransitDuration: 12 * time.Second,
		Backfill:        true,
		Now:             func() time.Time { return time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC) },
	}
	if mutate != nil {
		mutate(&params)
	}
	m, err := NewManager(params)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	h.manager = m
	return h
}

func (h *harness) persisted(t *testing.T) []Order {
	t.Helper()
	raw, err := h.store.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	var out []Order
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (h *harness) notices(t *testing.T) []notifications.Notification {
	t.Helper()
	res, err := h.feed.List(context.Background(), notifications.ListParams{Limit: 100})
	require.NoError(t, err)
	return res.Items
}

func (h *harness) seed(t *testing.T, orders ...Order) {
	t.Helper()
	raw, err := json.Marshal(orders)
	require.NoError(t, err)
	require.NoError(t, h.store.Put(context.Background(), StorageKey, raw))
}

var address = types.ShippingAddress{
	FullName:      "Asha Rao",
	StreetAddress: "12 MG Road",
	City:          "Pune",
	State:         "Maharashtra",
	Pincode:       "411001",
}

func sampleLines() []cart.Line {
	return []cart.Line{
		{Product: products.Product{ID: "aspirin", ProductName: "Aspirin", Price: 50.00}, Quantity: 2},
		{Product: products.Product{ID: "vitamin-d3", ProductName: "VitaminD3", Price: 120.00}, Quantity: 1},
	}
}

func storedOrder(id string, status enums.OrderStatus) Order {
	return Order{
		OrderID:         id,
		Items:           []Item{{Name: "Aspirin", Quantity: 1}},
		Total:           "50.00",
		ShippingAddress: address,
		Status:          status,
		Timestamp:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(ManagerParams{Storage: storage.NewMemoryStore(), Scheduler: newManualScheduler()})
	assert.Error(t, err)
	_, err = NewManager(ManagerParams{Logger: logger.Nop(), Scheduler: newManualScheduler()})
	assert.Error(t, err)
	_, err = NewManager(ManagerParams{Logger: logger.Nop(), Storage: storage.NewMemoryStore()})
	assert.Error(t, err)
	_, err = NewManager(ManagerParams{Logger: logger.Nop(), Storage: storage.NewMemoryStore(), Scheduler: newManualScheduler(), CorruptionPolicy: "lenient"})
	assert.Error(t, err)
}

func TestNewOrderIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^NC-[0-9A-Z]{9}$`)
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		id := NewOrderID()
		require.Regexp(t, re, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCreateBuildsProcessingOrderFromCart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.manager.Load(ctx))

	order, err := h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	assert.Regexp(t, `^NC-[0-9A-Z]{9}$`, order.OrderID)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, "220.00", order.Total)
	assert.Equal(t, []Item{{Name: "Aspirin", Quantity: 2}, {Name: "VitaminD3", Quantity: 1}}, order.Items)
	assert.Equal(t, address, order.ShippingAddress)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 123000000, time.UTC), order.Timestamp)

	assert.Equal(t, h.manager.Orders(), h.persisted(t))
	assert.Equal(t, 0, h.scheduler.Len())
}

func TestCreateRejectsEmptyCartAndIncompleteAddress(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.manager.Create(ctx, CreateInput{ShippingAddress: address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	_, err = h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: types.ShippingAddress{FullName: "Asha"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	assert.Empty(t, h.manager.Orders())
	_, getErr := h.store.Get(ctx, StorageKey)
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}

func TestCreateBackfillsProcessingHead(t *testing.T) {
	ids := []string{"NC-AAAAAAAAA", "NC-BBBBBBBBB", "NC-CCCCCCCCC"}
	h := newHarness(t, func(p *ManagerParams) {
		p.NewID = func() string { id := ids[0]; ids = ids[1:]; return id }
	})
	ctx := context.Background()

	_, err := h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	_, err = h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	orders := h.manager.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "NC-BBBBBBBBB", orders[0].OrderID)
	assert.Equal(t, enums.OrderStatusProcessing, orders[0].Status)
	assert.Equal(t, enums.OrderStatusOutForDelivery, orders[1].Status)
	assert.True(t, h.scheduler.Pending("NC-AAAAAAAAA"))
	assert.Equal(t, 12*time.Second, h.scheduler.delays["NC-AAAAAAAAA"])
	assert.Equal(t, []string{"NC-AAAAAAAAA"}, h.manager.PendingDeliveries())

	_, err = h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	orders = h.manager.Orders()
	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusOutForDelivery,
	}, []enums.OrderStatus{orders[0].Status, orders[1].Status, orders[2].Status})
	assert.Equal(t, h.manager.Orders(), h.persisted(t))
}

func TestCreateWithoutBackfillLeavesHeadAlone(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) { p.Backfill = false })
	ctx := context.Background()

	_, err := h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	_, err = h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	for _, order := range h.manager.Orders() {
		assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	}
	assert.Equal(t, 0, h.scheduler.Len())
}

func TestCreateDuplicateIDFailsLoudly(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) { p.NewID = func() string { return "NC-SAMESAME1" } })
	ctx := context.Background()

	_, err := h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	_, err = h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	orders := h.manager.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, enums.OrderStatusProcessing, orders[0].Status)
}

func TestDeliveryTimerDeliversExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seed(t, storedOrder("NC-TRANSIT01", enums.OrderStatusOutForDelivery))

	require.NoError(t, h.manager.Load(ctx))
	require.True(t, h.scheduler.Pending("NC-TRANSIT01"))

	// reloading mid-wait must not arm a second timer
	require.NoError(t, h.manager.Load(ctx))
	require.NoError(t, h.manager.Load(ctx))
	assert.Equal(t, 1, h.scheduler.scheduled)

	require.True(t, h.scheduler.fire("NC-TRANSIT01"))
	assert.False(t, h.scheduler.fire("NC-TRANSIT01"))

	order, err := h.manager.Get("NC-TRANSIT01")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, order.Status)
	assert.Equal(t, enums.OrderStatusDelivered, h.persisted(t)[0].Status)

	notes := h.notices(t)
	require.Len(t, notes, 1)
	assert.Equal(t, "Order Delivered!", notes[0].Title)
	assert.Equal(t, "Your order #NC-TRANSIT01 has been successfully delivered.", notes[0].Description)

	// a later reload sees a terminal order and schedules nothing
	require.NoError(t, h.manager.Load(ctx))
	assert.Equal(t, 0, h.scheduler.Len())
	assert.Equal(t, 1, h.scheduler.scheduled)
}

func TestLoadSchedulesOnlyOutForDelivery(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t,
		storedOrder("NC-1", enums.OrderStatusProcessing),
		storedOrder("NC-2", enums.OrderStatusOutForDelivery),
		storedOrder("NC-3", enums.OrderStatusDelivered),
		storedOrder("NC-4", enums.OrderStatusCancelled),
	)
	require.NoError(t, h.manager.Load(context.Background()))
	assert.Equal(t, []string{"NC-2"}, h.manager.PendingDeliveries())
	assert.Equal(t, 1, h.scheduler.Len())
}

func TestLoadCancelsTimersForOrdersThatMovedOn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seed(t, storedOrder("NC-1", enums.OrderStatusOutForDelivery))
	require.NoError(t, h.manager.Load(ctx))
	require.True(t, h.scheduler.Pending("NC-1"))

	h.seed(t, storedOrder("NC-1", enums.OrderStatusDelivered))
	require.NoError(t, h.manager.Load(ctx))
	assert.False(t, h.scheduler.Pending("NC-1"))

	h.seed(t, storedOrder("NC-2", enums.OrderStatusOutForDelivery))
	require.NoError(t, h.manager.Load(ctx))
	require.True(t, h.scheduler.Pending("NC-2"))
	require.NoError(t, h.store.Delete(ctx, StorageKey))
	require.NoError(t, h.manager.Load(ctx))
	assert.False(t, h.scheduler.Pending("NC-2"))
	assert.Empty(t, h.manager.Orders())
}

func TestLoadAcceptsBrowserTimestamps(t *testing.T) {
	h := newHarness(t, nil)
	payload := `[{"orderId":"NC-K3J9X2LQA","items":[{"name":"Aspirin","quantity":2}],"total":"100.00",` +
		`"shippingAddress":{"fullName":"Asha Rao","streetAddress":"12 MG Road","city":"Pune","state":"MH","pincode":"411001"},` +
		`"status":"Processing","timestamp":"2026-03-01T10:00:00.000Z"}]`
	require.NoError(t, h.store.Put(context.Background(), StorageKey, []byte(payload)))

	require.NoError(t, h.manager.Load(context.Background()))
	orders := h.manager.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), orders[0].Timestamp)
}

func TestLoadStrictPolicyResetsCorruptHistory(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		message string
	}{
		{name: "not an array", payload: `{"orderId":"NC-1"}`, message: "The stored order history is incomplete or malformed."},
		{name: "missing orderId", payload: `[{"status":"Processing"}]`, message: "The stored order history is incomplete or malformed."},
		{name: "numeric orderId", payload: `[{"orderId":42,"status":"Processing"}]`, message: "The stored order history is incomplete or malformed."},
		{name: "unknown status", payload: `[{"orderId":"NC-1","status":"Lost"}]`, message: "The stored order history is incomplete or malformed."},
		{name: "duplicate ids", payload: `[{"orderId":"NC-1","status":"Processing"},{"orderId":"NC-1","status":"Delivered"}]`, message: "The stored order history is incomplete or malformed."},
		{name: "invalid json", payload: `[{"orderId":`, message: "Failed to load your order history: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()
			require.NoError(t, h.store.Put(ctx, StorageKey, []byte(tc.payload)))

			err := h.manager.Load(ctx)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageCorrupt), "got %v", err)
			assert.Empty(t, h.manager.Orders())
			_, getErr := h.store.Get(ctx, StorageKey)
			assert.ErrorIs(t, getErr, storage.ErrNotFound)

			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.True(t, strings.HasPrefix(typed.Message(), tc.message), typed.Message())

			notes := h.notices(t)
			require.Len(t, notes, 1)
			assert.Equal(t, enums.NotificationTypeStorageReset, notes[0].Type)
			assert.Equal(t, typed.Message(), notes[0].Description)
		})
	}
}

func TestLoadInvalidJSONMessageMentionsClearing(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Put(context.Background(), StorageKey, []byte("not json")))
	err := h.manager.Load(context.Background())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.True(t, strings.HasSuffix(typed.Message(), ". The history has been cleared."), typed.Message())
}

func TestLoadSalvagePolicyKeepsWellFormedEntries(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) { p.CorruptionPolicy = config.CorruptionSalvage })
	ctx := context.Background()
	good, err := json.Marshal(storedOrder("NC-GOOD", enums.OrderStatusOutForDelivery))
	require.NoError(t, err)
	payload := fmt.Sprintf(`[%s,{"items":[]}]`, good)
	require.NoError(t, h.store.Put(ctx, StorageKey, []byte(payload)))

	err = h.manager.Load(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageCorrupt), "got %v", err)
	assert.Equal(t, map[string]any{"dropped": 1, "kept": 1}, pkgerrors.As(err).Details())

	orders := h.manager.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "NC-GOOD", orders[0].OrderID)
	assert.Equal(t, orders, h.persisted(t))
	assert.True(t, h.scheduler.Pending("NC-GOOD"))
	assert.Equal(t, "1 malformed entry was removed from your order history.", h.notices(t)[0].Description)
}

func TestLoadSalvagePolicyStillResetsNonArrays(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) { p.CorruptionPolicy = config.CorruptionSalvage })
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, StorageKey, []byte(`"orders"`)))

	err := h.manager.Load(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageCorrupt))
	_, getErr := h.store.Get(ctx, StorageKey)
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seed(t,
		storedOrder("NC-P", enums.OrderStatusProcessing),
		storedOrder("NC-T", enums.OrderStatusOutForDelivery),
		storedOrder("NC-D", enums.OrderStatusDelivered),
	)
	require.NoError(t, h.manager.Load(ctx))

	cancelled, err := h.manager.Cancel(ctx, "NC-P")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	_, err = h.manager.Cancel(ctx, "NC-T")
	require.NoError(t, err)
	assert.False(t, h.scheduler.Pending("NC-T"))

	_, err = h.manager.Cancel(ctx, "NC-D")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.manager.Cancel(ctx, "NC-P")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = h.manager.Cancel(ctx, "NC-NOPE")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	persisted := h.persisted(t)
	assert.Equal(t, enums.OrderStatusCancelled, persisted[0].Status)
	assert.Equal(t, enums.OrderStatusCancelled, persisted[1].Status)
	assert.Equal(t, enums.OrderStatusDelivered, persisted[2].Status)
}

func TestTimerAfterCloseIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seed(t, storedOrder("NC-T", enums.OrderStatusOutForDelivery))
	require.NoError(t, h.manager.Load(ctx))

	fn := h.scheduler.take("NC-T")
	require.NotNil(t, fn)
	h.manager.Close()
	fn()

	assert.Equal(t, enums.OrderStatusOutForDelivery, h.persisted(t)[0].Status)
	assert.Empty(t, h.notices(t))
	assert.True(t, pkgerrors.IsCode(h.manager.Load(ctx), pkgerrors.CodeStateConflict))
	_, err := h.manager.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestTimerForOrderNoLongerInTransitIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.seed(t, storedOrder("NC-T", enums.OrderStatusOutForDelivery))
	require.NoError(t, h.manager.Load(ctx))

	fn := h.scheduler.take("NC-T")
	_, err := h.manager.Cancel(ctx, "NC-T")
	require.NoError(t, err)
	fn()

	order, err := h.manager.Get("NC-T")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
}

func TestCreateKeepsOrderWhenWriteFails(t *testing.T) {
	backing := &failingPuts{MemoryStore: storage.NewMemoryStore(), fail: true}
	feed := notifications.NewFeed(10)
	m, err := NewManager(ManagerParams{
		Logger:    logger.Nop(),
		Storage:   backing,
		Scheduler: newManualScheduler(),
		Notifier:  feed,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	order, err := m.Create(context.Background(), CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NotNil(t, order)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.Len(t, m.Orders(), 1)
	assert.True(t, m.Degraded())

	backing.fail = false
	_, err = m.Cancel(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.False(t, m.Degraded())
}

func TestPersistedShape(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) { p.NewID = func() string { return "NC-SHAPE0001" } })
	_, err := h.manager.Create(context.Background(), CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	raw, err := h.store.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"orderId": "NC-SHAPE0001",
		"items": [{"name": "Aspirin", "quantity": 2}, {"name": "VitaminD3", "quantity": 1}],
		"total": "220.00",
		"shippingAddress": {"fullName": "Asha Rao", "streetAddress": "12 MG Road", "city": "Pune", "state": "Maharashtra", "pincode": "411001"},
		"status": "Processing",
		"timestamp": "2026-03-01T10:30:00.123Z"
	}]`, string(raw))
}

func TestRealTimerDeliversBackfilledOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	feed := notifications.NewFeed(10)
	m, err := NewManager(ManagerParams{
		Logger:          logger.Nop(),
		Storage:         store,
		Scheduler:       cron.NewTimerScheduler(nil),
		Notifier:        feed,
		TransitDuration: 20 * time.Millisecond,
		Backfill:        true,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	ctx := context.Background()

	first, err := m.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	_, err = m.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		order, err := m.Get(first.OrderID)
		return err == nil && order.Status == enums.OrderStatusDelivered
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, m.PendingDeliveries())
	assert.Equal(t, 1, feed.Len())
}

func TestTimestampKeepsMillisecondsWhenZero(t *testing.T) {
	h := newHarness(t, func(p *ManagerParams) {
		p.NewID = func() string { return "NC-WHOLE0001" }
		p.Now = func() time.Time { return time.Date(2026, 3, 1, 16, 0, 0, 0, time.FixedZone("IST", 19800)) }
	})
	_, err := h.manager.Create(context.Background(), CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)

	raw, err := h.store.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2026-03-01T10:30:00.000Z"`)
	assert.Equal(t, 1, strings.Count(string(raw), `"timestamp"`))

	// round trip through Load keeps the instant
	require.NoError(t, h.manager.Load(context.Background()))
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), h.manager.Orders()[0].Timestamp)
}

// unreliableStore fails a number of reads and, while failPuts is set, every write.
type unreliableStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failGets int
	failPuts bool
}

func (u *unreliableStore) Get(ctx context.Context, key string) ([]byte, error) {
	u.mu.Lock()
	fail := u.failGets > 0
	if fail {
		u.failGets--
	}
	u.mu.Unlock()
	if fail {
		return nil, errors.New("i/o timeout")
	}
	return u.MemoryStore.Get(ctx, key)
}

func (u *unreliableStore) Put(ctx context.Context, key string, value []byte) error {
	u.mu.Lock()
	fail := u.failPuts
	u.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return u.MemoryStore.Put(ctx, key, value)
}

func (u *unreliableStore) set(failGets int, failPuts bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failGets = failGets
	u.failPuts = failPuts
}

func newUnreliableManager(t *testing.T, ids ...string) (*Manager, *unreliableStore, *manualScheduler) {
	t.Helper()
	backing := &unreliableStore{MemoryStore: storage.NewMemoryStore()}
	scheduler := newManualScheduler()
	next := 0
	m, err := NewManager(ManagerParams{
		Logger:          logger.Nop(),
		Storage:         backing,
		Scheduler:       scheduler,
		TransitDuration: 12 * time.Second,
		Backfill:        true,
		NewID: func() string {
			id := ids[next]
			next++
			return id
		},
		Now: func() time.Time { return time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, backing, scheduler
}

func storedIn(t *testing.T, backing storage.Store) []Order {
	t.Helper()
	raw, err := backing.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	var out []Order
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func orderIDs(orders []Order) []string {
	ids := make([]string, len(orders))
	for i, order := range orders {
		ids[i] = order.OrderID
	}
	return ids
}

func seedStore(t *testing.T, backing storage.Store, orders ...Order) {
	t.Helper()
	raw, err := json.Marshal(orders)
	require.NoError(t, err)
	require.NoError(t, backing.Put(context.Background(), StorageKey, raw))
}

func TestFailedLoadMergesStoredHistoryOnNextWrite(t *testing.T) {
	m, backing, scheduler := newUnreliableManager(t, "NC-NEW00001")
	ctx := context.Background()
	seedStore(t, backing, storedOrder("NC-OLD00002", enums.OrderStatusDelivered), storedOrder("NC-OLD00001", enums.OrderStatusOutForDelivery))

	backing.set(1, false)
	err := m.Load(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.Empty(t, m.Orders())
	assert.True(t, m.Degraded())

	_, err = m.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NoError(t, err)
	want := []string{"NC-NEW00001", "NC-OLD00002", "NC-OLD00001"}
	assert.Equal(t, want, orderIDs(m.Orders()))
	assert.Equal(t, want, orderIDs(storedIn(t, backing)))
	assert.False(t, m.Degraded())
	assert.True(t, scheduler.Pending("NC-OLD00001"), "merged in-transit order gets its timer")
}

func TestWriteIsRefusedWhileStoredHistoryIsUnreadable(t *testing.T) {
	m, backing, _ := newUnreliableManager(t, "NC-NEW00001")
	ctx := context.Background()
	seedStore(t, backing, storedOrder("NC-OLD00002", enums.OrderStatusDelivered), storedOrder("NC-OLD00001", enums.OrderStatusDelivered))

	backing.set(2, false)
	require.Error(t, m.Load(ctx))

	order, err := m.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	require.NotNil(t, order)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.Len(t, m.Orders(), 1)
	assert.Equal(t, []string{"NC-OLD00002", "NC-OLD00001"}, orderIDs(storedIn(t, backing)))

	_, err = m.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	stored := storedIn(t, backing)
	assert.Equal(t, []string{"NC-NEW00001", "NC-OLD00002", "NC-OLD00001"}, orderIDs(stored))
	assert.Equal(t, enums.OrderStatusCancelled, stored[0].Status)
}

func TestReloadKeepsOrdersThatOnlyLiveInMemory(t *testing.T) {
	m, backing, scheduler := newUnreliableManager(t, "NC-NEW00001")
	ctx := context.Background()
	seedStore(t, backing, storedOrder("NC-OLD00001", enums.OrderStatusOutForDelivery))
	require.NoError(t, m.Load(ctx))

	backing.set(0, true)
	_, err := m.Create(ctx, CreateInput{Lines: sampleLines(), ShippingAddress: address})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	_, err = m.Cancel(ctx, "NC-OLD00001")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)

	// a sweep reload while writes still fail keeps memory as it is
	err = m.Load(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	assert.Equal(t, []string{"NC-NEW00001", "NC-OLD00001"}, orderIDs(m.Orders()))

	backing.set(0, false)
	require.NoError(t, m.Load(ctx))
	orders := m.Orders()
	require.Equal(t, []string{"NC-NEW00001", "NC-OLD00001"}, orderIDs(orders))
	assert.Equal(t, enums.OrderStatusCancelled, orders[1].Status)
	assert.False(t, scheduler.Pending("NC-OLD00001"))
	assert.Equal(t, orders, storedIn(t, backing))
	assert.False(t, m.Degraded())
}

func TestMergeOrdersPrefersFurthestStatus(t *testing.T) {
	newer := storedOrder("NC-B", enums.OrderStatusProcessing)
	newer.Timestamp = newer.Timestamp.Add(time.Hour)
	memory := []Order{newer, storedOrder("NC-A", enums.OrderStatusOutForDelivery)}
	stored := []Order{storedOrder("NC-A", enums.OrderStatusDelivered), storedOrder("NC-C", enums.OrderStatusCancelled)}

	merged := mergeOrders(memory, stored)
	require.Equal(t, []string{"NC-B", "NC-A", "NC-C"}, orderIDs(merged))
	assert.Equal(t, enums.OrderStatusDelivered, merged[1].Status)
	assert.Equal(t, memory, mergeOrders(memory, nil))
}
