package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/neurocare-backend/internal/cron"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/metrics"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
)

// StorageKey is the stable key holding the newest-first order history.
const StorageKey = "orders"

const defaultTransitDuration = 12 * time.Second

// ManagerParams wires an order lifecycle manager.
type ManagerParams struct {
	Logger    *logger.Logger
	Storage   storage.Store
	Scheduler cron.Scheduler
	Notifier  notifications.Notifier
	Metrics   *metrics.OrderMetrics
	SessionID string

	TransitDuration time.Duration
	// Backfill moves the previous head from Processing to Out for Delivery when a new order
	// is created.
	Backfill         bool
	CorruptionPolicy string

	NewID func() string
	Now   func() time.Time
}

// Manager owns one session's order history, its status transitions and delivery timers.
type Manager struct {
	logg      *logger.Logger
	storage   storage.Store
	scheduler cron.Scheduler
	notifier  notifications.Notifier
	metrics   *metrics.OrderMetrics
	sessionID string
	transit   time.Duration
	backfill  bool
	policy    string
	newID     func() string
	now       func() time.Time

	mu       sync.Mutex
	orders   []Order
	closed   bool
	degraded bool
	// unsynced is set while memory and storage may disagree: after a failed read the stored
	// history is unknown, after a failed write memory holds changes storage lacks.
	unsynced bool
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("storage required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("scheduler required")
	}
	policy := params.CorruptionPolicy
	switch policy {
	case "":
		policy = config.CorruptionStrict
	case config.CorruptionStrict, config.CorruptionSalvage:
	default:
		return nil, fmt.Errorf("unknown corruption policy %q", policy)
	}
	transit := params.TransitDuration
	if transit <= 0 {
		transit = defaultTransitDuration
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Nop
	}
	newID := params.NewID
	if newID == nil {
		newID = NewOrderID
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		logg:      params.Logger,
		storage:   params.Storage,
		scheduler: params.Scheduler,
		notifier:  notifier,
		metrics:   params.Metrics,
		sessionID: params.SessionID,
		transit:   transit,
		backfill:  params.Backfill,
		policy:    policy,
		newID:     newID,
		now:       now,
	}, nil
}

func (m *Manager) baseContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.sessionID != "" {
		ctx = m.logg.WithSessionID(ctx, m.sessionID)
	}
	return m.logg.WithField(ctx, "storage_key", StorageKey)
}

// Load (re-)initialises the manager from storage and reconciles delivery timers: every order
// Out for Delivery gets a timer unless one is already pending, and timers whose order is no
// longer Out for Delivery are cancelled. A STORAGE_CORRUPT error means the history was reset
// (or partially salvaged) and is informational.
func (m *Manager) Load(ctx context.Context) error {
	ctx = m.baseContext(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order manager is closed")
	}

	previous := m.orders
	loadErr := m.loadLocked(ctx)
	m.reconcileTimersLocked(ctx, previous)
	return loadErr
}

// loadLocked replaces memory with the stored history. While unsynced the two are merged and
// written back instead, so neither side loses orders.
func (m *Manager) loadLocked(ctx context.Context) error {
	raw, err := m.storage.Get(ctx, StorageKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.unsynced = true
		m.markDegradedLocked(ctx, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order history unavailable")
	}

	var (
		stored     []Order
		rewrite    bool
		corruptErr error
	)
	if err == nil {
		stored, rewrite, corruptErr = m.decodeStoredLocked(ctx, raw)
	}
	if m.unsynced {
		stored = mergeOrders(m.orders, stored)
		rewrite = true
	}
	m.orders = stored
	if rewrite {
		if werr := m.writeLocked(ctx); werr != nil {
			return werr
		}
	}
	return corruptErr
}

// decodeStoredLocked applies the corruption policy to a stored payload. rewrite reports that
// the surviving entries must be written back.
func (m *Manager) decodeStoredLocked(ctx context.Context, raw []byte) (orders []Order, rewrite bool, err error) {
	res := decodeOrders(raw)
	if res.err() == nil {
		return res.orders, false, nil
	}

	m.metrics.IncCorruption(StorageKey)
	ctx = m.logg.WithField(ctx, "reason", res.err().Error())

	if m.policy == config.CorruptionSalvage && res.salvageable() {
		m.logg.Warn(m.logg.WithField(ctx, "dropped", res.dropped), "dropping malformed order entries")
		msg := fmt.Sprintf("%d malformed %s removed from your order history.", res.dropped, plural(res.dropped, "entry was", "entries were"))
		m.notifier.Notify(ctx, notifications.StorageReset("Order History Repaired", msg))
		return res.orders, true, pkgerrors.Wrap(pkgerrors.CodeStorageCorrupt, res.err(), msg).
			WithDetails(map[string]any{"dropped": res.dropped, "kept": len(res.orders)})
	}

	m.logg.Warn(ctx, "discarding malformed order history")
	if derr := m.storage.Delete(ctx, StorageKey); derr != nil {
		m.logg.Error(ctx, "failed to delete malformed order history", derr)
	}
	msg := res.userMessage()
	m.notifier.Notify(ctx, notifications.StorageReset("Order History Reset", msg))
	return nil, false, pkgerrors.Wrap(pkgerrors.CodeStorageCorrupt, res.err(), msg)
}

// mergeOrders unions two histories by id. A shared order keeps the status furthest along its
// lifecycle; the result is newest first, memory winning ties.
func mergeOrders(memory, stored []Order) []Order {
	if len(stored) == 0 {
		return memory
	}
	merged := make([]Order, 0, len(memory)+len(stored))
	index := make(map[string]int, len(memory)+len(stored))
	for _, order := range memory {
		index[order.OrderID] = len(merged)
		merged = append(merged, order)
	}
	for _, order := range stored {
		if i, ok := index[order.OrderID]; ok {
			if order.Status.After(merged[i].Status) {
				merged[i].Status = order.Status
			}
			continue
		}
		index[order.OrderID] = len(merged)
		merged = append(merged, order)
	}
	slices.SortStableFunc(merged, func(a, b Order) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return merged
}

func (m *Manager) reconcileTimersLocked(ctx context.Context, previous []Order) {
	inTransit := make(map[string]struct{})
	for _, order := range m.orders {
		if order.Status == enums.OrderStatusOutForDelivery {
			inTransit[order.OrderID] = struct{}{}
			m.scheduleDeliveryLocked(ctx, order.OrderID)
			continue
		}
		m.cancelTimer(order.OrderID)
	}
	for _, order := range previous {
		if _, ok := inTransit[order.OrderID]; !ok {
			m.cancelTimer(order.OrderID)
		}
	}
}

func (m *Manager) scheduleDeliveryLocked(ctx context.Context, orderID string) {
	if m.scheduler.ScheduleOnce(orderID, m.transit, func() { m.deliver(orderID) }) {
		m.logg.Debug(m.logg.WithOrderID(ctx, orderID), "delivery timer armed")
	}
}

func (m *Manager) cancelTimer(orderID string) {
	m.scheduler.Cancel(orderID)
}

// deliver runs on timer expiry. It is a no-op after Close or when the order has moved on.
func (m *Manager) deliver(orderID string) {
	ctx := m.logg.WithOrderID(m.baseContext(context.Background()), orderID)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	idx := m.indexOf(orderID)
	if idx < 0 || m.orders[idx].Status != enums.OrderStatusOutForDelivery {
		m.mu.Unlock()
		return
	}
	m.orders[idx].Status = enums.OrderStatusDelivered
	err := m.persistLocked(ctx)
	m.mu.Unlock()

	m.metrics.IncTransition(enums.OrderStatusDelivered.String())
	if err != nil {
		m.logg.Warn(ctx, "delivered status kept in memory only")
	}
	m.logg.Info(ctx, "order delivered")
	m.notifier.Notify(ctx, notifications.OrderDelivered(orderID))
}

// Create records a new Processing order built from the cart snapshot and prepends it to the
// history. With backfill enabled, a Processing head is pushed to Out for Delivery first.
// When only the write fails the order is still returned, together with a DEPENDENCY_ERROR.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Order, error) {
	ctx = m.baseContext(ctx)
	if len(in.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot create an order from an empty cart")
	}
	address := in.ShippingAddress.Normalize()
	if address.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}

	items := make([]Item, 0, len(in.Lines))
	total := decimal.Zero
	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %q has quantity %d", line.Product.ID, line.Quantity))
		}
		items = append(items, Item{Name: line.Product.ProductName, Quantity: line.Quantity})
		total = total.Add(line.Subtotal())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order manager is closed")
	}

	orderID := m.newID()
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order id generator returned an empty id")
	}
	if m.indexOf(orderID) >= 0 {
		m.logg.Error(m.logg.WithOrderID(ctx, orderID), "generated order id collides with history", nil)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("duplicate order id %s", orderID))
	}
	ctx = m.logg.WithOrderID(ctx, orderID)

	order := Order{
		OrderID:         orderID,
		Items:           items,
		Total:           total.StringFixed(2),
		ShippingAddress: address,
		Status:          enums.OrderStatusProcessing,
		Timestamp:       m.now().UTC().Truncate(time.Millisecond),
	}

	backfilled := ""
	if m.backfill && len(m.orders) > 0 && m.orders[0].Status == enums.OrderStatusProcessing {
		m.orders[0].Status = enums.OrderStatusOutForDelivery
		backfilled = m.orders[0].OrderID
	}
	m.orders = append([]Order{order}, m.orders...)
	persistErr := m.persistLocked(ctx)

	m.metrics.IncCreated()
	m.metrics.IncTransition(enums.OrderStatusProcessing.String())
	if backfilled != "" {
		m.metrics.IncTransition(enums.OrderStatusOutForDelivery.String())
		m.scheduleDeliveryLocked(ctx, backfilled)
		m.logg.Info(m.logg.WithField(ctx, "backfilled_order_id", backfilled), "previous order moved out for delivery")
	}
	m.logg.Info(m.logg.WithField(ctx, "total", order.Total), "order created")

	created := order.clone()
	return &created, persistErr
}

// Cancel moves a Processing or Out for Delivery order to Cancelled and drops its timer.
func (m *Manager) Cancel(ctx context.Context, orderID string) (*Order, error) {
	ctx = m.logg.WithOrderID(m.baseContext(ctx), orderID)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order manager is closed")
	}
	idx := m.indexOf(orderID)
	if idx < 0 {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	current := m.orders[idx].Status
	if !current.CanTransitionTo(enums.OrderStatusCancelled) {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", current)).
			WithDetails(map[string]string{"status": current.String()})
	}
	m.orders[idx].Status = enums.OrderStatusCancelled
	m.cancelTimer(orderID)
	persistErr := m.persistLocked(ctx)
	cancelled := m.orders[idx].clone()
	m.mu.Unlock()

	m.metrics.IncTransition(enums.OrderStatusCancelled.String())
	m.logg.Info(m.logg.WithField(ctx, "from_status", current.String()), "order cancelled")
	m.notifier.Notify(ctx, notifications.OrderCancelled(orderID))
	return &cancelled, persistErr
}

// Orders returns the history newest first.
func (m *Manager) Orders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.orders))
	for i, order := range m.orders {
		out[i] = order.clone()
	}
	return out
}

func (m *Manager) Get(orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(orderID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order := m.orders[idx].clone()
	return &order, nil
}

// PendingDeliveries lists the orders with an armed delivery timer, newest first.
func (m *Manager) PendingDeliveries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, order := range m.orders {
		if m.scheduler.Pending(order.OrderID) {
			ids = append(ids, order.OrderID)
		}
	}
	return ids
}

// Degraded reports whether the last storage access failed.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Close cancels every outstanding timer; timers that race with Close find the manager closed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.scheduler.Stop()
}

func (m *Manager) indexOf(orderID string) int {
	for i, order := range m.orders {
		if order.OrderID == orderID {
			return i
		}
	}
	return -1
}

// persistLocked writes the full history; mu must be held. While unsynced the stored history is
// read and merged first, and nothing is written if that read fails.
func (m *Manager) persistLocked(ctx context.Context) error {
	if !m.unsynced {
		return m.writeLocked(ctx)
	}
	previous := m.orders
	err := m.loadLocked(ctx)
	m.reconcileTimersLocked(ctx, previous)
	if pkgerrors.IsCode(err, pkgerrors.CodeStorageCorrupt) {
		return nil
	}
	return err
}

func (m *Manager) writeLocked(ctx context.Context) error {
	snapshot := m.orders
	if snapshot == nil {
		snapshot = []Order{}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order history")
	}
	if err := m.storage.Put(ctx, StorageKey, payload); err != nil {
		m.unsynced = true
		m.markDegradedLocked(ctx, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order history updated in memory only; it will not survive a restart")
	}
	m.unsynced = false
	if m.degraded {
		m.degraded = false
		m.logg.Info(ctx, "order storage recovered")
	}
	return nil
}

func (m *Manager) markDegradedLocked(ctx context.Context, err error) {
	ctx = m.logg.WithField(ctx, "error", err.Error())
	if m.degraded {
		m.logg.Debug(ctx, "order storage still unavailable")
		return
	}
	m.degraded = true
	m.logg.Warn(ctx, "order storage unavailable; continuing in memory only")
	m.notifier.Notify(ctx, notifications.StorageWarning("Your order history could not be saved and will be lost if the session ends."))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
