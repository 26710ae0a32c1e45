package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/metrics"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
	"github.com/shopspring/decimal"
)

// StorageKey is the stable key holding the cart snapshot.
const StorageKey = "cart"

// Line is one product in the cart. Quantity is always >= 1.
type Line struct {
	Product  products.Product `json:"product"`
	Quantity int              `json:"quantity"`
}

// Subtotal is price * quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StoreParams wires the cart store.
type StoreParams struct {
	Logger   *logger.Logger
	Storage  storage.Store
	Metrics  *metrics.OrderMetrics
	Notifier notifications.Notifier
}

// Store owns one session's cart and mirrors every change to durable storage.
type Store struct {
	logg     *logger.Logger
	storage  storage.Store
	metrics  *metrics.OrderMetrics
	notifier notifications.Notifier

	mu       sync.RWMutex
	lines    []Line
	degraded bool
	// unread is set while the stored snapshot is unknown because the last read failed.
	unread bool
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("storage required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Nop
	}
	return &Store{
		logg:     params.Logger,
		storage:  params.Storage,
		metrics:  params.Metrics,
		notifier: notifier,
	}, nil
}

// Load replaces the in-memory cart with the persisted snapshot. A malformed snapshot is purged
// and the cart starts empty; the returned STORAGE_CORRUPT error is informational. While a failed
// write or read left memory holding changes storage lacks, Load writes them back instead.
func (s *Store) Load(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "storage_key", StorageKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.degraded && !s.unread) || (s.unread && len(s.lines) > 0) {
		return s.persist(ctx)
	}

	raw, err := s.storage.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.lines = nil
		s.unread = false
		return nil
	}
	if err != nil {
		s.unread = true
		s.markDegraded(ctx, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart storage unavailable; changes are kept in memory only")
	}
	s.unread = false

	lines, decodeErr := decodeLines(raw)
	if decodeErr == nil {
		s.lines = lines
		return nil
	}

	s.lines = nil
	s.logg.Warn(s.logg.WithField(ctx, "reason", decodeErr.Error()), "discarding malformed cart snapshot")
	s.metrics.IncCorruption(StorageKey)
	if delErr := s.storage.Delete(ctx, StorageKey); delErr != nil {
		s.logg.Error(ctx, "failed to purge malformed cart snapshot", delErr)
	}
	s.notifier.Notify(ctx, notifications.StorageReset(
		"Cart Reset",
		"Your saved cart could not be read and has been cleared.",
	))
	return pkgerrors.Wrap(pkgerrors.CodeStorageCorrupt, decodeErr, "saved cart was malformed and has been cleared")
}

func decodeLines(raw []byte) ([]Line, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("cart snapshot is not an array")
	}
	var lines []Line
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		id := strings.TrimSpace(line.Product.ID)
		if id == "" {
			return nil, fmt.Errorf("cart line %d has no product id", i)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("cart line %d has quantity %d", i, line.Quantity)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("cart lists product %q twice", id)
		}
		seen[id] = struct{}{}
	}
	return lines, nil
}

// AddToCart increments the product's line or appends a new line with quantity 1.
// Stock is advisory and not enforced.
func (s *Store) AddToCart(ctx context.Context, product products.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(product.ID); idx >= 0 {
		s.lines[idx].Quantity++
	} else {
		s.lines = append(s.lines, Line{Product: product, Quantity: 1})
	}
	return s.persist(ctx)
}

// RemoveFromCart drops the product's line; an unknown id is a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(productID)
	if idx < 0 {
		return nil
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	return s.persist(ctx)
}

// UpdateQuantity sets the exact quantity; zero or below removes the line.
// An unknown id is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(productID)
	if idx < 0 {
		return nil
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	} else {
		s.lines[idx].Quantity = quantity
	}
	return s.persist(ctx)
}

// ClearCart empties the cart. The stored snapshot no longer matters, so it is overwritten even
// when it could not be read.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.unread = false
	return s.persist(ctx)
}

// Lines returns a copy of the cart in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Total sums price * quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines) == 0
}

// Degraded reports whether the last write failed and the cart lives in memory only.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) indexOf(productID string) int {
	productID = strings.TrimSpace(productID)
	for i, line := range s.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

// persist must be called with mu held so writes land in mutation order. After a failed read the
// stored lines are merged in first; if they still cannot be read nothing is written.
func (s *Store) persist(ctx context.Context) error {
	if s.unread {
		if err := s.mergeStored(ctx); err != nil {
			return err
		}
	}
	snapshot := s.lines
	if snapshot == nil {
		snapshot = []Line{}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.storage.Put(ctx, StorageKey, payload); err != nil {
		s.markDegraded(ctx, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart updated in memory only; it will not survive a restart")
	}
	if s.degraded {
		s.degraded = false
		s.logg.Info(s.logg.WithField(ctx, "storage_key", StorageKey), "cart storage recovered")
	}
	return nil
}

func (s *Store) mergeStored(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.unread = false
		return nil
	}
	if err != nil {
		s.markDegraded(ctx, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saved cart unreadable; change kept in memory only")
	}
	s.unread = false
	stored, decodeErr := decodeLines(raw)
	if decodeErr != nil {
		s.metrics.IncCorruption(StorageKey)
		s.logg.Warn(s.logg.WithField(ctx, "reason", decodeErr.Error()), "overwriting malformed cart snapshot")
		return nil
	}
	s.lines = mergeLines(stored, s.lines)
	return nil
}

// mergeLines keeps stored lines in their order and appends the ones only memory has. Memory's
// quantity wins for a product in both.
func mergeLines(stored, memory []Line) []Line {
	merged := make([]Line, 0, len(stored)+len(memory))
	index := make(map[string]int, len(stored)+len(memory))
	for _, line := range stored {
		index[line.Product.ID] = len(merged)
		merged = append(merged, line)
	}
	for _, line := range memory {
		if i, ok := index[line.Product.ID]; ok {
			merged[i] = line
			continue
		}
		index[line.Product.ID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func (s *Store) markDegraded(ctx context.Context, err error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"storage_key": StorageKey, "error": err.Error()})
	if s.degraded {
		s.logg.Debug(ctx, "cart storage still unavailable")
		return
	}
	s.degraded = true
	s.logg.Warn(ctx, "cart storage unavailable; continuing in memory only")
	s.notifier.Notify(ctx, notifications.StorageWarning("Your cart could not be saved and will be lost if the session ends."))
}
