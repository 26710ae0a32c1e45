package sessions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/internal/checkout"
	"github.com/angelmondragon/neurocare-backend/internal/cron"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/orders"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/metrics"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id can be used as a session key.
func ValidID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

type RegistryParams struct {
	Logger  *logger.Logger
	Storage storage.Store
	Orders  config.OrdersConfig
	Metrics *metrics.OrderMetrics
	// Gateway defaults to a MockGateway using Orders.PaymentDelay.
	Gateway checkout.PaymentGateway
	// Notifier receives every notification in addition to the session feed.
	Notifier notifications.Notifier
	// NewScheduler defaults to a TimerScheduler per session.
	NewScheduler func() cron.Scheduler
	Now          func() time.Time
}

// Registry builds sessions lazily and tears them down.
type Registry struct {
	logg         *logger.Logger
	storage      storage.Store
	cfg          config.OrdersConfig
	metrics      *metrics.OrderMetrics
	gateway      checkout.PaymentGateway
	notifier     notifications.Notifier
	newScheduler func() cron.Scheduler
	now          func() time.Time

	group    singleflight.Group
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("storage required")
	}
	gateway := params.Gateway
	if gateway == nil {
		gateway = checkout.MockGateway{Delay: params.Orders.PaymentDelay}
	}
	newScheduler := params.NewScheduler
	if newScheduler == nil {
		newScheduler = func() cron.Scheduler { return cron.NewTimerScheduler(params.Metrics) }
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		logg:         params.Logger,
		storage:      params.Storage,
		cfg:          params.Orders,
		metrics:      params.Metrics,
		gateway:      gateway,
		notifier:     params.Notifier,
		newScheduler: newScheduler,
		now:          now,
		sessions:     make(map[string]*Session),
	}, nil
}

// Get returns the live session for id, creating and loading it on first use. Concurrent first
// requests share one build. Load problems (a reset history, unavailable storage) never fail Get;
// they surface as session warnings.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id")
	}
	if s, err := r.lookupLive(id); s != nil || err != nil {
		return s, err
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if s, err := r.lookupLive(id); s != nil || err != nil {
			return s, err
		}
		// the build outlives the request that triggered it
		s, err := r.build(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build session")
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.close()
			return nil, errShuttingDown()
		}
		r.sessions[id] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) lookupLive(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errShuttingDown()
	}
	return r.sessions[id], nil
}

func errShuttingDown() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "session registry is shutting down")
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) build(ctx context.Context, id string) (*Session, error) {
	ctx = r.logg.WithSessionID(ctx, id)
	scoped := storage.Namespaced(r.storage, id)
	feed := notifications.NewFeed(r.cfg.NotificationLimit)
	notifier := notifications.Notifier(feed)
	if r.notifier != nil {
		notifier = notifications.Fanout{feed, r.notifier}
	}

	cartStore, err := cart.NewStore(cart.StoreParams{
		Logger:   r.logg,
		Storage:  scoped,
		Metrics:  r.metrics,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}
	manager, err := orders.NewManager(orders.ManagerParams{
		Logger:           r.logg,
		Storage:          scoped,
		Scheduler:        r.newScheduler(),
		Notifier:         notifier,
		Metrics:          r.metrics,
		SessionID:        id,
		TransitDuration:  r.cfg.TransitDuration,
		Backfill:         r.cfg.BackfillOnCheckout,
		CorruptionPolicy: r.cfg.CorruptionPolicy,
		Now:              r.now,
	})
	if err != nil {
		return nil, err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Logger:            r.logg,
		Cart:              cartStore,
		Orders:            manager,
		Gateway:           r.gateway,
		Notifier:          notifier,
		ConfirmationDelay: r.cfg.ConfirmationDelay,
	})
	if err != nil {
		manager.Close()
		return nil, err
	}

	s := &Session{
		ID:        id,
		Cart:      cartStore,
		Orders:    manager,
		Checkout:  checkoutSvc,
		Feed:      feed,
		CreatedAt: r.now().UTC(),
	}
	for _, loadErr := range []error{cartStore.Load(ctx), manager.Load(ctx)} {
		if loadErr == nil {
			continue
		}
		r.logg.Warn(r.logg.WithField(ctx, "error", loadErr.Error()), "session loaded with warnings")
		if typed := pkgerrors.As(loadErr); typed != nil {
			s.addWarning(typed.Message())
		} else {
			s.addWarning(loadErr.Error())
		}
	}
	r.logg.Info(ctx, "session started")
	return s, nil
}

// Close tears the session down: timers are cancelled, persisted state is kept.
func (r *Registry) Close(ctx context.Context, id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.close()
	r.logg.Info(r.logg.WithSessionID(ctx, id), "session closed")
	return true
}

// CloseAll tears down every session and refuses new ones.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	live := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs error
	for id, s := range live {
		errs = multierr.Append(errs, closeSafely(s))
		r.logg.Debug(r.logg.WithSessionID(ctx, id), "session closed")
	}
	return errs
}

func closeSafely(s *Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("close session %s: %v", s.ID, rec)
		}
	}()
	s.close()
	return nil
}

// Each calls fn for every live session in id order and combines the errors.
func (r *Registry) Each(fn func(*Session) error) error {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	var errs error
	for _, s := range live {
		if err := fn(s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errs
}

// ReloadAll re-initialises every order manager from storage. A reset history is logged, not
// returned; storage failures are.
func (r *Registry) ReloadAll(ctx context.Context) (int, error) {
	count := 0
	err := r.Each(func(s *Session) error {
		count++
		loadErr := s.Orders.Load(ctx)
		if pkgerrors.IsCode(loadErr, pkgerrors.CodeStorageCorrupt) {
			s.addWarning(pkgerrors.As(loadErr).Message())
			r.logg.Warn(r.logg.WithSessionID(ctx, s.ID), "order history reset during sweep")
			return nil
		}
		return loadErr
	})
	return count, err
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
