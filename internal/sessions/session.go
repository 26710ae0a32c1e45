package sessions

import (
	"sync"
	"time"

	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/internal/checkout"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/orders"
)

// Session is one isolated client (a browser tab): its cart, order history, checkout flow
// and notification feed over its own slice of the key space.
type Session struct {
	ID        string
	Cart      *cart.Store
	Orders    *orders.Manager
	Checkout  checkout.Service
	Feed      *notifications.Feed
	CreatedAt time.Time

	mu       sync.Mutex
	warnings []string
}

// TakeWarnings returns the notices gathered while loading the session and forgets them.
func (s *Session) TakeWarnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.warnings
	s.warnings = nil
	return out
}

func (s *Session) addWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (s *Session) close() {
	s.Orders.Close()
}
