package checkout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/internal/notifications"
	"github.com/angelmondragon/neurocare-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/neurocare-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

type cartStore interface {
	Lines() []cart.Line
	ClearCart(ctx context.Context) error
}

type orderCreator interface {
	Create(ctx context.Context, in orders.CreateInput) (*orders.Order, error)
}

// Service converts a session's cart into an order.
type Service interface {
	Submit(ctx context.Context, in SubmitInput) (*Result, error)
}

type ServiceParams struct {
	Logger            *logger.Logger
	Cart              cartStore
	Orders            orderCreator
	Gateway           PaymentGateway
	Notifier          notifications.Notifier
	ConfirmationDelay time.Duration
}

type service struct {
	logg         *logger.Logger
	cart         cartStore
	orders       orderCreator
	gateway      PaymentGateway
	notifier     notifications.Notifier
	confirmDelay time.Duration
	inFlight     atomic.Bool
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order manager required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Nop
	}
	return &service{
		logg:         params.Logger,
		cart:         params.Cart,
		orders:       params.Orders,
		gateway:      params.Gateway,
		notifier:     notifier,
		confirmDelay: params.ConfirmationDelay,
	}, nil
}

// Submit validates the form, charges the cart total, records the order, waits for confirmation,
// clears the cart and notifies. Only one submission per session runs at a time.
// If ctx ends after the order was recorded the cart is left as is.
func (s *service) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress")
	}
	defer s.inFlight.Store(false)

	in = in.Normalize()
	if err := pkgcheckout.Validate(in); err != nil {
		return nil, err
	}

	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot check out an empty cart")
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}

	ctx = s.logg.WithField(ctx, "total", total.StringFixed(2))
	receipt, err := s.gateway.Charge(ctx, PaymentRequest{
		Amount:         total,
		CardholderName: in.CardholderName,
		CardLast4:      last4(in.CardNumber),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment was not completed")
	}
	ctx = s.logg.WithField(ctx, "payment_reference", receipt.Reference)

	result := &Result{Payment: receipt}
	order, err := s.orders.Create(ctx, orders.CreateInput{Lines: lines, ShippingAddress: in.ShippingAddress})
	if order == nil {
		return nil, err
	}
	if err != nil {
		result.Warnings = append(result.Warnings, warningFor(err))
	}
	result.Order = *order
	ctx = s.logg.WithOrderID(ctx, order.OrderID)

	if err := sleep(ctx, s.confirmDelay); err != nil {
		s.logg.Warn(ctx, "checkout abandoned after the order was recorded; cart left untouched")
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout interrupted before confirmation")
	}

	if err := s.cart.ClearCart(ctx); err != nil {
		result.Warnings = append(result.Warnings, warningFor(err))
	}

	s.notifier.Notify(ctx, notifications.OrderPlaced(order.OrderID, in.FullName))
	s.logg.Info(ctx, "checkout completed")
	return result, nil
}

func warningFor(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func last4(card string) string {
	if len(card) <= 4 {
		return card
	}
	return card[len(card)-4:]
}
