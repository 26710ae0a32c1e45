package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is what the gateway needs to authorise a charge.
type PaymentRequest struct {
	Amount         decimal.Decimal
	CardholderName string
	CardLast4      string
}

// PaymentReceipt identifies an authorised charge.
type PaymentReceipt struct {
	Reference  string    `json:"reference"`
	Amount     string    `json:"amount"`
	CardLast4  string    `json:"cardLast4"`
	ApprovedAt time.Time `json:"approvedAt"`
}

// PaymentGateway authorises the checkout amount.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentRequest) (PaymentReceipt, error)
}

// MockGateway approves every charge after a fixed processing delay.
type MockGateway struct {
	Delay time.Duration
	Now   func() time.Time
}

func (g MockGateway) Charge(ctx context.Context, req PaymentRequest) (PaymentReceipt, error) {
	if err := sleep(ctx, g.Delay); err != nil {
		return PaymentReceipt{}, err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return PaymentReceipt{
		Reference:  "pay_" + uuid.NewString(),
		Amount:     req.Amount.StringFixed(2),
		CardLast4:  req.CardLast4,
		ApprovedAt: now().UTC(),
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
