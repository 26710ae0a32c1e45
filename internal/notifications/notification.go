package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	"github.com/angelmondragon/neurocare-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Notification is a user-visible notice (a toast in the web client).
type Notification struct {
	ID          uuid.UUID                 `json:"id"`
	Type        enums.NotificationType    `json:"type"`
	Variant     enums.NotificationVariant `json:"variant"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	OrderID     string                    `json:"orderId,omitempty"`
	CreatedAt   time.Time                 `json:"createdAt"`
	ReadAt      *time.Time                `json:"readAt,omitempty"`
}

func (n Notification) CursorKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// Notifier receives notices fire-and-forget; implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Nop discards every notification.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) {})

func OrderPlaced(orderID, fullName string) Notification {
	return Notification{
		Type:        enums.NotificationTypeOrderPlaced,
		Variant:     enums.NotificationVariantDefault,
		Title:       "Order Placed Successfully!",
		Description: fmt.Sprintf("Thank you, %s! Your order has been received. You can track your order status in the 'Track My Order' section.", fullName),
		OrderID:     orderID,
	}
}

func OrderDelivered(orderID string) Notification {
	return Notification{
		Type:        enums.NotificationTypeOrderDelivered,
		Variant:     enums.NotificationVariantDefault,
		Title:       "Order Delivered!",
		Description: fmt.Sprintf("Your order #%s has been successfully delivered.", orderID),
		OrderID:     orderID,
	}
}

func OrderCancelled(orderID string) Notification {
	return Notification{
		Type:        enums.NotificationTypeOrderCancelled,
		Variant:     enums.NotificationVariantDefault,
		Title:       "Order Cancelled",
		Description: fmt.Sprintf("Your order #%s has been cancelled.", orderID),
		OrderID:     orderID,
	}
}

// StorageReset reports that a persisted snapshot was discarded.
func StorageReset(title, description string) Notification {
	return Notification{
		Type:        enums.NotificationTypeStorageReset,
		Variant:     enums.NotificationVariantDestructive,
		Title:       title,
		Description: description,
	}
}

// StorageWarning reports that changes are no longer being persisted.
func StorageWarning(description string) Notification {
	return Notification{
		Type:        enums.NotificationTypeStorageWarning,
		Variant:     enums.NotificationVariantDestructive,
		Title:       "Changes Not Saved",
		Description: description,
	}
}
