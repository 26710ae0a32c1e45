package enums

import "fmt"

// NotificationType classifies the user-visible notices raised by the pharmacy flow.
type NotificationType string

const (
	NotificationTypeOrderPlaced    NotificationType = "order_placed"
	NotificationTypeOrderDelivered NotificationType = "order_delivered"
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
	NotificationTypeStorageReset   NotificationType = "storage_reset"
	NotificationTypeStorageWarning NotificationType = "storage_warning"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderCancelled,
	NotificationTypeStorageReset,
	NotificationTypeStorageWarning,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationVariant mirrors the toast styling: default or destructive.
type NotificationVariant string

const (
	NotificationVariantDefault     NotificationVariant = "default"
	NotificationVariantDestructive NotificationVariant = "destructive"
)
