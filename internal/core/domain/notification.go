// internal/core/domain/notification.go
package domain

import "time"

// NotificationLevel is how a notification is presented to the user
type NotificationLevel string

const (
	LevelError   NotificationLevel = "error"
	LevelSuccess NotificationLevel = "success"
)

// NotificationKind identifies what happened
type NotificationKind string

const (
	KindStockExceeded NotificationKind = "stock_exceeded"
	KindAddFailed     NotificationKind = "add_failed"
	KindRemoveFailed  NotificationKind = "remove_failed"
	KindUpdateFailed  NotificationKind = "update_failed"
)

var notificationMessages = map[NotificationKind]string{
	KindStockExceeded: "Requested quantity out of stock",
	KindAddFailed:     "Error adding product",
	KindRemoveFailed:  "Error removing product",
	KindUpdateFailed:  "Error updating product amount",
}

// Message returns the user-facing text for the kind.
func (k NotificationKind) Message() string {
	if msg, ok := notificationMessages[k]; ok {
		return msg
	}
	return string(k)
}

// Notification is a transient user-facing message about a cart operation.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Kind      NotificationKind  `json:"kind"`
	Message   string            `json:"message"`
	ProductID int               `json:"product_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	At        time.Time         `json:"at"`
}

// NewErrorNotification builds an error-level notification for kind.
func NewErrorNotification(kind NotificationKind, productID int) Notification {
	return Notification{
		Level:     LevelError,
		Kind:      kind,
		Message:   kind.Message(),
		ProductID: productID,
		At:        time.Now().UTC(),
	}
}
