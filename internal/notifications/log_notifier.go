package notifications

import (
	"context"

	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	if l == nil || l.logg == nil {
		return
	}
	fields := map[string]any{
		"notification_type": string(n.Type),
		"title":             n.Title,
	}
	if n.OrderID != "" {
		fields["order_id"] = n.OrderID
	}
	ctx = l.logg.WithFields(ctx, fields)
	l.logg.Info(ctx, n.Description)
}

// Fanout delivers each notification to every non-nil target in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, target := range f {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}
