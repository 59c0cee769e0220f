package lending

import (
	"context"
	"log/slog"

	"github.com/erazemk/izposoja/internal/model"
)

// Notifier delivers notifications after the transaction that recorded them
// has committed. Delivery failures never undo a reservation change.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n *model.Notification) {
	slog.Info("notification", "user", n.UserID, "kind", n.Kind, "message", n.Message)
}
