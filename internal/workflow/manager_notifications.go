package workflow

import (
	"context"
	"errors"

	"bookforge/internal/logging"
	"bookforge/internal/notifications"
)

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send notification",
				logging.String("event", string(event)),
			)
			return
		}
		logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
