package consumer

import (
	"context"

	"example.com/steprewards/internal/events"
	"example.com/steprewards/internal/notify"
)

// NotificationHandler translates reward and ledger events into user notifications.
type NotificationHandler struct {
	dispatcher notify.Dispatcher
}

// NewNotificationHandler constructs a handler backed by the given dispatcher.
func NewNotificationHandler(dispatcher notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

// Handle routes a decoded event to the matching notification.
// Unknown event types are skipped so new producers can roll out first.
func (h *NotificationHandler) Handle(ctx context.Context, evt Event) error {
	switch evt.EventType {
	case events.TypeTierAdvanced:
		var body events.TierAdvanced
		if err := evt.Decode(&body); err != nil {
			return err
		}
		return h.dispatcher.TierAdvanced(ctx, body.TenantID, body.UserID, body.FromTier, body.ToTier)
	case events.TypeGoalAchieved:
		var body events.GoalAchieved
		if err := evt.Decode(&body); err != nil {
			return err
		}
		return h.dispatcher.GoalAchieved(ctx, body.TenantID, body.UserID, body.Date, body.CappedSteps)
	case events.TypeDaySealed:
		var body events.DaySealed
		if err := evt.Decode(&body); err != nil {
			return err
		}
		return h.dispatcher.DaySealed(ctx, body.TenantID, body.UserID, body.Date, body.PaisaEarned)
	default:
		return nil
	}
}
