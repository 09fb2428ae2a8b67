package notify

import (
	"context"
	"log"

	"example.com/steprewards/internal/events"
)

// EngineNotifier adapts a Dispatcher to the engine's fire-and-forget
// notification hook. Delivery errors are logged and dropped.
type EngineNotifier struct {
	dispatcher Dispatcher
}

// NewEngineNotifier wraps a dispatcher for in-process use.
func NewEngineNotifier(dispatcher Dispatcher) *EngineNotifier {
	return &EngineNotifier{dispatcher: dispatcher}
}

func (n *EngineNotifier) TierAdvanced(ctx context.Context, evt events.TierAdvanced) {
	if err := n.dispatcher.TierAdvanced(ctx, evt.TenantID, evt.UserID, evt.FromTier, evt.ToTier); err != nil {
		log.Printf("notify: tier advance delivery failed (user=%s): %v", evt.UserID, err)
	}
}

func (n *EngineNotifier) GoalAchieved(ctx context.Context, evt events.GoalAchieved) {
	if err := n.dispatcher.GoalAchieved(ctx, evt.TenantID, evt.UserID, evt.Date, evt.CappedSteps); err != nil {
		log.Printf("notify: goal delivery failed (user=%s): %v", evt.UserID, err)
	}
}
