// Package notify delivers user-facing notifications for reward milestones.
package notify

import (
	"context"
	"log"
	"os"
)

// Dispatcher sends reward notifications to users. Implementations may fan out
// to push providers, SMS gateways, or in-app inboxes.
type Dispatcher interface {
	TierAdvanced(ctx context.Context, tenantID, userID string, fromTier, toTier int) error
	GoalAchieved(ctx context.Context, tenantID, userID, date string, cappedSteps int) error
	DaySealed(ctx context.Context, tenantID, userID, date string, paisaEarned int) error
}

// LogDispatcher writes notifications to the process log. It stands in for a
// real push provider in development and test environments.
type LogDispatcher struct {
	logger *log.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{
		logger: log.New(os.Stdout, "[notify] ", log.LstdFlags),
	}
}

func (d *LogDispatcher) TierAdvanced(_ context.Context, tenantID, userID string, fromTier, toTier int) error {
	d.logger.Printf("tier advanced tenant=%s user=%s from=%d to=%d", tenantID, userID, fromTier, toTier)
	return nil
}

func (d *LogDispatcher) GoalAchieved(_ context.Context, tenantID, userID, date string, cappedSteps int) error {
	d.logger.Printf("daily goal achieved tenant=%s user=%s date=%s steps=%d", tenantID, userID, date, cappedSteps)
	return nil
}

func (d *LogDispatcher) DaySealed(_ context.Context, tenantID, userID, date string, paisaEarned int) error {
	d.logger.Printf("day sealed tenant=%s user=%s date=%s paisa=%d", tenantID, userID, date, paisaEarned)
	return nil
}
