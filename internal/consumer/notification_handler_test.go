package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/steprewards/internal/events"
)

type recordingDispatcher struct {
	tierCalls []string
	goalCalls []string
	sealCalls []string
}

func (d *recordingDispatcher) TierAdvanced(_ context.Context, _, userID string, _, toTier int) error {
	d.tierCalls = append(d.tierCalls, userID)
	return nil
}

func (d *recordingDispatcher) GoalAchieved(_ context.Context, _, userID, _ string, _ int) error {
	d.goalCalls = append(d.goalCalls, userID)
	return nil
}

func (d *recordingDispatcher) DaySealed(_ context.Context, _, userID, _ string, _ int) error {
	d.sealCalls = append(d.sealCalls, userID)
	return nil
}

func decoded(t *testing.T, eventType string, payload interface{}) Event {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Event{
		Topic:     "reward_events",
		EventType: eventType,
		TenantID:  "tenant-1",
		Payload:   body,
	}
}

func TestNotificationHandlerRoutesEvents(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := NewNotificationHandler(dispatcher)
	ctx := context.Background()

	err := handler.Handle(ctx, decoded(t, events.TypeTierAdvanced, events.TierAdvanced{
		TenantID: "tenant-1", UserID: "user-1", FromTier: 1, ToTier: 2, OccurredAt: time.Now().UTC(),
	}))
	require.NoError(t, err)

	err = handler.Handle(ctx, decoded(t, events.TypeGoalAchieved, events.GoalAchieved{
		TenantID: "tenant-1", UserID: "user-2", Date: "2026-08-29", CappedSteps: 12000,
	}))
	require.NoError(t, err)

	err = handler.Handle(ctx, decoded(t, events.TypeDaySealed, events.DaySealed{
		TenantID: "tenant-1", UserID: "user-3", Date: "2026-08-28", PaisaEarned: 480,
	}))
	require.NoError(t, err)

	require.Equal(t, []string{"user-1"}, dispatcher.tierCalls)
	require.Equal(t, []string{"user-2"}, dispatcher.goalCalls)
	require.Equal(t, []string{"user-3"}, dispatcher.sealCalls)
}

func TestNotificationHandlerSkipsUnknownTypes(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := NewNotificationHandler(dispatcher)

	err := handler.Handle(context.Background(), Event{EventType: "ledger.day_redeemed", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.Empty(t, dispatcher.tierCalls)
}

func TestNotificationHandlerRejectsBadPayload(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := NewNotificationHandler(dispatcher)

	err := handler.Handle(context.Background(), Event{EventType: events.TypeTierAdvanced, Payload: []byte(`{"to_tier":`)})
	require.Error(t, err)
}
