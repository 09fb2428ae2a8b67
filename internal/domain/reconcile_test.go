package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func deviceSet() []DeviceProfile {
	return []DeviceProfile{
		{DeviceID: "phone-1", DeviceType: DevicePhone, IsPrimary: true},
		{DeviceID: "watch-1", DeviceType: DeviceWatch},
		{DeviceID: "band-1", DeviceType: DeviceFitnessBand},
	}
}

func TestReconcilePrimaryIsAuthoritative(t *testing.T) {
	result, err := ReconcileSteps(deviceSet(), map[string]int{
		"phone-1": 8000,
		"watch-1": 8200,
	})
	require.NoError(t, err)
	require.Equal(t, 8000, result.AuthoritativeSteps)
	require.Equal(t, "phone-1", result.PrimaryDeviceID)
	require.Empty(t, result.Conflicts)
}

func TestReconcileReportsConflictBeyondTolerance(t *testing.T) {
	result, err := ReconcileSteps(deviceSet(), map[string]int{
		"phone-1": 8000,
		"watch-1": 8501,
		"band-1":  7400,
	})
	require.NoError(t, err)
	require.Equal(t, 8000, result.AuthoritativeSteps)
	require.Len(t, result.Conflicts, 2)
	require.Equal(t, "watch-1", result.Conflicts[0].DeviceID)
	require.Equal(t, 501, result.Conflicts[0].Delta)
	require.Equal(t, "band-1", result.Conflicts[1].DeviceID)
	require.Equal(t, 600, result.Conflicts[1].Delta)
}

func TestReconcileExactToleranceIsNotConflict(t *testing.T) {
	result, err := ReconcileSteps(deviceSet(), map[string]int{
		"phone-1": 8000,
		"watch-1": 8500,
	})
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
}

func TestReconcileSilentDeviceIgnored(t *testing.T) {
	result, err := ReconcileSteps(deviceSet(), map[string]int{"phone-1": 5000})
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
}

func TestReconcileNoPrimaryFails(t *testing.T) {
	devices := []DeviceProfile{{DeviceID: "watch-1", DeviceType: DeviceWatch}}
	_, err := ReconcileSteps(devices, map[string]int{"watch-1": 5000})
	require.ErrorIs(t, err, ErrNoPrimaryDevice)
}

func TestReconcilePrimaryWithNoReportIsZero(t *testing.T) {
	result, err := ReconcileSteps(deviceSet(), map[string]int{"watch-1": 400})
	require.NoError(t, err)
	require.Equal(t, 0, result.AuthoritativeSteps)
	require.Empty(t, result.Conflicts)
}
